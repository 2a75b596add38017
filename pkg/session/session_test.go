package session

import (
	"context"
	"testing"

	"github.com/mnh-jansson/m18-protocol/pkg/bitrev"
	"github.com/mnh-jansson/m18-protocol/pkg/frame"
	"github.com/mnh-jansson/m18-protocol/pkg/link"
	"github.com/mnh-jansson/m18-protocol/pkg/register"
	"github.com/mnh-jansson/m18-protocol/pkg/schema"
	"github.com/mnh-jansson/m18-protocol/pkg/serialport"
)

func wireResponse(status, accEcho byte, payload []byte) []byte {
	body := append([]byte{status, accEcho, byte(len(payload))}, payload...)
	cs := frame.Checksum(body)
	full := append(body, byte(cs>>8), byte(cs))
	return bitrev.Reversed(full)
}

func newTestSession(port *serialport.FakePort) *Session {
	ctrl := link.New(port, frame.Silent)
	return &Session{
		port: port,
		ctrl: ctrl,
		reg:  register.New(port, ctrl, frame.Silent),
	}
}

func TestReadDecodesWallClock(t *testing.T) {
	port := serialport.NewFakePort()
	secs := uint32(1700000000)
	payload := []byte{byte(secs >> 24), byte(secs >> 16), byte(secs >> 8), byte(secs)}
	port.Enqueue(wireResponse(frame.StatusDataOK, 0x04, payload))

	s := newTestSession(port)
	v, err := s.Read(schema.WallClock)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !v.Valid || uint32(v.Time.Unix()) != secs {
		t.Fatalf("got %+v, want unix seconds %d", v, secs)
	}
}

func TestReadUnknownIDIsSchemaMiss(t *testing.T) {
	port := serialport.NewFakePort()
	s := newTestSession(port)
	if _, err := s.Read(schema.ID("NoSuchRegister")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestWriteNoteWritesTwentyOctets(t *testing.T) {
	port := serialport.NewFakePort()
	for i := 0; i < schema.UserNoteLen; i++ {
		port.Enqueue(wireResponse(frame.StatusWriteOK, 0x04, nil))
	}
	s := newTestSession(port)
	if err := s.WriteNote("hello"); err != nil {
		t.Fatalf("WriteNote: %v", err)
	}
	if len(port.Writes) != schema.UserNoteLen {
		t.Fatalf("got %d writes, want %d", len(port.Writes), schema.UserNoteLen)
	}
}

func TestWriteNoteRejectsOverlongText(t *testing.T) {
	port := serialport.NewFakePort()
	s := newTestSession(port)
	if err := s.WriteNote("this note is far too long for the field"); err == nil {
		t.Fatal("expected an error")
	}
	if len(port.Writes) != 0 {
		t.Fatal("expected no writes to be issued for a rejected note")
	}
}

func TestSweepSkipsNonFatalMissesButKeepsHits(t *testing.T) {
	port := serialport.NewFakePort()
	port.Enqueue(wireResponse(frame.StatusShortNACK, 0x04, nil)) // miss for WallClock
	port.Enqueue(wireResponse(frame.StatusDataOK, 0x04, []byte{0, 40, 0, 0, 0})) // hit for IdentitySerial

	s := newTestSession(port)
	out := make(map[schema.ID]schema.Value)
	err := s.sweep(context.Background(), []schema.ID{schema.WallClock, schema.IdentitySerial}, out)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, ok := out[schema.WallClock]; ok {
		t.Fatal("expected the NACKed register to be skipped, not recorded")
	}
	if _, ok := out[schema.IdentitySerial]; !ok {
		t.Fatal("expected the data-OK register to be recorded")
	}
}

func TestCloseIdlesTheLine(t *testing.T) {
	port := serialport.NewFakePort()
	s := newTestSession(port)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !port.BreakAsserted || !port.DTRAsserted {
		t.Fatal("expected Close to leave the line idle")
	}
	if !port.Closed {
		t.Fatal("expected Close to close the underlying port")
	}
}

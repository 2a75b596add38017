package frame

import (
	"testing"

	"github.com/mnh-jansson/m18-protocol/pkg/bitrev"
	"github.com/mnh-jansson/m18-protocol/pkg/serialport"
)

func TestChecksumKnownFrame(t *testing.T) {
	// configure(2): CONF_CMD=0x60, ACC=0x04, third=0x08, CUTOFF=300,
	// MAX=6000 twice, state=2, 13.
	body := []byte{0x60, 0x04, 0x08, 0x01, 0x2C, 0x17, 0x70, 0x17, 0x70, 0x02, 13}
	cmd := BuildCommand(0x60, 0x04, 0x08, 0x01, 0x2C, 0x17, 0x70, 0x17, 0x70, 0x02, 13)
	if len(cmd) != len(body)+2 {
		t.Fatalf("len(cmd) = %d, want %d", len(cmd), len(body)+2)
	}
	for i := range body {
		if cmd[i] != body[i] {
			t.Fatalf("cmd[%d] = 0x%02x, want 0x%02x", i, cmd[i], body[i])
		}
	}
	wantSum := Checksum(body)
	gotSum := uint16(cmd[len(cmd)-2])<<8 | uint16(cmd[len(cmd)-1])
	if gotSum != wantSum {
		t.Fatalf("trailing checksum = 0x%04x, want 0x%04x", gotSum, wantSum)
	}
}

func TestChecksumAdditiveOverflow(t *testing.T) {
	buf := make([]byte, 300)
	for i := range buf {
		buf[i] = 0xFF
	}
	want := uint16((300 * 0xFF) % 65536)
	if got := Checksum(buf); got != want {
		t.Fatalf("Checksum overflow handling: got 0x%04x, want 0x%04x", got, want)
	}
}

func TestParseResponseShortNACK(t *testing.T) {
	port := serialport.NewFakePort()
	// Wire bytes are bit-reversed; 0x82 reversed is 0x41, code 0x00 stays 0x00.
	port.Enqueue([]byte{bitrev.Byte(StatusShortNACK), bitrev.Byte(0x00)})

	resp, err := ParseResponse(port, 64, Silent)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if !resp.Short {
		t.Fatal("expected a short NACK frame")
	}
	if len(resp.Raw) != 2 {
		t.Fatalf("short NACK consumed %d octets, want 2 regardless of maxLen", len(resp.Raw))
	}
}

func TestParseResponseDataFrame(t *testing.T) {
	port := serialport.NewFakePort()
	payload := []byte{0x66, 0xD9, 0xF2, 0xA0}
	body := append([]byte{StatusDataOK, 0x04, byte(len(payload))}, payload...)
	cs := Checksum(body)
	wire := append(append([]byte{}, body...), byte(cs>>8), byte(cs))
	port.Enqueue(bitrev.Reversed(wire))

	resp, err := ParseResponse(port, len(wire), Silent)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.Short {
		t.Fatal("did not expect a short NACK")
	}
	if resp.Status != StatusDataOK {
		t.Fatalf("Status = 0x%02x, want 0x%02x", resp.Status, StatusDataOK)
	}
	if resp.ACCEcho != 0x04 {
		t.Fatalf("ACCEcho = 0x%02x, want 0x04", resp.ACCEcho)
	}
	if len(resp.Payload) != len(payload) {
		t.Fatalf("len(Payload) = %d, want %d", len(resp.Payload), len(payload))
	}
	for i := range payload {
		if resp.Payload[i] != payload[i] {
			t.Fatalf("Payload[%d] = 0x%02x, want 0x%02x", i, resp.Payload[i], payload[i])
		}
	}
	if !resp.ChecksumOK() {
		t.Fatal("expected checksum to verify")
	}
}

func TestSendReversesAndFlushes(t *testing.T) {
	port := serialport.NewFakePort()
	// Stale input: the unread half of an earlier reply, to be flushed away.
	port.Enqueue([]byte{0x00, 0x00})
	if _, err := port.ReadFull(1); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	cmd := []byte{0x01, 0x04, 0x03}
	if err := Send(port, cmd, Silent); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(port.Writes) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(port.Writes))
	}
	got := port.Writes[0]
	want := bitrev.Reversed(cmd)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("wire byte %d = 0x%02x, want 0x%02x", i, got[i], want[i])
		}
	}
	if rest, err := port.ReadFull(1); err == nil {
		t.Fatalf("stale octet 0x%02x survived the flush", rest[0])
	}
}

package charger

import (
	"context"
	"testing"
	"time"

	"github.com/mnh-jansson/m18-protocol/pkg/bitrev"
	"github.com/mnh-jansson/m18-protocol/pkg/frame"
	"github.com/mnh-jansson/m18-protocol/pkg/link"
	"github.com/mnh-jansson/m18-protocol/pkg/serialport"
)

// wireResponse builds the bit-reversed wire bytes for a response whose logical
// status/ACC-echo/length/payload are given; checksum is computed and
// appended, then the whole thing is bit-reversed, matching what a real
// pack would put on the wire.
func wireResponse(status, accEcho byte, payload []byte) []byte {
	body := append([]byte{status, accEcho, byte(len(payload))}, payload...)
	cs := frame.Checksum(body)
	full := append(body, byte(cs>>8), byte(cs))
	return bitrev.Reversed(full)
}

func TestRunHappyPathACCProgression(t *testing.T) {
	port := serialport.NewFakePort()
	// sync echo for reset
	port.Enqueue([]byte{bitrev.Byte(frame.SyncByte)})
	// configure(2): 5-byte response
	port.Enqueue(wireResponse(frame.StatusWriteOK, 0x04, nil))
	// snapshot A: 8-byte response, ACC echoes 0x04, then ACC advances to 0x0C
	port.Enqueue(wireResponse(frame.StatusDataOK, 0x04, []byte{1, 2, 3}))
	// keepalive: 9-byte response
	port.Enqueue(wireResponse(frame.StatusDataOK, 0x0C, []byte{1, 2, 3, 4}))
	// configure(1): 5-byte response
	port.Enqueue(wireResponse(frame.StatusWriteOK, 0x04, nil))
	// snapshot B: ACC echoes 0x04 (configure reset it), advances to 0x0C
	port.Enqueue(wireResponse(frame.StatusDataOK, 0x04, []byte{1, 2, 3}))
	// a couple of streaming keepalives
	for i := 0; i < 3; i++ {
		port.Enqueue(wireResponse(frame.StatusDataOK, 0x0C, []byte{1, 2, 3, 4}))
	}

	ctrl := link.New(port, frame.Silent)
	em := New(port, ctrl, frame.Silent)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := em.Run(ctx, 0)
	if err == nil {
		t.Fatal("expected Run to end via context deadline (an error), not nil")
	}
	if em.State() != Aborted {
		t.Fatalf("final state = %v, want Aborted", em.State())
	}
	if !port.BreakAsserted || !port.DTRAsserted {
		t.Fatal("expected line to be idle after Run exits")
	}
	// configure(1) reset ACC to 0x04 and snapshot B advanced it once.
	if ctrl.ACC() != 0x0C {
		t.Fatalf("ACC after the second snapshot = 0x%02x, want 0x0C", ctrl.ACC())
	}
}

func TestRunAbortsOnMismatch(t *testing.T) {
	port := serialport.NewFakePort()
	port.Enqueue([]byte{0x00}) // bad sync echo
	ctrl := link.New(port, frame.Silent)
	em := New(port, ctrl, frame.Silent)

	err := em.Run(context.Background(), time.Second)
	if err == nil {
		t.Fatal("expected an error")
	}
	if em.State() != Aborted {
		t.Fatalf("state = %v, want Aborted", em.State())
	}
	if !port.BreakAsserted || !port.DTRAsserted {
		t.Fatal("expected line to be idle after an aborted run")
	}
}

func TestRunDurationBound(t *testing.T) {
	port := serialport.NewFakePort()
	port.Enqueue([]byte{bitrev.Byte(frame.SyncByte)})
	port.Enqueue(wireResponse(frame.StatusWriteOK, 0x04, nil))
	port.Enqueue(wireResponse(frame.StatusDataOK, 0x04, []byte{1, 2, 3}))
	port.Enqueue(wireResponse(frame.StatusDataOK, 0x0C, []byte{1, 2, 3, 4}))
	port.Enqueue(wireResponse(frame.StatusWriteOK, 0x04, nil))
	port.Enqueue(wireResponse(frame.StatusDataOK, 0x04, []byte{1, 2, 3}))
	for i := 0; i < 5; i++ {
		port.Enqueue(wireResponse(frame.StatusDataOK, 0x0C, []byte{1, 2, 3, 4}))
	}

	ctrl := link.New(port, frame.Silent)
	em := New(port, ctrl, frame.Silent)

	start := time.Now()
	err := em.Run(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("a duration-bounded Run should return nil, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("Run took far longer than expected given the fixed handshake/keepalive delays")
	}
	if em.State() != Aborted {
		t.Fatalf("state = %v, want Aborted", em.State())
	}
}

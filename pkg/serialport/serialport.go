// Package serialport owns the asynchronous serial port the protocol layer
// drives: raw octet read/write, input-buffer flush, and the two control
// lines (BREAK, DTR) the reset handshake and idle/high line states depend
// on. This is spec.md §4.1's Serial Line Driver.
package serialport

import (
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/mnh-jansson/m18-protocol/pkg/protoerr"
)

// Port is the Serial Line Driver's surface. The production implementation
// wraps go.bug.st/serial; tests use FakePort.
type Port interface {
	// Write sends buf verbatim.
	Write(buf []byte) error
	// ReadFull blocks until n octets have been read or the port's read
	// timeout elapses, whichever comes first.
	ReadFull(n int) ([]byte, error)
	// FlushInput discards any buffered, unread input.
	FlushInput() error
	// SetBreak asserts or deasserts the BREAK line condition.
	SetBreak(asserted bool) error
	// SetDTR asserts or deasserts DTR.
	SetDTR(asserted bool) error
	Close() error
}

// Config holds the adjustable wire parameters: baud rate and read timeout.
// Open always uses 8 data bits, no parity and 2 stop bits.
type Config struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// DefaultConfig returns the wire parameters spec.md §4.1 mandates.
func DefaultConfig() Config {
	return Config{
		BaudRate:    4800,
		ReadTimeout: 800 * time.Millisecond,
	}
}

// breakPulse is the width of each back-to-back Break() call used to hold a
// persistent BREAK condition open; see DESIGN.md for why go.bug.st/serial
// needs this instead of a single persistent toggle.
const breakPulse = 40 * time.Millisecond

// realPort is the go.bug.st/serial-backed Port implementation.
type realPort struct {
	port serial.Port

	mu         sync.Mutex
	breakHold  bool
	breakDone  chan struct{}
	breakWG    sync.WaitGroup
}

// Open opens device at the fixed M18 wire parameters.
func Open(device string, cfg Config) (Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.TwoStopBits,
	}
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindPortUnavailable, "open "+device, err)
	}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		p.Close()
		return nil, protoerr.Wrap(protoerr.KindPortUnavailable, "set read timeout", err)
	}
	return &realPort{port: p}, nil
}

func (r *realPort) Write(buf []byte) error {
	_, err := r.port.Write(buf)
	if err != nil {
		return protoerr.Wrap(protoerr.KindTimeout, "write", err)
	}
	return nil
}

func (r *realPort) ReadFull(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		read, err := r.port.Read(buf[:n-len(out)])
		if err != nil {
			return out, protoerr.Wrap(protoerr.KindTimeout, "read", err)
		}
		if read == 0 {
			// go.bug.st/serial returns (0, nil) on a read-timeout expiry
			// rather than an error; a zero-length read with nothing left
			// to deliver means the deadline passed.
			return out, protoerr.New(protoerr.KindTimeout, "read timed out")
		}
		out = append(out, buf[:read]...)
	}
	return out, nil
}

func (r *realPort) FlushInput() error {
	return r.port.ResetInputBuffer()
}

// SetBreak models a persistent BREAK assertion on top of go.bug.st/serial's
// Break(duration), which only pulses BREAK for a bounded time and then
// clears it on its own. Asserting holds BREAK by re-issuing back-to-back
// pulses from a dedicated goroutine until deasserted.
func (r *realPort) SetBreak(asserted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if asserted == r.breakHold {
		return nil
	}
	r.breakHold = asserted

	if !asserted {
		if r.breakDone != nil {
			close(r.breakDone)
			r.breakDone = nil
		}
		r.breakWG.Wait()
		return nil
	}

	done := make(chan struct{})
	r.breakDone = done
	r.breakWG.Add(1)
	go func() {
		defer r.breakWG.Done()
		for {
			select {
			case <-done:
				return
			default:
				r.port.Break(breakPulse)
			}
		}
	}()
	return nil
}

func (r *realPort) SetDTR(asserted bool) error {
	return r.port.SetDTR(asserted)
}

func (r *realPort) Close() error {
	r.SetBreak(false)
	return r.port.Close()
}

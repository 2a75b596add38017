package serialport

import (
	"sync"

	"github.com/mnh-jansson/m18-protocol/pkg/protoerr"
)

// FakePort is an in-memory Port used by tests across this module. Writes
// are recorded for assertions; reads are served from a queue of canned
// responses pushed with Enqueue. It has no notion of timing — SetBreak and
// SetDTR just record the most recent assertion for inspection.
type FakePort struct {
	mu sync.Mutex

	Writes [][]byte
	queue  [][]byte

	// headStarted is true once ReadFull has taken part, but not all, of
	// queue[0]; that unread remainder is the stale input FlushInput drops.
	headStarted bool

	BreakAsserted bool
	DTRAsserted   bool
	Closed        bool

	// BreakHistory and DTRHistory record every transition, in order, so
	// tests can assert on sequencing (e.g. idle-on-every-exit).
	BreakHistory []bool
	DTRHistory   []bool
}

// NewFakePort returns an empty FakePort.
func NewFakePort() *FakePort {
	return &FakePort{}
}

// Enqueue schedules resp to be returned (bit-reversed or not — callers
// decide) by the next ReadFull call(s). A single Enqueue call's bytes may
// be split across multiple ReadFull calls if the caller reads fewer than
// len(resp) octets at a time.
func (f *FakePort) Enqueue(resp []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), resp...)
	f.queue = append(f.queue, cp)
}

func (f *FakePort) Write(buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), buf...)
	f.Writes = append(f.Writes, cp)
	return nil
}

func (f *FakePort) ReadFull(n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]byte, 0, n)
	for len(out) < n {
		if len(f.queue) == 0 {
			return out, protoerr.New(protoerr.KindTimeout, "fake port exhausted")
		}
		head := f.queue[0]
		need := n - len(out)
		if len(head) <= need {
			out = append(out, head...)
			f.queue = f.queue[1:]
			f.headStarted = false
		} else {
			out = append(out, head[:need]...)
			f.queue[0] = head[need:]
			f.headStarted = true
		}
	}
	return out, nil
}

// FlushInput discards the unread remainder of a partly read response.
// Responses no read has started on stay queued: they stand for replies to
// frames the caller has yet to send.
func (f *FakePort) FlushInput() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headStarted && len(f.queue) > 0 {
		f.queue = f.queue[1:]
	}
	f.headStarted = false
	return nil
}

func (f *FakePort) SetBreak(asserted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BreakAsserted = asserted
	f.BreakHistory = append(f.BreakHistory, asserted)
	return nil
}

func (f *FakePort) SetDTR(asserted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DTRAsserted = asserted
	f.DTRHistory = append(f.DTRHistory, asserted)
	return nil
}

func (f *FakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

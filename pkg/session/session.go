// Package session implements the Session Orchestrator (spec.md §4.8, §6):
// the host-facing interface that ties the link, charger, register, and
// schema layers into open/reset/read/write_note/run_charger/close.
package session

import (
	"context"
	"time"

	"github.com/mnh-jansson/m18-protocol/pkg/charger"
	"github.com/mnh-jansson/m18-protocol/pkg/frame"
	"github.com/mnh-jansson/m18-protocol/pkg/link"
	"github.com/mnh-jansson/m18-protocol/pkg/protoerr"
	"github.com/mnh-jansson/m18-protocol/pkg/register"
	"github.com/mnh-jansson/m18-protocol/pkg/schema"
	"github.com/mnh-jansson/m18-protocol/pkg/serialport"
)

// Session is the host-facing handle onto one open link to a pack. It owns
// the serial port and is not safe for concurrent use — the protocol is
// strictly half-duplex lockstep (spec.md §5).
type Session struct {
	port serialport.Port
	ctrl *link.Controller
	reg  *register.Accessor
	chg  *charger.Emulator
}

// Open opens device at the protocol's fixed 4800-baud framing and returns
// a Session ready for Reset.
func Open(device string, v frame.Verbosity) (*Session, error) {
	port, err := serialport.Open(device, serialport.DefaultConfig())
	if err != nil {
		return nil, err
	}
	ctrl := link.New(port, v)
	return &Session{
		port: port,
		ctrl: ctrl,
		reg:  register.New(port, ctrl, v),
		chg:  charger.New(port, ctrl, v),
	}, nil
}

// Reset drives the BREAK-based reset handshake. It must succeed before any
// other Session method is used.
func (s *Session) Reset(ctx context.Context) error {
	return s.ctrl.Reset(ctx)
}

// Read returns the decoded value of a single register.
func (s *Session) Read(id schema.ID) (schema.Value, error) {
	entry, ok := schema.Lookup(id)
	if !ok {
		return schema.Value{}, protoerr.New(protoerr.KindSchemaMiss, "register ID not in table: "+string(id))
	}
	payload, err := s.reg.Read(entry.Addr, entry.Len)
	if err != nil {
		return schema.Value{}, err
	}
	return schema.Decode(id, payload)
}

// ReadRaw returns a register's raw payload without decoding it, for
// callers that persist snapshots rather than display values.
func (s *Session) ReadRaw(id schema.ID) ([]byte, error) {
	entry, ok := schema.Lookup(id)
	if !ok {
		return nil, protoerr.New(protoerr.KindSchemaMiss, "register ID not in table: "+string(id))
	}
	return s.reg.Read(entry.Addr, entry.Len)
}

// ReadMany reads ids in order, stopping at the first error.
func (s *Session) ReadMany(ids []schema.ID) ([]schema.Value, error) {
	out := make([]schema.Value, 0, len(ids))
	for _, id := range ids {
		v, err := s.Read(id)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// WriteNote writes text into the 20-octet user-note window at 0x0023, one
// octet at a time, padding with '-' per spec.md §6.
func (s *Session) WriteNote(text string) error {
	if len(text) > schema.UserNoteLen {
		return protoerr.New(protoerr.KindMalformed, "note exceeds 20 characters")
	}
	entry, ok := schema.Lookup(schema.UserNote)
	if !ok {
		return protoerr.New(protoerr.KindSchemaMiss, "UserNote register missing from table")
	}
	payload := schema.EncodeUserNote(text)
	for i, b := range payload {
		if err := s.reg.WriteByte(entry.Addr+uint16(i), b); err != nil {
			return err
		}
	}
	return nil
}

// RunCharger drives the charger emulator's full sequence. dur <= 0 streams
// until ctx is cancelled; dur > 0 additionally bounds the STREAMING phase.
func (s *Session) RunCharger(ctx context.Context, dur time.Duration) error {
	return s.chg.Run(ctx, dur)
}

// Calibrate invokes the calibrate command directly; it requires a prior
// RunCharger to have reached at least CONFIGURED_1.
func (s *Session) Calibrate() error {
	return s.chg.Calibrate()
}

// Scan runs a brute-force register discovery sweep.
func (s *Session) Scan(ctx context.Context, start, stop uint16, maxLen int, yield func(register.Hit) bool) error {
	return s.reg.Scan(ctx, start, stop, maxLen, yield)
}

// ReadAll performs a priming sweep (discarded) followed by an authoritative
// sweep over the full block list, per spec.md §4.8: reading the 0x9xxx
// bank refreshes the pack's cumulative-statistics RAM, so the first pass's
// values cannot be trusted.
func (s *Session) ReadAll(ctx context.Context) (map[schema.ID]schema.Value, error) {
	if err := s.sweep(ctx, sweepList, nil); err != nil {
		return nil, err
	}
	out := make(map[schema.ID]schema.Value, len(sweepList))
	if err := s.sweep(ctx, sweepList, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadHealthSubset primes the cumulative-statistics RAM the same way
// ReadAll does, then reads only the small set of registers a quick health
// report needs.
func (s *Session) ReadHealthSubset(ctx context.Context) (map[schema.ID]schema.Value, error) {
	if err := s.sweep(ctx, sweepList, nil); err != nil {
		return nil, err
	}
	out := make(map[schema.ID]schema.Value, len(healthSubset))
	if err := s.sweep(ctx, healthSubset, out); err != nil {
		return nil, err
	}
	return out, nil
}

// sweep reads each id in order. A register-level miss (NotAcknowledged,
// Malformed, a single Timeout) is skipped rather than aborting the sweep;
// only a fatal error (port failure, cancellation) stops it. When into is
// non-nil, successfully read values are recorded there.
func (s *Session) sweep(ctx context.Context, ids []schema.ID, into map[schema.ID]schema.Value) error {
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return protoerr.Wrap(protoerr.KindCancelled, "sweep cancelled", ctx.Err())
		default:
		}
		v, err := s.Read(id)
		if err != nil {
			if protoerr.IsFatal(err) {
				return err
			}
			continue
		}
		if into != nil {
			into[id] = v
		}
	}
	return nil
}

// Close idles the line and releases the port. It guarantees IDLE
// regardless of the port's own close error.
func (s *Session) Close() error {
	idleErr := s.ctrl.Idle()
	closeErr := s.port.Close()
	if idleErr != nil {
		return idleErr
	}
	return closeErr
}

// Package link implements the Link Controller: the BREAK-based reset
// handshake, the synchronisation-byte exchange, the session-scoped
// acknowledgement counter (ACC), and the idle/active line state
// (spec.md §4.4).
package link

import (
	"context"
	"time"

	"github.com/mnh-jansson/m18-protocol/pkg/bitrev"
	"github.com/mnh-jansson/m18-protocol/pkg/frame"
	"github.com/mnh-jansson/m18-protocol/pkg/protoerr"
	"github.com/mnh-jansson/m18-protocol/pkg/serialport"
)

// accSequence is the three-value ACC cycle spec.md §3 fixes. Only
// Controller.AdvanceACC walks it; register reads/writes hold ACC at
// accSequence[0] instead, by design (spec.md §9's documented asymmetry —
// preserved here, not generalized).
var accSequence = [3]byte{0x04, 0x0C, 0x1C}

// InitialACC is the ACC value every reset and every configure establishes.
const InitialACC = 0x04

// resetSettle is the hold time for each half of the BREAK/DTR pulse in the
// reset handshake (spec.md §4.4, steps 2-3).
const resetSettle = 300 * time.Millisecond

// interFrameGap is the pause spec.md §4.4 step 6 imposes between the sync
// exchange and the next frame.
const interFrameGap = 10 * time.Millisecond

// syncReadMax is the read deadline for the reset handshake's echoed sync
// byte (spec.md §4.4 step 5). The port's own configured read timeout is
// authoritative; this constant documents the figure spec.md names.
const syncReadMax = 800 * time.Millisecond

// Controller drives a serialport.Port through the M18 link protocol. It is
// not safe for concurrent use from multiple goroutines — the link is
// strictly half-duplex lockstep (spec.md §5).
type Controller struct {
	port serialport.Port
	v    frame.Verbosity
	acc  byte
}

// New wraps port in a Controller. The line is left exactly as the caller
// left it; callers typically call Idle() immediately after New if the line
// state is unknown.
func New(port serialport.Port, v frame.Verbosity) *Controller {
	return &Controller{port: port, v: v, acc: InitialACC}
}

// ACC returns the current acknowledgement-counter value.
func (c *Controller) ACC() byte { return c.acc }

// ResetACC sets ACC back to its initial value without driving the BREAK
// handshake, for the "reset to 0x04 ... before every configure" rule of
// spec.md §4.4.
func (c *Controller) ResetACC() {
	c.acc = InitialACC
}

// AdvanceACC rotates ACC to the next value in {0x04, 0x0C, 0x1C}, wrapping
// back to 0x04 after the third. Call this immediately after sending a
// snapshot or calibration command (spec.md §4.4) — never for register
// reads or writes, which always use 0x04.
func (c *Controller) AdvanceACC() {
	for i, v := range accSequence {
		if v == c.acc {
			c.acc = accSequence[(i+1)%len(accSequence)]
			return
		}
	}
	// Unreachable given the invariant that acc is always a member of
	// accSequence, but fail safe back to the start of the cycle.
	c.acc = accSequence[0]
}

// Idle asserts BREAK and DTR together, the line's quiescent condition
// (spec.md's IDLE glossary entry). The pack does not interpret the host as
// a charger while idle.
func (c *Controller) Idle() error {
	if err := c.port.SetBreak(true); err != nil {
		return protoerr.Wrap(protoerr.KindPortUnavailable, "assert BREAK", err)
	}
	if err := c.port.SetDTR(true); err != nil {
		return protoerr.Wrap(protoerr.KindPortUnavailable, "assert DTR", err)
	}
	return nil
}

// High deasserts BREAK and DTR together.
func (c *Controller) High() error {
	if err := c.port.SetBreak(false); err != nil {
		return protoerr.Wrap(protoerr.KindPortUnavailable, "deassert BREAK", err)
	}
	if err := c.port.SetDTR(false); err != nil {
		return protoerr.Wrap(protoerr.KindPortUnavailable, "deassert DTR", err)
	}
	return nil
}

// HighFor pulses the line high for d, then returns it to idle. Used to
// exercise the pack's signal pin outside of a full reset, e.g. for bench
// testing.
func (c *Controller) HighFor(ctx context.Context, d time.Duration) error {
	if err := c.High(); err != nil {
		return err
	}
	if err := sleep(ctx, d); err != nil {
		c.Idle() // best-effort: still try to leave the line idle
		return err
	}
	return c.Idle()
}

// Reset drives the BREAK-based reset handshake (spec.md §4.4): it resets
// ACC, pulses the line low then high for resetSettle each, transmits the
// sync byte, and expects it echoed back within the port's read timeout.
// The line is always left idle on return, success or failure.
func (c *Controller) Reset(ctx context.Context) error {
	c.acc = InitialACC

	if err := c.Idle(); err != nil {
		return err
	}
	if err := sleep(ctx, resetSettle); err != nil {
		c.Idle()
		return err
	}
	if err := c.High(); err != nil {
		c.Idle()
		return err
	}
	if err := sleep(ctx, resetSettle); err != nil {
		c.Idle()
		return err
	}

	err := frame.Send(c.port, []byte{frame.SyncByte}, c.v)
	if err != nil {
		c.Idle()
		return protoerr.Wrap(protoerr.KindPortUnavailable, "send sync byte", err)
	}

	echo, err := c.port.ReadFull(1)
	if err != nil {
		c.Idle()
		return protoerr.Wrap(protoerr.KindTimeout, "read sync echo", err)
	}
	if bitrev.Byte(echo[0]) != frame.SyncByte {
		c.Idle()
		return protoerr.New(protoerr.KindSyncMismatch, "reset handshake echoed an unexpected byte")
	}

	if err := sleep(ctx, interFrameGap); err != nil {
		c.Idle()
		return err
	}

	return c.Idle()
}

// sleep blocks for d or until ctx is cancelled, whichever comes first,
// returning protoerr.Cancelled in the latter case.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return protoerr.Wrap(protoerr.KindCancelled, "sleep interrupted", ctx.Err())
	}
}

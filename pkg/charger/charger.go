// Package charger implements the Charger Emulator: the fixed command
// sequence and timing loop that mimics a real charger sufficiently for the
// pack to cooperate (spec.md §4.5).
package charger

import (
	"context"
	"time"

	"github.com/mnh-jansson/m18-protocol/pkg/frame"
	"github.com/mnh-jansson/m18-protocol/pkg/link"
	"github.com/mnh-jansson/m18-protocol/pkg/protoerr"
	"github.com/mnh-jansson/m18-protocol/pkg/serialport"
)

// State is one of the nine charger-session states of spec.md §4.5.
type State int

const (
	Disconnected State = iota
	Reset
	Configured2
	SnapshottedA
	Keepalive
	Configured1
	SnapshottedB
	Streaming
	Aborted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Reset:
		return "RESET"
	case Configured2:
		return "CONFIGURED_2"
	case SnapshottedA:
		return "SNAPSHOTTED_A"
	case Keepalive:
		return "KEEPALIVE"
	case Configured1:
		return "CONFIGURED_1"
	case SnapshottedB:
		return "SNAPSHOTTED_B"
	case Streaming:
		return "STREAMING"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Opcodes for the charger's four command frames (spec.md §4.5 and §6).
const (
	opCalibrate byte = 0x55
	opConfigure byte = 0x60
	opSnapshot  byte = 0x61
	opKeepalive byte = 0x62
)

const (
	cutoffCurrent uint16 = 300
	maxCurrent    uint16 = 6000

	// configureThird is the fixed "8 args follow" third octet of configure.
	configureThird byte = 0x08
	configureTail  byte = 13

	bulkMode        byte = 2
	maintenanceMode byte = 1
)

const (
	firstKeepaliveDelay = 600 * time.Millisecond
	streamKeepaliveGap  = 500 * time.Millisecond
)

// Emulator drives the charger state machine over a link.Controller. It is
// not safe for concurrent use.
type Emulator struct {
	port  serialport.Port
	ctrl  *link.Controller
	v     frame.Verbosity
	state State

	// configured1 records whether the latest Run reached CONFIGURED_1;
	// state alone cannot tell, since every Run ends in ABORTED.
	configured1 bool
}

// New builds an Emulator bound to an already-reset link. Callers should
// call ctrl.Reset before constructing an Emulator, or call Run, which
// resets internally.
func New(port serialport.Port, ctrl *link.Controller, v frame.Verbosity) *Emulator {
	return &Emulator{port: port, ctrl: ctrl, v: v, state: Disconnected}
}

// State returns the emulator's current state.
func (e *Emulator) State() State { return e.state }

// configure sends opcode 0x60 with the fixed current limits and the given
// mode (2=bulk, 1=maintenance), resetting ACC to 0x04 first per spec.md
// §4.4 ("Reset to 0x04 ... before every configure").
func (e *Emulator) configure(mode byte) error {
	e.ctrl.ResetACC()
	acc := e.ctrl.ACC()
	cmd := frame.BuildCommand(opConfigure, acc, configureThird,
		byte(cutoffCurrent>>8), byte(cutoffCurrent&0xFF),
		byte(maxCurrent>>8), byte(maxCurrent&0xFF),
		byte(maxCurrent>>8), byte(maxCurrent&0xFF),
		mode, configureTail)
	if err := frame.Send(e.port, cmd, e.v); err != nil {
		return err
	}
	_, err := frame.ParseResponse(e.port, 5, e.v)
	return err
}

// snapshot sends opcode 0x61, the exchange that causes the pack to commit
// an updated telemetry frame into its accessible RAM, then advances ACC.
func (e *Emulator) snapshot() error {
	acc := e.ctrl.ACC()
	cmd := frame.BuildCommand(opSnapshot, acc, 0x00)
	if err := frame.Send(e.port, cmd, e.v); err != nil {
		return err
	}
	if _, err := frame.ParseResponse(e.port, 8, e.v); err != nil {
		return err
	}
	e.ctrl.AdvanceACC()
	return nil
}

// keepalive sends opcode 0x62, the exchange that sustains the pack's
// awareness of a connected charger. ACC is not advanced.
func (e *Emulator) keepalive() error {
	acc := e.ctrl.ACC()
	cmd := frame.BuildCommand(opKeepalive, acc, 0x00)
	if err := frame.Send(e.port, cmd, e.v); err != nil {
		return err
	}
	_, err := frame.ParseResponse(e.port, 9, e.v)
	return err
}

// Calibrate sends opcode 0x55 and advances ACC. It is not part of the
// fixed Run sequence — the original tool exposes it as a free-standing
// operation callers can invoke once a session has reached CONFIGURED_1,
// and this module preserves that shape rather than inventing a new state-
// machine edge (see SPEC_FULL.md §5). It is refused unless the latest Run
// reached CONFIGURED_1.
func (e *Emulator) Calibrate() error {
	if !e.configured1 {
		return protoerr.New(protoerr.KindNotAcknowledged, "calibrate requires a run that reached CONFIGURED_1")
	}
	acc := e.ctrl.ACC()
	cmd := frame.BuildCommand(opCalibrate, acc, 0x00)
	if err := frame.Send(e.port, cmd, e.v); err != nil {
		return err
	}
	if _, err := frame.ParseResponse(e.port, 8, e.v); err != nil {
		return err
	}
	e.ctrl.AdvanceACC()
	return nil
}

// Run drives the full configure(2) -> snapshot -> keepalive -> configure(1)
// -> snapshot -> {keepalive every ~500ms} sequence of spec.md §4.5. It
// resets the link first. The STREAMING loop runs until ctx is cancelled or
// dur elapses, whichever comes first; pass dur <= 0 to stream until ctx
// is cancelled. On any error, or on cancellation, the emulator
// transitions to Aborted and unconditionally idles the line before
// returning.
func (e *Emulator) Run(ctx context.Context, dur time.Duration) error {
	e.state = Disconnected
	e.configured1 = false

	abort := func(err error) error {
		e.state = Aborted
		e.ctrl.Idle()
		return err
	}

	if err := e.ctrl.Reset(ctx); err != nil {
		return abort(err)
	}
	e.state = Reset

	if err := e.configure(bulkMode); err != nil {
		return abort(err)
	}
	e.state = Configured2

	if err := e.snapshot(); err != nil {
		return abort(err)
	}
	e.state = SnapshottedA

	if err := sleepCtx(ctx, firstKeepaliveDelay); err != nil {
		return abort(err)
	}
	if err := e.keepalive(); err != nil {
		return abort(err)
	}
	e.state = Keepalive

	if err := e.configure(maintenanceMode); err != nil {
		return abort(err)
	}
	e.state = Configured1
	e.configured1 = true

	if err := e.snapshot(); err != nil {
		return abort(err)
	}
	e.state = SnapshottedB

	e.state = Streaming
	var deadline <-chan time.Time
	if dur > 0 {
		timer := time.NewTimer(dur)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		select {
		case <-ctx.Done():
			e.state = Aborted
			e.ctrl.Idle()
			return protoerr.Wrap(protoerr.KindCancelled, "charger session cancelled", ctx.Err())
		case <-deadline:
			e.state = Aborted
			return e.ctrl.Idle()
		default:
		}
		if err := sleepCtx(ctx, streamKeepaliveGap); err != nil {
			return abort(err)
		}
		if err := e.keepalive(); err != nil {
			return abort(err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return protoerr.Wrap(protoerr.KindCancelled, "sleep interrupted", ctx.Err())
	}
}

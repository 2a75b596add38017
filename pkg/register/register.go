// Package register implements Register Access: typed read and write-byte
// operations over the "01" (read) and "01/05" (write) command opcodes
// (spec.md §4.6), plus a brute-force discovery scan.
package register

import (
	"context"

	"github.com/mnh-jansson/m18-protocol/pkg/bitrev"
	"github.com/mnh-jansson/m18-protocol/pkg/frame"
	"github.com/mnh-jansson/m18-protocol/pkg/link"
	"github.com/mnh-jansson/m18-protocol/pkg/protoerr"
	"github.com/mnh-jansson/m18-protocol/pkg/serialport"
)

const (
	opReadWrite byte = 0x01
	subRead     byte = 0x03
	subWrite    byte = 0x05

	// readWriteACC is the ACC value every read/write command uses,
	// regardless of the Controller's cycling ACC state — the documented
	// asymmetry of spec.md §9, preserved rather than generalized.
	readWriteACC byte = 0x04
)

// Accessor performs register reads and writes over an already-reset link.
// Every method requires the preceding Controller.Reset to have succeeded,
// and every method leaves the line idle when it returns.
type Accessor struct {
	port serialport.Port
	ctrl *link.Controller
	v    frame.Verbosity
}

// New builds an Accessor bound to port and ctrl.
func New(port serialport.Port, ctrl *link.Controller, v frame.Verbosity) *Accessor {
	return &Accessor{port: port, ctrl: ctrl, v: v}
}

// Read issues a read of n octets at addr16 and returns the decoded
// payload. It returns protoerr.NotAcknowledged if the response status is
// not the data-OK discriminator.
func (a *Accessor) Read(addr uint16, n int) (_ []byte, err error) {
	defer func() {
		if idleErr := a.ctrl.Idle(); err == nil {
			err = idleErr
		}
	}()

	cmd := frame.BuildCommand(opReadWrite, readWriteACC, subRead,
		byte(addr>>8), byte(addr), byte(n))
	if err := frame.Send(a.port, cmd, a.v); err != nil {
		return nil, err
	}
	resp, err := frame.ParseResponse(a.port, n+5, a.v)
	if err != nil {
		return nil, err
	}
	if resp.Short || resp.Status != frame.StatusDataOK {
		return nil, protoerr.New(protoerr.KindNotAcknowledged, "read response was not data-OK")
	}
	return resp.Payload, nil
}

// WriteByte writes a single octet to addr16. It returns
// protoerr.NotAcknowledged unless the response begins with the write-OK
// discriminator.
func (a *Accessor) WriteByte(addr uint16, value byte) (err error) {
	defer func() {
		if idleErr := a.ctrl.Idle(); err == nil {
			err = idleErr
		}
	}()

	cmd := frame.BuildCommand(opReadWrite, readWriteACC, subWrite,
		byte(addr>>8), byte(addr), value)
	if err := frame.Send(a.port, cmd, a.v); err != nil {
		return err
	}
	// The write ack is two bare octets (status, code) with no length or
	// checksum, so it is read directly rather than through ParseResponse.
	ack, err := a.port.ReadFull(2)
	if err != nil {
		return protoerr.Wrap(protoerr.KindTimeout, "read write ack", err)
	}
	if bitrev.Byte(ack[0]) != frame.StatusWriteOK {
		return protoerr.New(protoerr.KindNotAcknowledged, "write response was not write-OK")
	}
	return nil
}

// Hit is one discovered (address, length) pair that produced a data-OK
// response during a Scan.
type Hit struct {
	Addr    uint16
	Len     int
	Payload []byte
}

// Scan is a discovery tool (spec.md §4.6): for each address in
// [start, stop) and each length in [0, maxLen], it issues a read and
// reports any response whose status is data-OK. It never advances ACC and
// is cancellable via ctx, since a full sweep over a 16-bit address range
// can run indefinitely. Hits are delivered to yield as they are found;
// Scan returns when the range is exhausted, ctx is cancelled, or yield
// returns false.
func (a *Accessor) Scan(ctx context.Context, start, stop uint16, maxLen int, yield func(Hit) bool) error {
	for addr := start; addr < stop; addr++ {
		for n := 0; n <= maxLen; n++ {
			select {
			case <-ctx.Done():
				return protoerr.Wrap(protoerr.KindCancelled, "scan cancelled", ctx.Err())
			default:
			}
			payload, err := a.Read(addr, n)
			if err == nil {
				if !yield(Hit{Addr: addr, Len: n, Payload: payload}) {
					return nil
				}
			}
			// Not-acknowledged and malformed responses are expected noise
			// during a brute-force sweep; only a genuine port failure or
			// cancellation aborts the scan outright.
			if protoerr.IsFatal(err) {
				return err
			}
		}
	}
	return nil
}

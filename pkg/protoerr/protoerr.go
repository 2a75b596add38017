// Package protoerr defines the error kinds surfaced by the link and
// protocol layer (see spec.md §7). Every error returned across a package
// boundary in this module is either one of these kinds or wraps one.
package protoerr

import "fmt"

// Kind identifies one of the fixed error categories the protocol layer can
// surface. Callers should compare kinds with errors.Is against the sentinel
// values below, not by inspecting error strings.
type Kind int

const (
	// KindPortUnavailable is raised when the UART itself cannot be opened,
	// or when a port-level operation (input flush, BREAK/DTR control,
	// sending the sync byte) fails.
	KindPortUnavailable Kind = iota
	// KindTimeout is raised when a read did not complete within the port's
	// read deadline.
	KindTimeout
	// KindSyncMismatch is raised when the reset handshake's echoed byte is
	// not the sync octet.
	KindSyncMismatch
	// KindNotAcknowledged is raised when a response status byte is neither
	// the data-OK nor write-OK discriminator.
	KindNotAcknowledged
	// KindMalformed is raised when a response is shorter than the header
	// declares it should be.
	KindMalformed
	// KindSchemaMiss is raised when a register ID has no entry in the
	// schema table.
	KindSchemaMiss
	// KindCancelled is raised when a caller-supplied context is cancelled
	// mid-operation. It is a normal exit, not a fault.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindPortUnavailable:
		return "port unavailable"
	case KindTimeout:
		return "timeout"
	case KindSyncMismatch:
		return "sync mismatch"
	case KindNotAcknowledged:
		return "not acknowledged"
	case KindMalformed:
		return "malformed response"
	case KindSchemaMiss:
		return "schema miss"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type returned by this module. It carries a
// Kind so callers can branch on category with errors.Is, plus an optional
// wrapped cause for additional context.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, protoerr.Timeout) (and friends, declared below)
// match any *Error of the same Kind regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind with a message and an underlying
// cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IsFatal reports whether err should abort a long-running sweep outright
// rather than being treated as one more miss. Port failures and explicit
// cancellation are fatal; a register simply not answering (NotAcknowledged,
// Malformed, or a single-frame Timeout) is expected noise during discovery.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	e, ok := err.(*Error)
	if !ok {
		return true
	}
	switch e.Kind {
	case KindPortUnavailable, KindCancelled:
		return true
	default:
		return false
	}
}

// Sentinel values for errors.Is comparisons, one per Kind. These carry no
// message or cause; Error.Is ignores both when matching.
var (
	PortUnavailable = &Error{Kind: KindPortUnavailable}
	Timeout         = &Error{Kind: KindTimeout}
	SyncMismatch    = &Error{Kind: KindSyncMismatch}
	NotAcknowledged = &Error{Kind: KindNotAcknowledged}
	Malformed       = &Error{Kind: KindMalformed}
	SchemaMiss      = &Error{Kind: KindSchemaMiss}
	Cancelled       = &Error{Kind: KindCancelled}
)

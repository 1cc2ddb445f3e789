package driftcdp

import "fmt"

// Kind classifies the error conditions the core can surface. It mirrors
// the conceptual error kinds of the protocol-plane design: protocol
// replies, session teardown, bounded waits, caller misuse, unsupported
// operations, and expectations that never matched.
type Kind int

// Error kinds.
const (
	// KindProtocol means the browser replied with {error: {code, message}}.
	KindProtocol Kind = iota
	// KindSessionClosed means the transport dropped or Close was called;
	// every pending operation on the Connection completes with this kind.
	KindSessionClosed
	// KindTimeout means a bounded wait exceeded its deadline.
	KindTimeout
	// KindArgument means the caller misused an API (bad chord, a handler
	// passed without an event type, a multi-character string where a
	// single key was required).
	KindArgument
	// KindNotImplemented means the caller asked the key-event compiler
	// for an emission mode it doesn't vend (bare keyDown/keyUp/rawKeyDown).
	KindNotImplemented
	// KindPredicateUnmatched means an Expectation's scope exited before
	// its URL predicate ever matched a request.
	KindPredicateUnmatched
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol-error"
	case KindSessionClosed:
		return "session-closed"
	case KindTimeout:
		return "timeout-error"
	case KindArgument:
		return "argument-error"
	case KindNotImplemented:
		return "not-implemented"
	case KindPredicateUnmatched:
		return "predicate-unmatched"
	default:
		return "unknown-error"
	}
}

// Error is the error type raised by the core. It carries a Kind so
// callers can branch with errors.Is/errors.As against the sentinel
// values below, plus an optional wrapped cause (e.g. a protocol error
// code/message, or the underlying context error for a timeout).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrSessionClosed) etc. match on Kind alone,
// ignoring Message/Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapErr(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel errors for use with errors.Is. Only Kind is compared.
var (
	ErrSessionClosed      = newErr(KindSessionClosed, "session closed")
	ErrTimeout            = newErr(KindTimeout, "timed out")
	ErrArgument           = newErr(KindArgument, "invalid argument")
	ErrNotImplemented     = newErr(KindNotImplemented, "not implemented")
	ErrPredicateUnmatched = newErr(KindPredicateUnmatched, "predicate never matched")
)

// protocolErr wraps a {code, message} reply from the browser (a
// *cdproto.Error, which already implements error) as a Kind-tagged Error.
func protocolErr(cause error) *Error {
	return wrapErr(KindProtocol, "command failed", cause)
}

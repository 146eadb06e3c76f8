// Package errs defines the closed set of error kinds the engine and
// supervisor distinguish on, so callers can branch on kind without string
// matching.
package errs

import "fmt"

type Kind string

const (
	Transport              Kind = "transport"
	Origin                 Kind = "origin"
	RangeUnsupported       Kind = "range_unsupported"
	Journal                Kind = "journal"
	FileSystem             Kind = "filesystem"
	Verification           Kind = "verification"
	InvalidStateTransition Kind = "invalid_state_transition"
	NotFound               Kind = "not_found"
	Config                 Kind = "config"
)

// Error wraps an underlying cause with a Kind so the supervisor can route
// it without inspecting message text.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is an *Error of the given kind, unwrapping as
// needed.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

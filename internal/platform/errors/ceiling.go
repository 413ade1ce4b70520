package errors

import (
	"context"
	stderrs "errors"
)

// Ceiling names which hard external limit stopped work
type Ceiling uint8

const (
	// CeilingNone is the zero value for errors that are not ceilings
	CeilingNone Ceiling = iota

	// CeilingRequests is the per-run outbound request budget
	CeilingRequests

	// CeilingConnections is storage connection exhaustion
	CeilingConnections

	// CeilingWallClock is the entry point's wall-clock budget
	CeilingWallClock
)

// String renders the ceiling kind for cursors and logs
func (c Ceiling) String() string {
	switch c {
	case CeilingRequests:
		return "requests"
	case CeilingConnections:
		return "connections"
	case CeilingWallClock:
		return "wall_clock"
	default:
		return "none"
	}
}

// Ceiling sentinels. Match with errors.Is or IsResourceCeiling; never by message
var (
	ErrRequestCeiling    error = &Error{code: ErrorCodeResourceCeiling, ceiling: CeilingRequests, msg: "request ceiling reached"}
	ErrConnectionCeiling error = &Error{code: ErrorCodeResourceCeiling, ceiling: CeilingConnections, msg: "storage connection ceiling reached"}
	ErrWallClockCeiling  error = &Error{code: ErrorCodeResourceCeiling, ceiling: CeilingWallClock, msg: "wall clock budget spent"}
)

// NewCeiling wraps orig as a ceiling of kind c
func NewCeiling(c Ceiling, orig error, msg string) error {
	return &Error{code: ErrorCodeResourceCeiling, ceiling: c, msg: msg, orig: orig}
}

// IsResourceCeiling reports whether err carries any ceiling kind
func IsResourceCeiling(err error) bool { return CeilingOf(err) != CeilingNone }

// CeilingOf returns the ceiling kind of the outermost ceiling error in the chain
func CeilingOf(err error) Ceiling {
	for err != nil {
		e, ok := As(err)
		if !ok {
			return CeilingNone
		}
		if e.code == ErrorCodeResourceCeiling {
			return e.ceiling
		}
		err = e.orig
	}
	return CeilingNone
}

// Halts reports errors that must stop a run rather than be counted:
// rejected credentials, ceilings and cancellation
func Halts(err error) bool {
	if err == nil {
		return false
	}
	return IsCode(err, ErrorCodeUnauthorized) ||
		IsResourceCeiling(err) ||
		stderrs.Is(err, context.Canceled) ||
		stderrs.Is(err, context.DeadlineExceeded)
}

package types

import (
	"fmt"
)

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies failures so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindUndefined           ErrKind = iota // unclassified failure
	ErrKindNullPtr                            // nil buffer, region or callback
	ErrKindOutOfBounds                        // index past count or capacity
	ErrKindInUse                              // slot or resource already live
	ErrKindInsufficientMemory                 // allocation, growth or capacity ceiling failure
	ErrKindInvalidMemory                      // shrink below used, holes, bad layout
	ErrKindUninitializedMemory                // header or element read before initialization
	ErrKindMissingData                        // expected entry absent
	ErrKindInvalidArguments                   // caller passed an unusable argument
	ErrKindSystem                             // OS / syscall failure
	ErrKindUnimplemented                      // operation deliberately not implemented
)

var kindNames = [...]string{
	ErrKindUndefined:           "undefined",
	ErrKindNullPtr:             "null pointer",
	ErrKindOutOfBounds:         "out of bounds",
	ErrKindInUse:               "in use",
	ErrKindInsufficientMemory:  "insufficient memory",
	ErrKindInvalidMemory:       "invalid memory",
	ErrKindUninitializedMemory: "uninitialized memory",
	ErrKindMissingData:         "missing data",
	ErrKindInvalidArguments:    "invalid arguments",
	ErrKindSystem:              "system",
	ErrKindUnimplemented:       "unimplemented code",
}

func (k ErrKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("ErrKind(%d)", int(k))
	}
	return kindNames[k]
}

// Error is a typed error with an optional underlying cause and the source
// location that raised it.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause

	File string
	Line int
	Func string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Location formats the raising call site as file:line (func).
func (e *Error) Location() string {
	if e == nil || e.File == "" {
		return ""
	}
	if e.Func == "" {
		return fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	return fmt.Sprintf("%s:%d (%s)", e.File, e.Line, e.Func)
}

// Sentinels, one per kind. Errors raised through the fatal path wrap the
// sentinel of their kind so errors.Is works against these values.
var (
	ErrUndefined           = &Error{Kind: ErrKindUndefined, Msg: "undefined error"}
	ErrNullPtr             = &Error{Kind: ErrKindNullPtr, Msg: "null pointer"}
	ErrOutOfBounds         = &Error{Kind: ErrKindOutOfBounds, Msg: "out of bounds"}
	ErrInUse               = &Error{Kind: ErrKindInUse, Msg: "in use"}
	ErrInsufficientMemory  = &Error{Kind: ErrKindInsufficientMemory, Msg: "insufficient memory"}
	ErrInvalidMemory       = &Error{Kind: ErrKindInvalidMemory, Msg: "invalid memory"}
	ErrUninitializedMemory = &Error{Kind: ErrKindUninitializedMemory, Msg: "uninitialized memory"}
	ErrMissingData         = &Error{Kind: ErrKindMissingData, Msg: "missing data"}
	ErrInvalidArguments    = &Error{Kind: ErrKindInvalidArguments, Msg: "invalid arguments"}
	ErrSystem              = &Error{Kind: ErrKindSystem, Msg: "system error"}
	ErrUnimplemented       = &Error{Kind: ErrKindUnimplemented, Msg: "unimplemented code"}
)

// Sentinel returns the package sentinel for kind.
func Sentinel(kind ErrKind) *Error {
	switch kind {
	case ErrKindNullPtr:
		return ErrNullPtr
	case ErrKindOutOfBounds:
		return ErrOutOfBounds
	case ErrKindInUse:
		return ErrInUse
	case ErrKindInsufficientMemory:
		return ErrInsufficientMemory
	case ErrKindInvalidMemory:
		return ErrInvalidMemory
	case ErrKindUninitializedMemory:
		return ErrUninitializedMemory
	case ErrKindMissingData:
		return ErrMissingData
	case ErrKindInvalidArguments:
		return ErrInvalidArguments
	case ErrKindSystem:
		return ErrSystem
	case ErrKindUnimplemented:
		return ErrUnimplemented
	default:
		return ErrUndefined
	}
}

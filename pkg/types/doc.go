// Package types defines the error taxonomy shared by every memkit container.
//
// Containers in memkit treat violated preconditions as fatal: the raising call
// site builds an *Error with a stable ErrKind and its source location, and
// the internal crash path panics with it. Callers that need to survive a
// failure (tests, tools embedding the containers) recover the panic and
// branch on Kind or errors.Is against the per-kind sentinels.
//
// This package has no dependencies beyond the standard library.
package types

package fair

import (
	"errors"
	"fmt"
)

// Sentinel errors. The structured error types below match them with errors.Is.
var (
	ErrValidation     = errors.New("invalid input")
	ErrNotReady       = errors.New("model not ready for calculation")
	ErrUnknownNode    = errors.New("unknown node")
	ErrLengthMismatch = errors.New("vector length mismatch")
	ErrNotCalculated  = errors.New("model has not been calculated")

	// ErrInvalidTransition is returned when a status other than Supplied or
	// Calculated is pushed into the tree.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStalled means calculable nodes remained but none could be computed.
	ErrStalled = errors.New("calculation stalled")

	// ErrInvalidDocument is returned for serialised models that cannot be
	// read back.
	ErrInvalidDocument = errors.New("invalid model document")
)

// ValidationError reports malformed or out-of-range distribution parameters.
type ValidationError struct {
	Factor string // Node the input was destined for
	Param  string // Offending parameter or parameter set
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%q: parameter %q %s", e.Factor, e.Param, e.Reason)
	}
	return fmt.Sprintf("%q: %s", e.Factor, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotReadyError is returned by CalculateAll while any node is still Required.
type NotReadyError struct {
	Statuses Statuses
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("not ready for calculation, required: %v; statuses:\n%s", e.Statuses.Required(), e.Statuses)
}

// Is reports whether target is ErrNotReady.
func (e *NotReadyError) Is(target error) bool {
	return target == ErrNotReady
}

// UnknownNodeError is returned for names outside the fixed taxonomy.
type UnknownNodeError struct {
	Name string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node %q", e.Name)
}

// Is reports whether target is ErrUnknownNode.
func (e *UnknownNodeError) Is(target error) bool {
	return target == ErrUnknownNode
}

// LengthMismatchError reports a vector whose length differs from the
// configured simulation count.
type LengthMismatchError struct {
	Factor string
	Want   int
	Got    int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("%q: expected %d values, got %d", e.Factor, e.Want, e.Got)
}

// Is reports whether target is ErrLengthMismatch.
func (e *LengthMismatchError) Is(target error) bool {
	return target == ErrLengthMismatch
}

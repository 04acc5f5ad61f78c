package vector

import "fmt"

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
// The add or search call it aborts leaves the index untouched.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrCorruptIndex indicates that a persisted index could not be decoded.
// It is always surfaced to the caller; the loader never silently replaces a
// corrupt file with an empty index, since that would destroy data invisibly.
//
// The underlying decode error (if any) can be accessed via errors.Unwrap.
type ErrCorruptIndex struct {
	Path  string
	cause error
}

func (e *ErrCorruptIndex) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("corrupt index %s: %v", e.Path, e.cause)
	}
	return fmt.Sprintf("corrupt index %s", e.Path)
}

func (e *ErrCorruptIndex) Unwrap() error { return e.cause }

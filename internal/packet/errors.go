package packet

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned by setters when a value is outside the field range.
	ErrOutOfRange = errors.New("value out of range")
	// ErrIndex is returned by indexed accessors (ports, macros, remotes).
	ErrIndex = errors.New("index out of bounds")
)

// RangeError describes a rejected field assignment.
type RangeError struct {
	Field    string
	Value    int
	Min, Max int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %d not in [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// IndexError describes an out of bounds index on an array field.
type IndexError struct {
	Field string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: index %d out of bounds [0, %d)", e.Field, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndex }

func checkRange(field string, v, min, max int) error {
	if v < min || v > max {
		return &RangeError{Field: field, Value: v, Min: min, Max: max}
	}
	return nil
}

func checkIndex(field string, i, n int) error {
	if i < 0 || i >= n {
		return &IndexError{Field: field, Index: i, Len: n}
	}
	return nil
}

package shape

import (
	"errors"
	"fmt"
)

// ErrShapeContract is the root of the shape error taxonomy. Every error in
// this package matches it with errors.Is.
var ErrShapeContract = errors.New("shape contract violated")

// RankMismatchError reports that actual and expected shapes have a different
// number of axes.
type RankMismatchError struct {
	Tensor   string
	Expected int
	Actual   int
}

func (e *RankMismatchError) Error() string {
	return fmt.Sprintf("%srank mismatch: expected %d axes, got %d", prefix(e.Tensor), e.Expected, e.Actual)
}

func (e *RankMismatchError) Unwrap() error { return ErrShapeContract }

// ShapeMismatchError reports the first axis whose actual size differs from a
// concrete expected size.
type ShapeMismatchError struct {
	Tensor   string
	Axis     int
	Expected Dim
	Actual   Dim
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%sshape mismatch at axis %d: expected %s, got %s",
		prefix(e.Tensor), e.Axis, e.Expected, e.Actual)
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeContract }

// ArityError reports a different number of tensors than declared.
type ArityError struct {
	Role     string
	Expected int
	Actual   int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("expected %d %s tensor(s), got %d", e.Expected, e.Role, e.Actual)
}

func (e *ArityError) Unwrap() error { return ErrShapeContract }

// UnresolvedShapeError reports a dynamic axis where a concrete size was
// required, e.g. when allocating a buffer.
type UnresolvedShapeError struct {
	Shape Shape
	Axis  int
}

func (e *UnresolvedShapeError) Error() string {
	return fmt.Sprintf("shape %v: axis %d is dynamic; a concrete size is required", e.Shape, e.Axis)
}

func (e *UnresolvedShapeError) Unwrap() error { return ErrShapeContract }

func prefix(tensor string) string {
	if tensor == "" {
		return ""
	}

	return tensor + ": "
}

package onnx

import (
	"fmt"

	"github.com/example/go-ort-smoke/internal/shape"
)

// Tensor is a float32 buffer with a concrete shape. It owns its data and
// hands out copies, so a produced tensor is read-only.
type Tensor struct {
	shape shape.Shape
	data  []float32
}

// NewTensor copies data into a tensor of the given shape. The shape must be
// concrete and its element count must equal len(data).
func NewTensor(data []float32, s shape.Shape) (*Tensor, error) {
	count, err := s.ElementCount()
	if err != nil {
		return nil, err
	}

	if count != len(data) {
		return nil, fmt.Errorf("shape %v expects %d elements, got %d", s, count, len(data))
	}

	return &Tensor{
		shape: s.Clone(),
		data:  append([]float32(nil), data...),
	}, nil
}

// NewTensorInt64Shape is NewTensor for shapes reported by ORT bindings.
func NewTensorInt64Shape(data []float32, dims []int64) (*Tensor, error) {
	for i, d := range dims {
		if d < 1 {
			return nil, fmt.Errorf("shape %v: axis %d=%d is not positive", dims, i, d)
		}
	}

	return NewTensor(data, shape.Of(dims...))
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() shape.Shape {
	return t.shape.Clone()
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Data returns a copy of the tensor's elements in row-major order.
func (t *Tensor) Data() []float32 {
	return append([]float32(nil), t.data...)
}

// At returns the element at flat index i.
func (t *Tensor) At(i int) float32 {
	return t.data[i]
}

// ExtractFloat32 copies the float32 payload out of a tensor or slice.
func ExtractFloat32(output any) ([]float32, error) {
	switch out := output.(type) {
	case []float32:
		return append([]float32(nil), out...), nil
	case *Tensor:
		if out == nil {
			return nil, fmt.Errorf("expected *Tensor output, got nil")
		}

		return out.Data(), nil
	case nil:
		return nil, fmt.Errorf("output is nil")
	default:
		return nil, fmt.Errorf("expected []float32 output, got %T", output)
	}
}

func tensorShapes(ts []*Tensor) []shape.Shape {
	out := make([]shape.Shape, len(ts))
	for i, t := range ts {
		if t == nil {
			continue
		}

		out[i] = t.Shape()
	}

	return out
}

package onnx

import (
	"fmt"
	"strings"

	"github.com/example/go-ort-smoke/internal/shape"
	"gonum.org/v1/gonum/floats"
)

// Generator returns the value for flat (row-major) index i of a buffer.
type Generator func(i int) float32

// Fill allocates a tensor for s and sets element i to gen(i). Every axis of s
// must be concrete; a dynamic axis fails with *shape.UnresolvedShapeError.
func Fill(s shape.Shape, gen Generator) (*Tensor, error) {
	if gen == nil {
		return nil, fmt.Errorf("fill %v: nil generator", s)
	}

	count, err := s.ElementCount()
	if err != nil {
		return nil, err
	}

	data := make([]float32, count)
	for i := range data {
		data[i] = gen(i)
	}

	return &Tensor{shape: s.Clone(), data: data}, nil
}

// Linspace returns a generator of n values evenly spaced over [0, 1], the
// first being 0 and the last 1. With n == 1 the only value is 0. Indices
// outside [0, n) are clamped, so a buffer longer than n repeats 1.
func Linspace(n int) Generator {
	if n < 2 {
		return Zeros
	}

	span := floats.Span(make([]float64, n), 0, 1)

	return func(i int) float32 {
		return float32(span[min(max(i, 0), n-1)])
	}
}

// Zeros sets every element to 0.
func Zeros(int) float32 { return 0 }

// Constant returns a generator that sets every element to v.
func Constant(v float32) Generator {
	return func(int) float32 { return v }
}

// Fill modes accepted by GeneratorFor.
const (
	FillLinspace = "linspace"
	FillZeros    = "zeros"
	FillOnes     = "ones"
)

// GeneratorFor maps a fill mode name to a generator for n elements.
func GeneratorFor(mode string, n int) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", FillLinspace:
		return Linspace(n), nil
	case FillZeros:
		return Zeros, nil
	case FillOnes:
		return Constant(1), nil
	default:
		return nil, fmt.Errorf("unknown fill mode %q (expected %s|%s|%s)", mode, FillLinspace, FillZeros, FillOnes)
	}
}

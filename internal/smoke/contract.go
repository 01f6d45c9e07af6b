package smoke

import (
	"fmt"

	"github.com/example/go-ort-smoke/internal/onnx"
	"github.com/example/go-ort-smoke/internal/shape"
)

// Contract is an explicit list of expected input and output shapes, in
// declared order. A nil list is not checked.
type Contract struct {
	Inputs  []shape.Shape
	Outputs []shape.Shape
}

// ParseContract parses shape strings such as "1,3,256,256".
func ParseContract(inputs, outputs []string) (Contract, error) {
	var c Contract

	var err error

	c.Inputs, err = parseShapes("contract.inputs", inputs)
	if err != nil {
		return Contract{}, err
	}

	c.Outputs, err = parseShapes("contract.outputs", outputs)
	if err != nil {
		return Contract{}, err
	}

	return c, nil
}

func parseShapes(key string, raw []string) ([]shape.Shape, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	out := make([]shape.Shape, len(raw))
	for i, r := range raw {
		s, err := shape.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}

		out[i] = s
	}

	return out, nil
}

// Empty reports whether the contract checks nothing.
func (c Contract) Empty() bool {
	return c.Inputs == nil && c.Outputs == nil
}

// CheckDescriptor asserts the model's declared shapes against the contract.
// A dynamic declared axis satisfies any contract size.
func (c Contract) CheckDescriptor(desc *onnx.ModelDescriptor) error {
	if c.Inputs != nil {
		if err := checkDeclared("input", desc.InputShapes(), c.Inputs); err != nil {
			return err
		}
	}

	if c.Outputs != nil {
		if err := checkDeclared("output", desc.OutputShapes(), c.Outputs); err != nil {
			return err
		}
	}

	return nil
}

// CheckOutputs asserts actual run outputs against the output contract.
func (c Contract) CheckOutputs(desc *onnx.ModelDescriptor, outputs []*onnx.Tensor) error {
	if c.Outputs == nil {
		return nil
	}

	actual := make([]shape.Shape, len(outputs))
	for i, t := range outputs {
		actual[i] = t.Shape()
	}

	return shape.AssertAll("output", actual, named(desc.OutputNames(), c.Outputs))
}

func checkDeclared(role string, declared []shape.Named, expected []shape.Shape) error {
	if len(declared) != len(expected) {
		return &shape.ArityError{Role: role, Expected: len(expected), Actual: len(declared)}
	}

	for i, d := range declared {
		got := d.Shape.Clone()
		want := expected[i]

		if len(got) == len(want) {
			for axis, dim := range got {
				if dim.IsDynamic() {
					got[axis] = want[axis]
				}
			}
		}

		if err := shape.AssertTensor(shape.Label(role, i, d.Name), got, want); err != nil {
			return err
		}
	}

	return nil
}

func named(names []string, shapes []shape.Shape) []shape.Named {
	out := make([]shape.Named, len(shapes))
	for i, s := range shapes {
		out[i] = shape.Named{Shape: s}
		if i < len(names) {
			out[i].Name = names[i]
		}
	}

	return out
}

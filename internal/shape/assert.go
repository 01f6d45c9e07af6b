package shape

import "fmt"

// Named is a declared shape together with the tensor name it belongs to.
type Named struct {
	Name  string
	Shape Shape
}

// AssertShape checks actual against expected. Ranks must match, and every
// concrete expected axis must equal the actual axis. Dynamic expected axes
// accept any actual size. The first failing axis aborts the comparison.
func AssertShape(actual, expected Shape) error {
	return AssertTensor("", actual, expected)
}

// AssertTensor is AssertShape with a tensor label carried in the error.
func AssertTensor(label string, actual, expected Shape) error {
	if len(actual) != len(expected) {
		return &RankMismatchError{Tensor: label, Expected: len(expected), Actual: len(actual)}
	}

	for i, want := range expected {
		if want.IsDynamic() {
			continue
		}

		if actual[i] != want {
			return &ShapeMismatchError{Tensor: label, Axis: i, Expected: want, Actual: actual[i]}
		}
	}

	return nil
}

// AssertAll pairs actual with expected positionally and checks each pair.
// role ("input" or "output") and the index and name of the offending tensor
// are part of the returned error.
func AssertAll(role string, actual []Shape, expected []Named) error {
	if len(actual) != len(expected) {
		return &ArityError{Role: role, Expected: len(expected), Actual: len(actual)}
	}

	for i, want := range expected {
		if err := AssertTensor(Label(role, i, want.Name), actual[i], want.Shape); err != nil {
			return err
		}
	}

	return nil
}

// Label formats the tensor label used in shape errors, e.g. `output 2 "mask"`.
func Label(role string, index int, name string) string {
	if name == "" {
		return fmt.Sprintf("%s %d", role, index)
	}

	return fmt.Sprintf("%s %d %q", role, index, name)
}

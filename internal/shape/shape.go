// Package shape models tensor shapes whose axes may be dynamic and checks
// actual shapes against a declared contract.
package shape

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dim is a single axis size. Positive values are concrete; Dynamic marks an
// axis whose size is only known at run time.
type Dim int64

// Dynamic is the Dim value of an axis without a declared size.
const Dynamic Dim = -1

// IsDynamic reports whether d carries no concrete size.
func (d Dim) IsDynamic() bool {
	return d < 1
}

func (d Dim) String() string {
	if d.IsDynamic() {
		return "?"
	}

	return strconv.FormatInt(int64(d), 10)
}

// Shape is an ordered list of axis sizes. Its length is the rank.
type Shape []Dim

// Of builds a Shape from concrete sizes. Values below 1 become Dynamic.
func Of[T ~int | ~int64](dims ...T) Shape {
	s := make(Shape, len(dims))
	for i, d := range dims {
		if d < 1 {
			s[i] = Dynamic
			continue
		}

		s[i] = Dim(d)
	}

	return s
}

// Rank returns the number of axes.
func (s Shape) Rank() int {
	return len(s)
}

// Clone returns a copy that does not share storage with s.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}

	return append(Shape(nil), s...)
}

// IsConcrete reports whether every axis has a concrete size.
func (s Shape) IsConcrete() bool {
	for _, d := range s {
		if d.IsDynamic() {
			return false
		}
	}

	return true
}

// Equal reports whether s and other have the same rank and identical axes.
// Dynamic axes only equal other dynamic axes.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}

	for i := range s {
		if s[i].IsDynamic() != other[i].IsDynamic() {
			return false
		}

		if !s[i].IsDynamic() && s[i] != other[i] {
			return false
		}
	}

	return true
}

// Int64s returns the axes as int64, with -1 for dynamic axes. This is the
// layout ONNX Runtime bindings expect.
func (s Shape) Int64s() []int64 {
	out := make([]int64, len(s))
	for i, d := range s {
		if d.IsDynamic() {
			out[i] = -1
			continue
		}

		out[i] = int64(d)
	}

	return out
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.String()
	}

	return "[" + strings.Join(parts, ",") + "]"
}

// ElementCount returns the product of all axes. A scalar (rank 0) holds one
// element. Dynamic axes fail with *UnresolvedShapeError.
func (s Shape) ElementCount() (int, error) {
	count := int64(1)
	for i, d := range s {
		if d.IsDynamic() {
			return 0, &UnresolvedShapeError{Shape: s.Clone(), Axis: i}
		}

		if count > math.MaxInt64/int64(d) {
			return 0, fmt.Errorf("shape %v overflows element count", s)
		}

		count *= int64(d)
	}

	if count > int64(math.MaxInt) {
		return 0, fmt.Errorf("shape %v exceeds platform int capacity", s)
	}

	return int(count), nil
}

// Parse reads a comma separated shape such as "1,3,256,256". An axis written
// as "?", "-1" or a symbolic name like "batch" is dynamic. Surrounding
// brackets are accepted, as is the "1x3x256x256" form when it has no comma.
// The empty string is a scalar.
func Parse(raw string) (Shape, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")

	if strings.TrimSpace(raw) == "" {
		return Shape{}, nil
	}

	parts := splitAxes(raw)
	out := make(Shape, 0, len(parts))

	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("shape %q: axis %d is empty", raw, i)
		}

		if part == "?" || part == "-1" {
			out = append(out, Dynamic)
			continue
		}

		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			if isSymbol(part) {
				out = append(out, Dynamic)
				continue
			}

			return nil, fmt.Errorf("shape %q: axis %d: %w", raw, i, err)
		}

		if v < 1 {
			return nil, fmt.Errorf("shape %q: axis %d=%d is not positive", raw, i, v)
		}

		out = append(out, Dim(v))
	}

	return out, nil
}

// MustParse is Parse for literals in tests and defaults.
func MustParse(raw string) Shape {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}

	return s
}

// Resolve fills the dynamic axes of declared with the sizes in override.
// The override must be concrete, have the same rank, and agree with every
// concrete declared axis. A nil override resolves nothing and fails with
// *UnresolvedShapeError when declared has a dynamic axis.
func Resolve(declared, override Shape) (Shape, error) {
	if override == nil {
		for i, d := range declared {
			if d.IsDynamic() {
				return nil, &UnresolvedShapeError{Shape: declared.Clone(), Axis: i}
			}
		}

		return declared.Clone(), nil
	}

	for i, d := range override {
		if d.IsDynamic() {
			return nil, &UnresolvedShapeError{Shape: override.Clone(), Axis: i}
		}
	}

	if err := AssertShape(override, declared); err != nil {
		return nil, fmt.Errorf("override %v does not fit declared %v: %w", override, declared, err)
	}

	return override.Clone(), nil
}

func splitAxes(raw string) []string {
	if strings.Contains(raw, ",") || !strings.Contains(raw, "x") {
		return strings.Split(raw, ",")
	}

	parts := strings.Split(raw, "x")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "?" {
			continue
		}

		if _, err := strconv.ParseInt(p, 10, 64); err != nil {
			return []string{raw}
		}
	}

	return parts
}

func isSymbol(s string) bool {
	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '.' || r == '-'):
		default:
			return false
		}
	}

	return s != ""
}

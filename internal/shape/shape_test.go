package shape

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Shape
		wantErr string
	}{
		{name: "concrete", raw: "1,3,256,256", want: Shape{1, 3, 256, 256}},
		{name: "brackets and spaces", raw: " [1, 195] ", want: Shape{1, 195}},
		{name: "question mark", raw: "?,3", want: Shape{Dynamic, 3}},
		{name: "minus one", raw: "-1,3", want: Shape{Dynamic, 3}},
		{name: "symbolic", raw: "batch_size,seq.len,4", want: Shape{Dynamic, Dynamic, 4}},
		{name: "scalar", raw: "", want: Shape{}},
		{name: "x separated", raw: "1x64x64x39", want: Shape{1, 64, 64, 39}},
		{name: "x separated dynamic", raw: "?x8", want: Shape{Dynamic, 8}},
		{name: "symbol containing x", raw: "max_len", want: Shape{Dynamic}},
		{name: "empty axis", raw: "1,,3", wantErr: "axis 1 is empty"},
		{name: "zero", raw: "1,0", wantErr: "axis 1=0 is not positive"},
		{name: "garbage", raw: "1,3x", wantErr: "axis 1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.raw)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want containing %q", tc.raw, err, tc.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.raw, err)
			}

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("Parse(%q) mismatch (-want +got):\n%s", tc.raw, diff)
			}
		})
	}
}

func TestElementCount(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{1, 3, 256, 256}, 196608},
		{Shape{1, 195}, 195},
		{Shape{1, 64, 64, 39}, 159744},
		{Shape{}, 1},
		{Shape{7}, 7},
	}

	for _, tc := range tests {
		got, err := tc.shape.ElementCount()
		if err != nil {
			t.Fatalf("%v.ElementCount(): %v", tc.shape, err)
		}

		if got != tc.want {
			t.Errorf("%v.ElementCount() = %d, want %d", tc.shape, got, tc.want)
		}
	}
}

func TestElementCountDynamic(t *testing.T) {
	_, err := Shape{1, Dynamic, 4}.ElementCount()

	var unresolved *UnresolvedShapeError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedShapeError, got %v", err)
	}

	if unresolved.Axis != 1 {
		t.Fatalf("unresolved axis = %d, want 1", unresolved.Axis)
	}

	if !errors.Is(err, ErrShapeContract) {
		t.Fatal("UnresolvedShapeError should match ErrShapeContract")
	}
}

func TestElementCountOverflow(t *testing.T) {
	_, err := Shape{1 << 40, 1 << 40}.ElementCount()
	if err == nil || !strings.Contains(err.Error(), "overflows") {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestShapeStringAndInt64s(t *testing.T) {
	s := Shape{1, Dynamic, 3}

	if got := s.String(); got != "[1,?,3]" {
		t.Fatalf("String() = %q", got)
	}

	if diff := cmp.Diff([]int64{1, -1, 3}, s.Int64s()); diff != "" {
		t.Fatalf("Int64s mismatch (-want +got):\n%s", diff)
	}
}

func TestOf(t *testing.T) {
	if diff := cmp.Diff(Shape{1, Dynamic, 5}, Of(1, 0, 5)); diff != "" {
		t.Fatalf("Of mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(Shape{2, 2}, Of[int64](2, 2)); diff != "" {
		t.Fatalf("Of[int64] mismatch (-want +got):\n%s", diff)
	}
}

func TestEqual(t *testing.T) {
	if !(Shape{1, Dynamic}).Equal(Shape{1, -5}) {
		t.Error("dynamic axes should compare equal regardless of encoding")
	}

	if (Shape{1, 2}).Equal(Shape{1, Dynamic}) {
		t.Error("concrete axis should not equal dynamic axis")
	}

	if (Shape{1}).Equal(Shape{1, 1}) {
		t.Error("different ranks should not be equal")
	}
}

func TestResolve(t *testing.T) {
	t.Run("concrete declared without override", func(t *testing.T) {
		got, err := Resolve(Shape{1, 3}, nil)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}

		if !got.Equal(Shape{1, 3}) {
			t.Fatalf("Resolve = %v", got)
		}
	})

	t.Run("dynamic declared without override", func(t *testing.T) {
		_, err := Resolve(Shape{Dynamic, 3}, nil)

		var unresolved *UnresolvedShapeError
		if !errors.As(err, &unresolved) || unresolved.Axis != 0 {
			t.Fatalf("expected UnresolvedShapeError on axis 0, got %v", err)
		}
	})

	t.Run("override fills dynamic axis", func(t *testing.T) {
		got, err := Resolve(Shape{Dynamic, 3}, Shape{8, 3})
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}

		if !got.Equal(Shape{8, 3}) {
			t.Fatalf("Resolve = %v", got)
		}
	})

	t.Run("override conflicts with concrete axis", func(t *testing.T) {
		_, err := Resolve(Shape{Dynamic, 3}, Shape{8, 4})

		var mismatch *ShapeMismatchError
		if !errors.As(err, &mismatch) || mismatch.Axis != 1 {
			t.Fatalf("expected ShapeMismatchError on axis 1, got %v", err)
		}
	})

	t.Run("override must be concrete", func(t *testing.T) {
		_, err := Resolve(Shape{Dynamic, 3}, Shape{Dynamic, 3})

		var unresolved *UnresolvedShapeError
		if !errors.As(err, &unresolved) {
			t.Fatalf("expected UnresolvedShapeError, got %v", err)
		}
	})
}

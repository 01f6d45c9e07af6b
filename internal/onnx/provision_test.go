package onnx

import (
	"errors"
	"math"
	"testing"

	"github.com/example/go-ort-smoke/internal/shape"
	"github.com/google/go-cmp/cmp"
)

func TestFillElementCountMatchesShape(t *testing.T) {
	shapes := []shape.Shape{
		{1, 3, 256, 256},
		{1, 195},
		{1, 1},
		{1, 256, 256, 1},
		{1, 64, 64, 39},
		{5},
		{},
	}

	gens := map[string]Generator{
		"zeros":    Zeros,
		"constant": Constant(3),
		"index":    func(i int) float32 { return float32(i) },
	}

	for _, s := range shapes {
		want, err := s.ElementCount()
		if err != nil {
			t.Fatalf("%v.ElementCount(): %v", s, err)
		}

		for name, gen := range gens {
			tt, err := Fill(s, gen)
			if err != nil {
				t.Fatalf("Fill(%v, %s): %v", s, name, err)
			}

			if tt.Len() != want {
				t.Errorf("Fill(%v, %s) has %d elements, want %d", s, name, tt.Len(), want)
			}

			if !tt.Shape().Equal(s) {
				t.Errorf("Fill(%v, %s) shape = %v", s, name, tt.Shape())
			}
		}
	}
}

func TestFillPoseLandmarkInput(t *testing.T) {
	s := shape.Shape{1, 3, 256, 256}

	tt, err := Fill(s, Linspace(196608))
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}

	if tt.Len() != 196608 {
		t.Fatalf("Len = %d, want 196608", tt.Len())
	}

	if tt.At(0) != 0 || tt.At(tt.Len()-1) != 1 {
		t.Fatalf("endpoints = %v, %v; want 0, 1", tt.At(0), tt.At(tt.Len()-1))
	}
}

func TestFillRejectsDynamicShape(t *testing.T) {
	_, err := Fill(shape.Shape{1, shape.Dynamic, 256, 256}, Zeros)

	var unresolved *shape.UnresolvedShapeError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedShapeError, got %v", err)
	}

	if unresolved.Axis != 1 {
		t.Fatalf("axis = %d, want 1", unresolved.Axis)
	}
}

func TestFillRejectsNilGenerator(t *testing.T) {
	if _, err := Fill(shape.Shape{1}, nil); err == nil {
		t.Fatal("expected error for nil generator")
	}
}

func TestLinspace(t *testing.T) {
	gen := Linspace(5)
	want := []float32{0, 0.25, 0.5, 0.75, 1}

	for i, w := range want {
		if got := gen(i); math.Abs(float64(got-w)) > 1e-7 {
			t.Errorf("Linspace(5)(%d) = %v, want %v", i, got, w)
		}
	}

	if got := Linspace(1)(0); got != 0 {
		t.Errorf("Linspace(1)(0) = %v, want 0", got)
	}
}

func TestFillWithShortLinspaceClamps(t *testing.T) {
	tt, err := Fill(shape.Of(4), Linspace(2))
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}

	if diff := cmp.Diff([]float32{0, 1, 1, 1}, tt.Data()); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}

	if got := Linspace(3)(-1); got != 0 {
		t.Errorf("Linspace(3)(-1) = %v, want 0", got)
	}
}

func TestGeneratorFor(t *testing.T) {
	tests := []struct {
		mode string
		idx  int
		want float32
	}{
		{mode: "", idx: 2, want: 1},
		{mode: "linspace", idx: 1, want: 0.5},
		{mode: "ZEROS", idx: 1, want: 0},
		{mode: "ones", idx: 0, want: 1},
	}

	for _, tc := range tests {
		gen, err := GeneratorFor(tc.mode, 3)
		if err != nil {
			t.Fatalf("GeneratorFor(%q): %v", tc.mode, err)
		}

		if got := gen(tc.idx); got != tc.want {
			t.Errorf("GeneratorFor(%q)(%d) = %v, want %v", tc.mode, tc.idx, got, tc.want)
		}
	}

	if _, err := GeneratorFor("random", 3); err == nil {
		t.Fatal("expected error for unknown fill mode")
	}
}

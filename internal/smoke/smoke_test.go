package smoke_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-ort-smoke/internal/onnx"
	"github.com/example/go-ort-smoke/internal/onnx/onnxtest"
	"github.com/example/go-ort-smoke/internal/shape"
	"github.com/example/go-ort-smoke/internal/smoke"
	"github.com/example/go-ort-smoke/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

var poseContract = smoke.Contract{
	Inputs: []shape.Shape{{1, 3, 256, 256}},
	Outputs: []shape.Shape{
		{1, 195},
		{1, 1},
		{1, 256, 256, 1},
		{1, 64, 64, 39},
		{1, 117},
	},
}

func poseOptions(t *testing.T) smoke.Options {
	t.Helper()

	return smoke.Options{
		Environment: onnx.EnvironmentConfig{
			Name:     "smoke-test",
			LogLevel: onnx.LogWarning,
			Backend:  onnxtest.Backend,
		},
		Session: onnx.SessionConfig{
			ModelPath:         testutil.WriteModel(t, t.TempDir(), "pose_landmark_lite.onnx", testutil.PoseLandmarkSpec()),
			Threads:           1,
			OptimizationLevel: onnx.OptimizationBasic,
		},
		Fill:     onnx.FillLinspace,
		Contract: poseContract,
	}
}

func TestRunPoseLandmark(t *testing.T) {
	e := &onnxtest.Engine{}
	onnxtest.Register(t, onnxtest.Backend, e)

	report, err := smoke.Run(context.Background(), poseOptions(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := uuid.Parse(report.RunID); err != nil {
		t.Fatalf("RunID %q is not a UUID: %v", report.RunID, err)
	}

	if report.Backend != onnxtest.Backend || report.Opset != 13 {
		t.Fatalf("unexpected report header: %+v", report)
	}

	if len(report.Inputs) != 1 || report.Inputs[0].Elements != 196608 {
		t.Fatalf("unexpected inputs: %+v", report.Inputs)
	}

	got := make([]shape.Shape, len(report.Outputs))
	for i, o := range report.Outputs {
		got[i] = o.Shape
	}

	if diff := cmp.Diff(poseContract.Outputs, got); diff != "" {
		t.Fatalf("output shapes mismatch (-want +got):\n%s", diff)
	}

	in := e.LastInputs()[0]
	if in.At(0) != 0 || in.At(in.Len()-1) != 1 {
		t.Fatalf("input is not linspace over [0,1]: first=%v last=%v", in.At(0), in.At(in.Len()-1))
	}
}

func TestRunMissingModelFailsBeforeProvisioning(t *testing.T) {
	e := &onnxtest.Engine{}
	onnxtest.Register(t, onnxtest.Backend, e)

	opts := poseOptions(t)
	opts.Session.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")

	_, err := smoke.Run(context.Background(), opts)

	var loadErr *onnx.ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected ModelLoadError, got %v", err)
	}

	if e.Runs() != 0 || e.LastInputs() != nil {
		t.Fatal("engine was reached for a missing model")
	}
}

func TestRunOutputDeviationNamesIndexAndAxis(t *testing.T) {
	onnxtest.Register(t, onnxtest.Backend, &onnxtest.Engine{
		OutputShapes: map[int]shape.Shape{2: {1, 256, 128, 1}},
	})

	_, err := smoke.Run(context.Background(), poseOptions(t))

	var mismatch *shape.ShapeMismatchError
	if !errors.As(err, &mismatch) || mismatch.Axis != 2 {
		t.Fatalf("expected ShapeMismatchError at axis 2, got %v", err)
	}

	if !strings.Contains(err.Error(), `output 2 "Identity_2"`) {
		t.Fatalf("error does not name the output: %v", err)
	}
}

func TestRunContractViolation(t *testing.T) {
	onnxtest.Register(t, onnxtest.Backend, &onnxtest.Engine{})

	opts := poseOptions(t)
	opts.Contract.Outputs = append([]shape.Shape(nil), poseContract.Outputs...)
	opts.Contract.Outputs[4] = shape.Shape{1, 118}

	_, err := smoke.Run(context.Background(), opts)
	if !errors.Is(err, shape.ErrShapeContract) || !strings.Contains(err.Error(), "model contract") {
		t.Fatalf("expected model contract violation, got %v", err)
	}

	if !strings.Contains(err.Error(), `output 4 "Identity_4"`) {
		t.Fatalf("error does not name the output: %v", err)
	}
}

func TestRunEngineFailure(t *testing.T) {
	boom := errors.New("execution provider crashed")
	onnxtest.Register(t, onnxtest.Backend, &onnxtest.Engine{RunErr: boom})

	_, err := smoke.Run(context.Background(), poseOptions(t))

	var execErr *onnx.InferenceExecutionError
	if !errors.As(err, &execErr) || !errors.Is(err, boom) {
		t.Fatalf("expected InferenceExecutionError, got %v", err)
	}
}

func TestRunDynamicInput(t *testing.T) {
	onnxtest.Register(t, onnxtest.Backend, &onnxtest.Engine{})

	opts := poseOptions(t)
	opts.Session.ModelPath = testutil.WriteModel(t, t.TempDir(), "dyn.onnx", testutil.IdentitySpec("batch", 3, 8))
	opts.Contract = smoke.Contract{}

	t.Run("without override", func(t *testing.T) {
		_, err := smoke.Run(context.Background(), opts)

		var unresolved *shape.UnresolvedShapeError
		if !errors.As(err, &unresolved) || unresolved.Axis != 0 {
			t.Fatalf("expected UnresolvedShapeError at axis 0, got %v", err)
		}
	})

	t.Run("with override", func(t *testing.T) {
		opts := opts
		opts.InputShape = shape.Shape{2, 3, 8}

		report, err := smoke.Run(context.Background(), opts)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}

		if report.Inputs[0].Elements != 48 || report.Inputs[0].Declared != "[batch,3,8]" {
			t.Fatalf("unexpected input report: %+v", report.Inputs[0])
		}
	})

	t.Run("override conflicts", func(t *testing.T) {
		opts := opts
		opts.InputShape = shape.Shape{2, 4, 8}

		_, err := smoke.Run(context.Background(), opts)

		var mismatch *shape.ShapeMismatchError
		if !errors.As(err, &mismatch) || mismatch.Axis != 1 {
			t.Fatalf("expected ShapeMismatchError at axis 1, got %v", err)
		}
	})
}

func TestRunInvalidOptions(t *testing.T) {
	onnxtest.Register(t, onnxtest.Backend, &onnxtest.Engine{})

	tests := map[string]func(*smoke.Options){
		"fill":    func(o *smoke.Options) { o.Fill = "random" },
		"threads": func(o *smoke.Options) { o.Session.Threads = 0 },
		"shape":   func(o *smoke.Options) { o.InputShape = shape.Shape{shape.Dynamic, 3} },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			opts := poseOptions(t)
			mutate(&opts)

			if _, err := smoke.Run(context.Background(), opts); !errors.Is(err, onnx.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

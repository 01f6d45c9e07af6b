package doctor_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-ort-smoke/internal/doctor"
	"github.com/example/go-ort-smoke/internal/onnx"
	"github.com/example/go-ort-smoke/internal/onnx/onnxtest"
	"github.com/example/go-ort-smoke/internal/shape"
	"github.com/example/go-ort-smoke/internal/smoke"
	"github.com/example/go-ort-smoke/internal/testutil"
)

func foundRuntime(version string) doctor.RuntimeFunc {
	return func() (onnx.RuntimeInfo, error) {
		return onnx.RuntimeInfo{LibraryPath: "/usr/lib/libonnxruntime.so", Version: version}, nil
	}
}

// ---------------------------------------------------------------------------
// all-pass scenario
// ---------------------------------------------------------------------------

func TestRun_AllChecksPass(t *testing.T) {
	onnxtest.Register(t, onnxtest.Backend, &onnxtest.Engine{})

	cfg := doctor.Config{
		Runtime:    foundRuntime("1.23.2"),
		APIVersion: 23,
		Backend:    onnxtest.Backend,
		ModelPath:  testutil.WriteModel(t, t.TempDir(), "pose.onnx", testutil.PoseLandmarkSpec()),
		Contract: smoke.Contract{
			Inputs:  []shape.Shape{{1, 3, 256, 256}},
			Outputs: []shape.Shape{{1, 195}, {1, 1}, {1, 256, 256, 1}, {1, 64, 64, 39}, {1, 117}},
		},
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if result.Failed() {
		t.Errorf("expected all checks to pass; failures: %v", result.Failures())
	}

	body := out.String()
	for _, want := range []string{
		"onnx runtime: /usr/lib/libonnxruntime.so (version 1.23.2)",
		"backend: fake",
		"model descriptor: opset 13, 1 input(s), 5 output(s)",
		"shape contract: 1 input(s), 5 output(s) match",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q:\n%s", want, body)
		}
	}
}

// ---------------------------------------------------------------------------
// runtime library
// ---------------------------------------------------------------------------

func TestRun_RuntimeMissingFails(t *testing.T) {
	cfg := doctor.Config{
		Runtime: func() (onnx.RuntimeInfo, error) {
			return onnx.RuntimeInfo{LibraryPath: "not found"}, errLibraryNotFound
		},
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure when the runtime library is not found")
	}

	if !hasFailureContaining(result.Failures(), "onnx runtime") {
		t.Errorf("expected failure mentioning onnx runtime, got: %v", result.Failures())
	}
}

func TestRun_RuntimeTooOldFails(t *testing.T) {
	cfg := doctor.Config{Runtime: foundRuntime("1.20.1"), APIVersion: 23}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure for ORT 1.20 with C API 23")
	}

	if !hasFailureContaining(result.Failures(), "version") {
		t.Errorf("expected failure mentioning version, got: %v", result.Failures())
	}
}

func TestRun_RuntimeVersionUnknownPasses(t *testing.T) {
	cfg := doctor.Config{Runtime: foundRuntime("unknown"), APIVersion: 23}

	var out strings.Builder

	result := doctor.Run(cfg, &out)
	if result.Failed() {
		t.Fatalf("unknown version should not fail: %v", result.Failures())
	}

	if !strings.Contains(out.String(), "C API 23 not checked") {
		t.Errorf("expected unchecked note, got:\n%s", out.String())
	}
}

func TestRun_SkipRuntimeChecks(t *testing.T) {
	cfg := doctor.Config{SkipRuntime: true}

	var out strings.Builder

	result := doctor.Run(cfg, &out)
	if result.Failed() {
		t.Fatalf("expected no failures when runtime checks are skipped, got: %v", result.Failures())
	}

	if !strings.Contains(out.String(), "onnx runtime: skipped") {
		t.Fatalf("expected skipped output, got:\n%s", out.String())
	}
}

// ---------------------------------------------------------------------------
// backend
// ---------------------------------------------------------------------------

func TestRun_UnknownBackendFails(t *testing.T) {
	cfg := doctor.Config{SkipRuntime: true, Backend: "tensorrt"}

	var out strings.Builder

	result := doctor.Run(cfg, &out)
	if !hasFailureContaining(result.Failures(), `backend "tensorrt"`) {
		t.Fatalf("expected backend failure, got: %v", result.Failures())
	}
}

// ---------------------------------------------------------------------------
// model checks
// ---------------------------------------------------------------------------

func TestRun_ModelMissing(t *testing.T) {
	cfg := doctor.Config{
		SkipRuntime: true,
		ModelPath:   filepath.Join(t.TempDir(), "pose_landmark_lite.onnx"),
	}

	var out strings.Builder

	result := doctor.Run(cfg, &out)
	if !hasFailureContaining(result.Failures(), "model file") {
		t.Fatalf("expected model file failure, got: %v", result.Failures())
	}

	if strings.Contains(out.String(), "descriptor") {
		t.Errorf("descriptor check should not run for a missing file:\n%s", out.String())
	}
}

func TestRun_ModelNotONNX(t *testing.T) {
	cfg := doctor.Config{
		SkipRuntime: true,
		ModelPath:   "doctor_test.go", // exists, not a model
	}

	var out strings.Builder

	result := doctor.Run(cfg, &out)
	if !hasFailureContaining(result.Failures(), "model descriptor") {
		t.Fatalf("expected descriptor failure, got: %v", result.Failures())
	}
}

func TestRun_ContractMismatch(t *testing.T) {
	cfg := doctor.Config{
		SkipRuntime: true,
		ModelPath:   testutil.WriteModel(t, t.TempDir(), "pose.onnx", testutil.PoseLandmarkSpec()),
		Contract:    smoke.Contract{Inputs: []shape.Shape{{1, 3, 224, 224}}},
	}

	var out strings.Builder

	result := doctor.Run(cfg, &out)
	if !hasFailureContaining(result.Failures(), "axis 2") {
		t.Fatalf("expected contract failure naming axis 2, got: %v", result.Failures())
	}
}

func TestRun_NoContractConfigured(t *testing.T) {
	cfg := doctor.Config{
		SkipRuntime: true,
		ModelPath:   testutil.WriteModel(t, t.TempDir(), "id.onnx", testutil.IdentitySpec(1, 4)),
	}

	var out strings.Builder

	result := doctor.Run(cfg, &out)
	if result.Failed() {
		t.Fatalf("unexpected failures: %v", result.Failures())
	}

	if !strings.Contains(out.String(), "shape contract: none configured") {
		t.Errorf("expected contract skip note, got:\n%s", out.String())
	}
}

// ---------------------------------------------------------------------------
// output markers
// ---------------------------------------------------------------------------

func TestRun_OutputContainsPassAndFailMarkers(t *testing.T) {
	cfg := doctor.Config{
		Runtime:   foundRuntime("1.23.0"),
		ModelPath: "/nonexistent/model.onnx",
	}

	var out strings.Builder
	doctor.Run(cfg, &out)

	body := out.String()
	if !strings.Contains(body, doctor.PassMark) {
		t.Errorf("output missing pass marker %q:\n%s", doctor.PassMark, body)
	}

	if !strings.Contains(body, doctor.FailMark) {
		t.Errorf("output missing fail marker %q:\n%s", doctor.FailMark, body)
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

var errLibraryNotFound = sentinelError("unable to detect ONNX Runtime library path")

func hasFailureContaining(failures []string, substr string) bool {
	substr = strings.ToLower(substr)
	for _, f := range failures {
		if strings.Contains(strings.ToLower(f), substr) {
			return true
		}
	}

	return false
}

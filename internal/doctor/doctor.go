// Package doctor provides environment preflight checks for ortsmoke.
package doctor

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/example/go-ort-smoke/internal/onnx"
	"github.com/example/go-ort-smoke/internal/smoke"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// RuntimeFunc resolves the ONNX Runtime library or reports why it cannot.
type RuntimeFunc func() (onnx.RuntimeInfo, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Runtime locates the ONNX Runtime shared library, usually via
	// onnx.DetectRuntime.
	Runtime RuntimeFunc
	// SkipRuntime skips the library and version checks.
	SkipRuntime bool
	// APIVersion is the C API version the engine will request. Zero skips
	// the version compatibility check.
	APIVersion uint32
	// Backend is the configured engine backend; it must be registered.
	Backend string
	// ModelPath is the ONNX model to parse. Empty skips the model checks.
	ModelPath string
	// Contract is checked against the model's declared shapes when not empty.
	Contract smoke.Contract
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- ONNX Runtime library ---------------------------------------------
	if cfg.SkipRuntime || cfg.Runtime == nil {
		fmt.Fprintf(w, "%s onnx runtime: skipped\n", PassMark)
	} else {
		info, err := cfg.Runtime()
		if err != nil {
			res.fail(fmt.Sprintf("onnx runtime: %v", err))
			fmt.Fprintf(w, "%s onnx runtime: not found (%v)\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s onnx runtime: %s (version %s)\n", PassMark, info.LibraryPath, info.Version)
			checkVersion(&res, w, info.Version, cfg.APIVersion)
		}
	}

	// ---- engine backend ---------------------------------------------------
	if cfg.Backend != "" {
		if available := onnx.Backends(); slices.Contains(available, cfg.Backend) {
			fmt.Fprintf(w, "%s backend: %s\n", PassMark, cfg.Backend)
		} else {
			res.fail(fmt.Sprintf("backend %q: not built into this binary (available: %s)", cfg.Backend, strings.Join(available, ", ")))
			fmt.Fprintf(w, "%s backend %s: unavailable\n", FailMark, cfg.Backend)
		}
	}

	// ---- model ------------------------------------------------------------
	if cfg.ModelPath != "" {
		checkModel(&res, w, cfg.ModelPath, cfg.Contract)
	}

	return res
}

func checkVersion(res *Result, w io.Writer, version string, api uint32) {
	if api == 0 {
		return
	}

	if version == "" || version == "unknown" {
		fmt.Fprintf(w, "%s onnx runtime version: unknown, C API %d not checked\n", PassMark, api)
		return
	}

	if err := checkRuntimeVersion(version, api); err != nil {
		res.fail(fmt.Sprintf("onnx runtime version: %v", err))
		fmt.Fprintf(w, "%s onnx runtime version %s: %v\n", FailMark, version, err)

		return
	}

	fmt.Fprintf(w, "%s onnx runtime version: %s supports C API %d\n", PassMark, version, api)
}

func checkModel(res *Result, w io.Writer, path string, contract smoke.Contract) {
	if _, err := os.Stat(path); err != nil {
		res.fail(fmt.Sprintf("model file %q: %v", path, err))
		fmt.Fprintf(w, "%s model file %s: not found\n", FailMark, path)

		return
	}

	fmt.Fprintf(w, "%s model file: %s\n", PassMark, path)

	desc, err := onnx.ReadDescriptor(path)
	if err == nil {
		err = desc.Validate()
	}

	if err != nil {
		res.fail(fmt.Sprintf("model descriptor: %v", err))
		fmt.Fprintf(w, "%s model descriptor: %v\n", FailMark, err)

		return
	}

	fmt.Fprintf(w, "%s model descriptor: opset %d, %d input(s), %d output(s)\n",
		PassMark, desc.DefaultOpset(), len(desc.InputNames()), len(desc.OutputNames()))

	if contract.Empty() {
		fmt.Fprintf(w, "%s shape contract: none configured\n", PassMark)
		return
	}

	if err := contract.CheckDescriptor(desc); err != nil {
		res.fail(fmt.Sprintf("shape contract: %v", err))
		fmt.Fprintf(w, "%s shape contract: %v\n", FailMark, err)

		return
	}

	fmt.Fprintf(w, "%s shape contract: %d input(s), %d output(s) match\n",
		PassMark, len(contract.Inputs), len(contract.Outputs))
}

// checkRuntimeVersion returns an error if the ONNX Runtime release ver
// (e.g. "1.22.0") cannot serve C API version api. Release 1.N provides API
// versions up to N.
func checkRuntimeVersion(ver string, api uint32) error {
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}

	if major != 1 {
		return fmt.Errorf("requires ONNX Runtime 1.x, got %d", major)
	}

	if minor < int(api) {
		return fmt.Errorf("C API %d requires ONNX Runtime >=1.%d, got 1.%d", api, api, minor)
	}

	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}

	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}

	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}

	return major, minor, nil
}

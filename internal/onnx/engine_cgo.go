//go:build cgo && !(js && wasm)

package onnx

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/go-ort-smoke/internal/config"
	ort "github.com/yalue/onnxruntime_go"
)

func init() {
	RegisterEngine(BackendCGO, newCGOEngine)
}

// cgoEngine drives ONNX Runtime through the cgo bindings. Their environment
// is global to the process, so only one cgoEngine can be live at a time.
type cgoEngine struct{}

func newCGOEngine(cfg EngineConfig) (Engine, error) {
	if ort.IsInitialized() {
		return nil, errors.New("onnxruntime_go environment is already initialized")
	}

	lib := cfg.LibraryPath
	if lib == "" {
		info, err := DetectRuntime(config.RuntimeConfig{})
		if err != nil {
			return nil, err
		}

		lib = info.LibraryPath
	}

	ort.SetSharedLibraryPath(lib)

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime_go (lib=%q): %w", lib, err)
	}

	if err := ort.SetEnvironmentLogLevel(cgoLogLevel(cfg.LogLevel)); err != nil {
		_ = ort.DestroyEnvironment()
		return nil, fmt.Errorf("set ORT log level: %w", err)
	}

	return &cgoEngine{}, nil
}

func (e *cgoEngine) Load(desc *ModelDescriptor, opts ModelOptions) (GraphRunner, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	if err := options.SetIntraOpNumThreads(opts.Threads); err != nil {
		return nil, fmt.Errorf("set intra-op threads: %w", err)
	}

	if err := options.SetGraphOptimizationLevel(cgoOptimizationLevel(opts.OptimizationLevel)); err != nil {
		return nil, fmt.Errorf("set graph optimization level: %w", err)
	}

	inputNames := desc.InputNames()
	outputNames := desc.OutputNames()

	session, err := ort.NewDynamicAdvancedSession(desc.Path, inputNames, outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("ort session: %w", err)
	}

	return &cgoRunner{
		name:        desc.Path,
		session:     session,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

func (e *cgoEngine) Close() error {
	if !ort.IsInitialized() {
		return nil
	}

	return ort.DestroyEnvironment()
}

type cgoRunner struct {
	name        string
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
}

// Run executes the graph. The cgo binding has no cancellation hook, so ctx
// is only checked before the call.
func (r *cgoRunner) Run(ctx context.Context, inputs []*Tensor) ([]*Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ortInputs := make([]ort.Value, 0, len(inputs))
	defer func() { destroyValues(ortInputs) }()

	for i, t := range inputs {
		v, err := ort.NewTensor(ort.NewShape(t.shape.Int64s()...), t.Data())
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", r.inputNames[i], err)
		}

		ortInputs = append(ortInputs, v)
	}

	// nil outputs are allocated by the runtime.
	ortOutputs := make([]ort.Value, len(r.outputNames))
	defer func() { destroyValues(ortOutputs) }()

	if err := r.session.Run(ortInputs, ortOutputs); err != nil {
		return nil, err
	}

	results := make([]*Tensor, len(ortOutputs))
	for i, v := range ortOutputs {
		ft, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("output %q: unsupported value %T", r.outputNames[i], v)
		}

		t, err := NewTensorInt64Shape(ft.GetData(), ft.GetShape())
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", r.outputNames[i], err)
		}

		results[i] = t
	}

	return results, nil
}

func (r *cgoRunner) Name() string {
	return r.name
}

func (r *cgoRunner) Close() {
	if r.session != nil {
		_ = r.session.Destroy()
		r.session = nil
	}
}

func destroyValues(vals []ort.Value) {
	for _, v := range vals {
		if v != nil {
			_ = v.Destroy()
		}
	}
}

func cgoLogLevel(l LogLevel) ort.LoggingLevel {
	switch l {
	case LogVerbose:
		return ort.LoggingLevelVerbose
	case LogInfo:
		return ort.LoggingLevelInfo
	case LogError:
		return ort.LoggingLevelError
	case LogFatal:
		return ort.LoggingLevelFatal
	default:
		return ort.LoggingLevelWarning
	}
}

func cgoOptimizationLevel(o OptimizationLevel) ort.GraphOptimizationLevel {
	switch o {
	case OptimizationDisabled:
		return ort.GraphOptimizationLevelDisableAll
	case OptimizationExtended:
		return ort.GraphOptimizationLevelEnableExtended
	case OptimizationAll:
		return ort.GraphOptimizationLevelEnableAll
	default:
		return ort.GraphOptimizationLevelEnableBasic
	}
}

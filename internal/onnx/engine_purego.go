//go:build !windows && !(js && wasm)

package onnx

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/example/go-ort-smoke/internal/config"
	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

func init() {
	RegisterEngine(BackendPurego, newPuregoEngine)
}

// puregoEngine loads ONNX Runtime through purego, without cgo.
type puregoEngine struct {
	runtime *ort.Runtime
	env     *ort.Env
}

func newPuregoEngine(cfg EngineConfig) (Engine, error) {
	lib := cfg.LibraryPath
	if lib == "" {
		info, err := DetectRuntime(config.RuntimeConfig{})
		if err != nil {
			return nil, err
		}

		lib = info.LibraryPath
	}

	runtime, err := ort.NewRuntime(lib, cfg.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("ort runtime (lib=%q api=%d): %w", lib, cfg.APIVersion, err)
	}

	env, err := runtime.NewEnv(cfg.Name, puregoLogLevel(cfg.LogLevel))
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("ort env %q: %w", cfg.Name, err)
	}

	return &puregoEngine{runtime: runtime, env: env}, nil
}

func (e *puregoEngine) Load(desc *ModelDescriptor, opts ModelOptions) (GraphRunner, error) {
	if opts.OptimizationLevel != OptimizationAll {
		slog.Debug("purego backend runs with the runtime's default graph optimization",
			"requested", opts.OptimizationLevel.String())
	}

	session, err := e.runtime.NewSession(e.env, desc.Path, &ort.SessionOptions{
		IntraOpNumThreads: opts.Threads,
	})
	if err != nil {
		return nil, fmt.Errorf("ort session: %w", err)
	}

	inputNames := desc.InputNames()
	outputNames := desc.OutputNames()

	if got := session.InputNames(); !slices.Equal(got, inputNames) {
		session.Close()
		return nil, fmt.Errorf("runtime reports inputs %v, model declares %v", got, inputNames)
	}

	if got := session.OutputNames(); !slices.Equal(got, outputNames) {
		session.Close()
		return nil, fmt.Errorf("runtime reports outputs %v, model declares %v", got, outputNames)
	}

	return &puregoRunner{
		name:        desc.Path,
		runtime:     e.runtime,
		session:     session,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

// Close releases all ORT resources. Safe to call multiple times.
func (e *puregoEngine) Close() error {
	if e.env != nil {
		e.env.Close()
		e.env = nil
	}

	if e.runtime != nil {
		err := e.runtime.Close()
		e.runtime = nil

		return err
	}

	return nil
}

type puregoRunner struct {
	name        string
	runtime     *ort.Runtime
	session     *ort.Session
	inputNames  []string
	outputNames []string
}

func (r *puregoRunner) Run(ctx context.Context, inputs []*Tensor) ([]*Tensor, error) {
	ortInputs := make(map[string]*ort.Value, len(inputs))
	for i, t := range inputs {
		v, err := ort.NewTensorValue(r.runtime, t.Data(), t.shape.Int64s())
		if err != nil {
			closeORTValues(ortInputs)
			return nil, fmt.Errorf("input %q: %w", r.inputNames[i], err)
		}

		ortInputs[r.inputNames[i]] = v
	}

	defer closeORTValues(ortInputs)

	ortOutputs, err := r.session.Run(ctx, ortInputs)
	if err != nil {
		return nil, err
	}
	defer closeORTValues(ortOutputs)

	results := make([]*Tensor, len(r.outputNames))
	for i, name := range r.outputNames {
		v, ok := ortOutputs[name]
		if !ok {
			return nil, fmt.Errorf("output %q missing from runtime result", name)
		}

		t, err := ortToTensor(v)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}

		results[i] = t
	}

	return results, nil
}

func (r *puregoRunner) Name() string {
	return r.name
}

func (r *puregoRunner) Close() {
	if r.session != nil {
		r.session.Close()
		r.session = nil
	}
}

func ortToTensor(v *ort.Value) (*Tensor, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return nil, fmt.Errorf("get element type: %w", err)
	}

	if elemType != ort.ONNXTensorElementDataTypeFloat {
		return nil, fmt.Errorf("unsupported ORT element type %d", elemType)
	}

	data, dims, err := ort.GetTensorData[float32](v)
	if err != nil {
		return nil, err
	}

	return NewTensorInt64Shape(data, dims)
}

func closeORTValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}

func puregoLogLevel(l LogLevel) ort.LoggingLevel {
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

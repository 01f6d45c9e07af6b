package smoke

import (
	"fmt"

	"github.com/example/go-ort-smoke/internal/config"
	"github.com/example/go-ort-smoke/internal/onnx"
	"github.com/example/go-ort-smoke/internal/shape"
)

// Options configures one smoke run.
type Options struct {
	Environment onnx.EnvironmentConfig
	Session     onnx.SessionConfig
	// Fill names the input generator: linspace, zeros or ones.
	Fill string
	// InputShape, when non-nil, supplies concrete sizes for the dynamic axes
	// of the first model input.
	InputShape shape.Shape
	Contract   Contract
}

// Validate rejects options that would fail before the model is touched.
func (o Options) Validate() error {
	if err := o.Session.Validate(); err != nil {
		return err
	}

	if _, err := onnx.GeneratorFor(o.Fill, 1); err != nil {
		return fmt.Errorf("%w: %v", onnx.ErrInvalidConfig, err)
	}

	for i, d := range o.InputShape {
		if d.IsDynamic() {
			return fmt.Errorf("%w: input shape %v: axis %d must be concrete", onnx.ErrInvalidConfig, o.InputShape, i)
		}
	}

	return nil
}

// FromConfig translates the loaded configuration into run options.
func FromConfig(cfg config.Config) (Options, error) {
	ortLevel, err := onnx.ParseLogLevel(cfg.Environment.LogLevel)
	if err != nil {
		return Options{}, fmt.Errorf("environment.log_level: %w", err)
	}

	optLevel, err := onnx.ParseOptimizationLevel(cfg.Runtime.OptimizationLevel)
	if err != nil {
		return Options{}, fmt.Errorf("runtime.optimization_level: %w", err)
	}

	backend, err := config.NormalizeBackend(cfg.Environment.Backend)
	if err != nil {
		return Options{}, fmt.Errorf("environment.backend: %w", err)
	}

	opts := Options{
		Environment: onnx.EnvironmentConfig{
			Name:        cfg.Environment.Name,
			LogLevel:    ortLevel,
			Backend:     backend,
			LibraryPath: cfg.Runtime.ORTLibraryPath,
			APIVersion:  cfg.Runtime.ORTAPIVersion,
		},
		Session: onnx.SessionConfig{
			ModelPath:         cfg.Paths.ModelPath,
			Threads:           cfg.Runtime.Threads,
			OptimizationLevel: optLevel,
		},
		Fill: cfg.Input.Fill,
	}

	if cfg.Input.Shape != "" {
		opts.InputShape, err = shape.Parse(cfg.Input.Shape)
		if err != nil {
			return Options{}, fmt.Errorf("input.shape: %w", err)
		}
	}

	opts.Contract, err = ParseContract(cfg.Contract.Inputs, cfg.Contract.Outputs)
	if err != nil {
		return Options{}, err
	}

	return opts, nil
}

// Package smoke runs one shape-checked inference pass: it creates the
// environment, opens the model, fills synthetic inputs, runs the graph and
// checks every output against the declared and configured shapes.
package smoke

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-ort-smoke/internal/onnx"
	"github.com/example/go-ort-smoke/internal/shape"
	"github.com/google/uuid"
)

// TensorReport describes one tensor of a finished run.
type TensorReport struct {
	Name     string
	Declared string
	Shape    shape.Shape
	Elements int
}

// Report summarizes a successful run.
type Report struct {
	RunID    string
	Model    string
	Backend  string
	Opset    int64
	Inputs   []TensorReport
	Outputs  []TensorReport
	Duration time.Duration
}

// Run performs the smoke run described by opts. The process-wide
// environment is left open for the caller to shut down.
func Run(ctx context.Context, opts Options) (Report, error) {
	report := Report{
		RunID:   uuid.NewString(),
		Model:   opts.Session.ModelPath,
		Backend: opts.Environment.Backend,
	}
	logger := slog.With("run_id", report.RunID)

	if err := opts.Validate(); err != nil {
		return report, err
	}

	env, err := onnx.NewEnvironment(opts.Environment)
	if err != nil {
		return report, err
	}

	report.Backend = env.Config().Backend

	sess, err := onnx.Open(env, opts.Session)
	if err != nil {
		return report, err
	}
	defer sess.Close()

	desc := sess.Descriptor()
	report.Opset = desc.DefaultOpset()

	if err := opts.Contract.CheckDescriptor(desc); err != nil {
		return report, fmt.Errorf("model contract: %w", err)
	}

	inputs, err := Provision(desc, opts.Fill, opts.InputShape)
	if err != nil {
		return report, err
	}

	report.Inputs = describe(desc.Inputs(), inputs)

	logger.Debug("provisioned inputs", "count", len(inputs), "fill", opts.Fill)

	start := time.Now()

	outputs, err := sess.Run(ctx, inputs)
	if err != nil {
		return report, err
	}

	report.Duration = time.Since(start)

	if err := sess.ValidateOutputs(outputs); err != nil {
		return report, err
	}

	if err := opts.Contract.CheckOutputs(desc, outputs); err != nil {
		return report, fmt.Errorf("output contract: %w", err)
	}

	report.Outputs = describe(desc.Outputs(), outputs)

	logger.Info(
		"smoke run passed",
		"model", report.Model,
		"backend", report.Backend,
		"outputs", len(outputs),
		"duration_ms", report.Duration.Milliseconds(),
	)

	return report, nil
}

// Provision builds one tensor per declared input. The override resolves the
// dynamic axes of the first input; any other dynamic axis is an
// *shape.UnresolvedShapeError.
func Provision(desc *onnx.ModelDescriptor, fill string, override shape.Shape) ([]*onnx.Tensor, error) {
	declared := desc.InputShapes()
	inputs := make([]*onnx.Tensor, len(declared))

	for i, in := range declared {
		var o shape.Shape
		if i == 0 {
			o = override
		}

		s, err := shape.Resolve(in.Shape, o)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", shape.Label("input", i, in.Name), err)
		}

		n, err := s.ElementCount()
		if err != nil {
			return nil, err
		}

		gen, err := onnx.GeneratorFor(fill, n)
		if err != nil {
			return nil, err
		}

		inputs[i], err = onnx.Fill(s, gen)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", shape.Label("input", i, in.Name), err)
		}
	}

	return inputs, nil
}

func describe(nodes []onnx.NodeInfo, tensors []*onnx.Tensor) []TensorReport {
	out := make([]TensorReport, len(tensors))
	for i, t := range tensors {
		out[i] = TensorReport{
			Name:     nodes[i].Name,
			Declared: nodes[i].DimString(),
			Shape:    t.Shape(),
			Elements: t.Len(),
		}
	}

	return out
}

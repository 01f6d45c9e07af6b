// Package onnxtest provides an in-process engine for tests that exercise
// sessions without an ONNX Runtime library.
package onnxtest

import (
	"context"
	"sync"
	"testing"

	"github.com/example/go-ort-smoke/internal/onnx"
	"github.com/example/go-ort-smoke/internal/shape"
)

// Backend is the name Register uses unless told otherwise.
const Backend = "fake"

// Engine is a fake onnx.Engine. Its runners return zero-filled tensors in
// the declared output shapes, with dynamic axes set to 1. Fields configure
// failures and must be set before the engine is used.
type Engine struct {
	// InitErr fails environment creation.
	InitErr error
	// LoadErr fails session open.
	LoadErr error
	// RunErr fails every run.
	RunErr error
	// OutputShapes replaces the shape returned for the given output index.
	OutputShapes map[int]shape.Shape
	// DropOutputs removes that many outputs from the end of every result.
	DropOutputs int
	// Block, when non-nil, makes Run wait until it is closed. Started
	// receives a value once the run is waiting.
	Block   chan struct{}
	Started chan struct{}

	mu          sync.Mutex
	config      onnx.EngineConfig
	options     onnx.ModelOptions
	lastInputs  []*onnx.Tensor
	loads, runs int
	open        int
	openAtClose int
	closed      bool
}

// Register installs e under name, closes any existing environment, and
// arranges for the environment to be shut down when the test ends.
func Register(tb testing.TB, name string, e *Engine) {
	tb.Helper()

	_ = onnx.Shutdown()

	onnx.RegisterEngine(name, func(cfg onnx.EngineConfig) (onnx.Engine, error) {
		if e.InitErr != nil {
			return nil, e.InitErr
		}

		e.mu.Lock()
		e.config = cfg
		e.closed = false
		e.mu.Unlock()

		return e, nil
	})

	tb.Cleanup(func() { _ = onnx.Shutdown() })
}

// Load implements onnx.Engine.
func (e *Engine) Load(desc *onnx.ModelDescriptor, opts onnx.ModelOptions) (onnx.GraphRunner, error) {
	if e.LoadErr != nil {
		return nil, e.LoadErr
	}

	e.mu.Lock()
	e.options = opts
	e.loads++
	e.open++
	e.mu.Unlock()

	return &runner{engine: e, desc: desc}, nil
}

// Close implements onnx.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.openAtClose = e.open

	return nil
}

// Config returns the configuration the environment passed to the engine.
func (e *Engine) Config() onnx.EngineConfig {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.config
}

// Options returns the options of the most recent Load.
func (e *Engine) Options() onnx.ModelOptions {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.options
}

// Runs returns how many runs reached the engine.
func (e *Engine) Runs() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.runs
}

// LastInputs returns the inputs of the most recent run.
func (e *Engine) LastInputs() []*onnx.Tensor {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]*onnx.Tensor(nil), e.lastInputs...)
}

// OpenRunners returns how many loaded runners have not been closed.
func (e *Engine) OpenRunners() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.open
}

// OpenRunnersAtClose returns how many runners were still open when the
// engine itself was last closed.
func (e *Engine) OpenRunnersAtClose() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.openAtClose
}

// Closed reports whether the environment released the engine.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.closed
}

type runner struct {
	engine *Engine
	desc   *onnx.ModelDescriptor

	mu     sync.Mutex
	closed bool
}

func (r *runner) Run(ctx context.Context, inputs []*onnx.Tensor) ([]*onnx.Tensor, error) {
	e := r.engine

	e.mu.Lock()
	e.runs++
	e.lastInputs = append([]*onnx.Tensor(nil), inputs...)
	e.mu.Unlock()

	if e.Block != nil {
		if e.Started != nil {
			e.Started <- struct{}{}
		}

		select {
		case <-e.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if e.RunErr != nil {
		return nil, e.RunErr
	}

	declared := r.desc.OutputShapes()
	n := len(declared) - e.DropOutputs
	if n < 0 {
		n = 0
	}

	outputs := make([]*onnx.Tensor, 0, n)
	for i := range n {
		s := declared[i].Shape
		if override, ok := e.OutputShapes[i]; ok {
			s = override
		}

		t, err := onnx.Fill(concrete(s), onnx.Zeros)
		if err != nil {
			return nil, err
		}

		outputs = append(outputs, t)
	}

	return outputs, nil
}

func (r *runner) Name() string {
	return r.desc.Path
}

func (r *runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.closed = true

	r.engine.mu.Lock()
	r.engine.open--
	r.engine.mu.Unlock()
}

func concrete(s shape.Shape) shape.Shape {
	out := s.Clone()
	for i, d := range out {
		if d.IsDynamic() {
			out[i] = 1
		}
	}

	return out
}

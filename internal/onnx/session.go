package onnx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/example/go-ort-smoke/internal/shape"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateUnopened State = iota
	StateLoaded
	StateReady
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateLoaded:
		return "loaded"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SessionConfig configures one inference session.
type SessionConfig struct {
	ModelPath         string
	Threads           int
	OptimizationLevel OptimizationLevel
}

// Validate rejects configurations that cannot be handed to an engine.
func (c SessionConfig) Validate() error {
	if strings.TrimSpace(c.ModelPath) == "" {
		return fmt.Errorf("%w: model path is required", ErrInvalidConfig)
	}

	if c.Threads < 1 {
		return fmt.Errorf("%w: threads must be >= 1, got %d", ErrInvalidConfig, c.Threads)
	}

	if c.OptimizationLevel < OptimizationDisabled || c.OptimizationLevel > OptimizationAll {
		return fmt.Errorf("%w: unknown optimization level %d", ErrInvalidConfig, int(c.OptimizationLevel))
	}

	return nil
}

// Session binds a parsed model to an engine runner. At most one Run may be
// in flight; a failed Run leaves the session ready for another call.
type Session struct {
	env  *Environment
	desc *ModelDescriptor
	opts ModelOptions

	// runMu is held for the whole of a Run so Close waits for it.
	runMu sync.Mutex

	mu     sync.Mutex
	state  State
	runner GraphRunner
}

// Open parses the model at cfg.ModelPath, validates its descriptor, and loads
// it into env's engine. File, format and engine load failures are
// *ModelLoadError.
func Open(env *Environment, cfg SessionConfig) (*Session, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: environment is required", ErrInvalidConfig)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		env:   env,
		state: StateUnopened,
		opts: ModelOptions{
			Threads:           cfg.Threads,
			OptimizationLevel: cfg.OptimizationLevel,
		},
	}

	desc, err := ReadDescriptor(cfg.ModelPath)
	if err != nil {
		return nil, err
	}

	s.desc = desc
	s.state = StateLoaded

	if err := desc.Validate(); err != nil {
		return nil, &ModelLoadError{Path: cfg.ModelPath, Err: err}
	}

	runner, err := env.load(s, desc, s.opts)
	if err != nil {
		return nil, &ModelLoadError{Path: cfg.ModelPath, Err: err}
	}

	s.runner = runner
	s.state = StateReady

	slog.Info(
		"opened ONNX session",
		"path", desc.Path,
		"opset", desc.DefaultOpset(),
		"inputs", strings.Join(desc.InputNames(), ","),
		"outputs", strings.Join(desc.OutputNames(), ","),
		"threads", cfg.Threads,
		"optimization", cfg.OptimizationLevel.String(),
	)

	return s, nil
}

// Descriptor returns the model metadata. It is immutable.
func (s *Session) Descriptor() *ModelDescriptor {
	return s.desc
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Run executes one forward pass. inputs must match the descriptor's inputs
// in count and order, and their shapes must satisfy the declared shapes.
// Exactly one output per declared output is returned, in declared order.
func (s *Session) Run(ctx context.Context, inputs []*Tensor) ([]*Tensor, error) {
	if !s.runMu.TryLock() {
		if s.State() == StateClosed {
			return nil, ErrSessionClosed
		}

		return nil, ErrSessionBusy
	}
	defer s.runMu.Unlock()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}

	s.state = StateRunning
	runner := s.runner
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.state == StateRunning {
			s.state = StateReady
		}
		s.mu.Unlock()
	}()

	if err := s.checkInputs(inputs); err != nil {
		return nil, err
	}

	outputs, err := runner.Run(ctx, inputs)
	if err != nil {
		return nil, &InferenceExecutionError{Model: s.desc.Path, Err: err}
	}

	if len(outputs) != len(s.desc.outputs) {
		return nil, &shape.ArityError{Role: "output", Expected: len(s.desc.outputs), Actual: len(outputs)}
	}

	for i, out := range outputs {
		if out == nil {
			return nil, &InferenceExecutionError{
				Model: s.desc.Path,
				Err:   fmt.Errorf("%s: engine returned no tensor", shape.Label("output", i, s.desc.outputs[i].Name)),
			}
		}
	}

	return outputs, nil
}

// ValidateOutputs checks run outputs against the declared output shapes,
// pairing them positionally.
func (s *Session) ValidateOutputs(outputs []*Tensor) error {
	return shape.AssertAll("output", tensorShapes(outputs), s.desc.OutputShapes())
}

// Close releases the engine runner, waiting for an in-flight Run first.
// Closing the environment closes its sessions too. Safe to call multiple
// times.
func (s *Session) Close() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}

	s.state = StateClosed

	if s.runner != nil {
		s.runner.Close()
		s.runner = nil
	}
	s.mu.Unlock()

	s.env.forget(s)

	slog.Debug("closed ONNX session", "path", s.desc.Path)

	return nil
}

func (s *Session) checkInputs(inputs []*Tensor) error {
	declared := s.desc.inputs
	if len(inputs) != len(declared) {
		return &shape.ArityError{Role: "input", Expected: len(declared), Actual: len(inputs)}
	}

	for i, in := range inputs {
		label := shape.Label("input", i, declared[i].Name)
		if in == nil {
			return fmt.Errorf("%s: %w", label, ErrNilTensor)
		}

		if err := shape.AssertTensor(label, in.shape, declared[i].Shape); err != nil {
			return err
		}
	}

	return nil
}

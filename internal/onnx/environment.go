package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrEnvironmentClosed is returned when a session is opened on an
// environment that has been closed.
var ErrEnvironmentClosed = errors.New("environment is closed")

// DefaultAPIVersion is the ORT C API version requested from the library.
const DefaultAPIVersion = 23

// EnvironmentConfig configures the process-wide environment.
type EnvironmentConfig struct {
	Name        string
	LogLevel    LogLevel
	Backend     string
	LibraryPath string
	APIVersion  uint32
}

func (c EnvironmentConfig) withDefaults() EnvironmentConfig {
	if c.Backend == "" {
		c.Backend = BackendPurego
	}

	if c.APIVersion == 0 {
		c.APIVersion = DefaultAPIVersion
	}

	return c
}

// Environment is the process-wide engine handle. It must exist before any
// session is opened and is shared read-only by all sessions.
type Environment struct {
	cfg    EnvironmentConfig
	engine Engine

	mu       sync.Mutex
	closed   bool
	sessions map[*Session]struct{}
}

var (
	envMu   sync.Mutex
	current *Environment
)

// NewEnvironment creates the process-wide environment, or returns the
// existing one when cfg matches it. A different configuration while an
// environment exists fails with *InitializationError, as does any engine
// setup failure.
func NewEnvironment(cfg EnvironmentConfig) (*Environment, error) {
	cfg = cfg.withDefaults()
	if cfg.Name == "" {
		return nil, &InitializationError{Name: cfg.Name, Err: fmt.Errorf("%w: environment name is required", ErrInvalidConfig)}
	}

	envMu.Lock()
	defer envMu.Unlock()

	if current != nil {
		if current.cfg == cfg {
			return current, nil
		}

		return nil, &InitializationError{
			Name: cfg.Name,
			Err: fmt.Errorf("environment %q (backend %s, log level %s) already exists",
				current.cfg.Name, current.cfg.Backend, current.cfg.LogLevel),
		}
	}

	factory, err := lookupEngine(cfg.Backend)
	if err != nil {
		return nil, &InitializationError{Name: cfg.Name, Err: err}
	}

	engine, err := factory(EngineConfig{
		Name:        cfg.Name,
		LogLevel:    cfg.LogLevel,
		LibraryPath: cfg.LibraryPath,
		APIVersion:  cfg.APIVersion,
	})
	if err != nil {
		return nil, &InitializationError{Name: cfg.Name, Err: err}
	}

	slog.Debug(
		"created ONNX environment",
		"name", cfg.Name,
		"backend", cfg.Backend,
		"ort_log_level", cfg.LogLevel.String(),
	)

	current = &Environment{cfg: cfg, engine: engine, sessions: make(map[*Session]struct{})}

	return current, nil
}

// Config returns the configuration the environment was created with.
func (e *Environment) Config() EnvironmentConfig {
	return e.cfg
}

// Close closes every session still open on the environment, waiting for
// in-flight runs, then releases the engine and clears the process-wide slot
// so a new environment may be created. Safe to call multiple times.
func (e *Environment) Close() error {
	envMu.Lock()
	if current == e {
		current = nil
	}
	envMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}

	e.closed = true
	open := make([]*Session, 0, len(e.sessions))
	for s := range e.sessions {
		open = append(open, s)
	}
	e.mu.Unlock()

	if len(open) > 0 {
		slog.Warn("closing sessions left open on environment", "name", e.cfg.Name, "sessions", len(open))
	}

	for _, s := range open {
		_ = s.Close()
	}

	if err := e.engine.Close(); err != nil {
		return fmt.Errorf("close environment %q: %w", e.cfg.Name, err)
	}

	return nil
}

// load hands desc to the engine and records s as open on success.
func (e *Environment) load(s *Session, desc *ModelDescriptor, opts ModelOptions) (GraphRunner, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEnvironmentClosed
	}

	runner, err := e.engine.Load(desc, opts)
	if err != nil {
		return nil, err
	}

	e.sessions[s] = struct{}{}

	return runner, nil
}

func (e *Environment) forget(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.sessions, s)
}

// Shutdown closes the process-wide environment if one exists.
func Shutdown() error {
	envMu.Lock()
	env := current
	envMu.Unlock()

	if env == nil {
		return nil
	}

	return env.Close()
}

package onnx

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Backend names of the bundled engines.
const (
	BackendPurego = "purego"
	BackendCGO    = "cgo"
)

// EngineConfig is what an engine factory receives when the environment is
// created.
type EngineConfig struct {
	Name        string
	LogLevel    LogLevel
	LibraryPath string
	APIVersion  uint32
}

// ModelOptions are the per-session engine settings.
type ModelOptions struct {
	Threads           int
	OptimizationLevel OptimizationLevel
}

// Engine is the execution capability behind an Environment. It turns a
// model file into a GraphRunner.
type Engine interface {
	Load(desc *ModelDescriptor, opts ModelOptions) (GraphRunner, error)
	Close() error
}

// GraphRunner executes one loaded graph. Inputs are positional in the
// descriptor's input order; outputs are returned in its output order.
type GraphRunner interface {
	Run(ctx context.Context, inputs []*Tensor) ([]*Tensor, error)
	Name() string
	Close()
}

// EngineFactory builds an engine for a backend.
type EngineFactory func(cfg EngineConfig) (Engine, error)

var (
	enginesMu sync.RWMutex
	engines   = map[string]EngineFactory{}
)

// RegisterEngine makes a backend available under name. Registering a name
// twice replaces the earlier factory.
func RegisterEngine(name string, factory EngineFactory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()

	engines[name] = factory
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()

	return availableLocked()
}

func lookupEngine(name string) (EngineFactory, error) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()

	f, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, availableLocked())
	}

	return f, nil
}

func availableLocked() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

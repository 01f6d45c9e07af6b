//go:build windows || (js && wasm)

package onnx

import (
	"fmt"
	"runtime"
)

// The purego loader needs dlopen, so on these platforms the backend name
// stays registered but fails with a clear error. Use the cgo backend on
// windows.
func init() {
	RegisterEngine(BackendPurego, func(cfg EngineConfig) (Engine, error) {
		return nil, fmt.Errorf("%s backend is unavailable on %s/%s (environment %q)",
			BackendPurego, runtime.GOOS, runtime.GOARCH, cfg.Name)
	})
}

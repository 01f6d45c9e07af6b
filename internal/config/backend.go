package config

import (
	"fmt"
	"strings"
)

// Engine backend names accepted in environment.backend.
const (
	BackendPurego = "purego"
	BackendCGO    = "cgo"
)

func NormalizeBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		backend = BackendPurego
	}

	switch backend {
	case BackendPurego, BackendCGO:
		return backend, nil
	case "onnxruntime-purego", "nocgo":
		return BackendPurego, nil
	case "onnxruntime_go", "native":
		return BackendCGO, nil
	default:
		return "", fmt.Errorf(
			"invalid backend %q (expected %s|%s)",
			raw,
			BackendPurego,
			BackendCGO,
		)
	}
}

package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/example/go-ort-smoke/internal/config"
)

// RuntimeInfo describes the ONNX Runtime shared library that will be loaded.
type RuntimeInfo struct {
	LibraryPath string
	Version     string
}

var versionPattern = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

// LibraryCandidates are probed when neither config nor environment names
// the ONNX Runtime library.
var LibraryCandidates = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
	"/usr/local/lib/libonnxruntime.dylib",
	"C:/onnxruntime/lib/onnxruntime.dll",
}

// DetectRuntime resolves the library path from config, then ORTSMOKE_ORT_LIB,
// then ORT_LIBRARY_PATH, then LibraryCandidates.
func DetectRuntime(cfg config.RuntimeConfig) (RuntimeInfo, error) {
	path := cfg.ORTLibraryPath
	if path == "" {
		path = os.Getenv("ORTSMOKE_ORT_LIB")
	}

	if path == "" {
		path = os.Getenv("ORT_LIBRARY_PATH")
	}

	if path == "" {
		for _, c := range LibraryCandidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	if path == "" {
		return RuntimeInfo{LibraryPath: "not found", Version: "unknown"}, errors.New("unable to detect ONNX Runtime library path")
	}

	if _, err := os.Stat(path); err != nil {
		return RuntimeInfo{LibraryPath: path, Version: "unknown"}, fmt.Errorf("onnx runtime library path check failed: %w", err)
	}

	version := cfg.ORTVersion
	if version == "" {
		version = os.Getenv("ORT_VERSION")
	}

	if version == "" {
		version = inferVersionFromPath(path)
	}

	if version == "" {
		version = "unknown"
	}

	return RuntimeInfo{LibraryPath: path, Version: version}, nil
}

func inferVersionFromPath(path string) string {
	name := filepath.Base(path)
	if m := versionPattern.FindStringSubmatch(name); len(m) == 2 {
		return m[1]
	}

	return ""
}

// Package testutil provides skip helpers and ONNX fixtures for tests.
//
// Skip helpers call t.Skipf with a clear reason when a prerequisite is
// absent, so integration tests stay runnable in partial environments:
//
//	func TestMyIntegration(t *testing.T) {
//	    testutil.RequireONNXRuntime(t)
//	    path := testutil.RequireModel(t, "ORTSMOKE_POSE_MODEL")
//	    ...
//	}
package testutil

import (
	"os"
	"testing"
)

// LibraryCandidates are the system locations probed by RequireONNXRuntime.
var LibraryCandidates = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
}

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located and returns its path otherwise. It checks ORTSMOKE_ORT_LIB, then
// ORT_LIBRARY_PATH, then common system library paths.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"ORTSMOKE_ORT_LIB", "ORT_LIBRARY_PATH"} {
		if p := os.Getenv(env); p != "" {
			// #nosec G703 -- Integration tests intentionally accept explicit env-provided local library paths.
			if _, err := os.Stat(p); err == nil {
				return p
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)

			return ""
		}
	}

	for _, p := range LibraryCandidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	tb.Skipf("ONNX Runtime shared library not found; set ORTSMOKE_ORT_LIB or ORT_LIBRARY_PATH")

	return ""
}

// RequireModel skips the test unless the environment variable env names an
// existing model file, and returns that path.
func RequireModel(tb testing.TB, env string) string {
	tb.Helper()

	p := os.Getenv(env)
	if p == "" {
		tb.Skipf("%s not set; point it at an ONNX model to run this test", env)
		return ""
	}

	if _, err := os.Stat(p); err != nil {
		tb.Skipf("model %s=%q not available: %v", env, p, err)
		return ""
	}

	return p
}

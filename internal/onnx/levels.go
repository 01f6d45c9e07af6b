package onnx

import (
	"fmt"
	"strings"
)

// LogLevel is the ONNX Runtime logging severity. It is independent of the
// application's slog level.
type LogLevel int

const (
	LogVerbose LogLevel = iota
	LogInfo
	LogWarning
	LogError
	LogFatal
)

func (l LogLevel) String() string {
	switch l {
	case LogVerbose:
		return "verbose"
	case LogInfo:
		return "info"
	case LogWarning:
		return "warning"
	case LogError:
		return "error"
	case LogFatal:
		return "fatal"
	default:
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
}

// ParseLogLevel accepts verbose|info|warning|error|fatal (case-insensitive,
// "warn" is an alias). The empty string is warning.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbose", "trace", "debug":
		return LogVerbose, nil
	case "info":
		return LogInfo, nil
	case "", "warning", "warn":
		return LogWarning, nil
	case "error":
		return LogError, nil
	case "fatal":
		return LogFatal, nil
	default:
		return LogWarning, fmt.Errorf("unknown ORT log level %q (want verbose|info|warning|error|fatal)", s)
	}
}

// OptimizationLevel is the graph optimization level requested for a session.
type OptimizationLevel int

const (
	OptimizationDisabled OptimizationLevel = iota
	OptimizationBasic
	OptimizationExtended
	OptimizationAll
)

func (o OptimizationLevel) String() string {
	switch o {
	case OptimizationDisabled:
		return "disabled"
	case OptimizationBasic:
		return "basic"
	case OptimizationExtended:
		return "extended"
	case OptimizationAll:
		return "all"
	default:
		return fmt.Sprintf("OptimizationLevel(%d)", int(o))
	}
}

// ParseOptimizationLevel accepts disabled|basic|extended|all. The empty
// string is basic.
func ParseOptimizationLevel(s string) (OptimizationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "disable", "none", "off":
		return OptimizationDisabled, nil
	case "", "basic":
		return OptimizationBasic, nil
	case "extended":
		return OptimizationExtended, nil
	case "all":
		return OptimizationAll, nil
	default:
		return OptimizationBasic, fmt.Errorf("unknown optimization level %q (want disabled|basic|extended|all)", s)
	}
}

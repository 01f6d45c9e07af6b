package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ShapeListSeparator separates shapes when a contract list is given as a
// single string, as in ORTSMOKE_CONTRACT_OUTPUTS="1,195;1,1". Commas belong
// to the shapes themselves.
const ShapeListSeparator = ";"

// Config is the full ortsmoke configuration. Values come from defaults, an
// optional config file, ORTSMOKE_* environment variables and flags, in
// increasing precedence.
type Config struct {
	LogLevel    string            `mapstructure:"log_level"`
	Environment EnvironmentConfig `mapstructure:"environment"`
	Runtime     RuntimeConfig     `mapstructure:"runtime"`
	Paths       PathsConfig       `mapstructure:"paths"`
	Input       InputConfig       `mapstructure:"input"`
	Contract    ContractConfig    `mapstructure:"contract"`
}

type EnvironmentConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	Backend  string `mapstructure:"backend"`
}

type RuntimeConfig struct {
	Threads           int    `mapstructure:"threads"`
	OptimizationLevel string `mapstructure:"optimization_level"`
	ORTLibraryPath    string `mapstructure:"ort_library_path"`
	ORTAPIVersion     uint32 `mapstructure:"ort_api_version"`
	ORTVersion        string `mapstructure:"ort_version"`
}

type PathsConfig struct {
	ModelPath string `mapstructure:"model_path"`
}

// InputConfig controls how the synthetic input tensor is built.
type InputConfig struct {
	Fill  string `mapstructure:"fill"`
	Shape string `mapstructure:"shape"`
}

// ContractConfig lists expected shapes, one string per tensor in declared
// order. Empty lists skip the explicit contract check. From the environment
// the list is one string split on ShapeListSeparator.
type ContractConfig struct {
	Inputs  []string `mapstructure:"inputs"`
	Outputs []string `mapstructure:"outputs"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Environment: EnvironmentConfig{
			Name:     "ortsmoke",
			LogLevel: "warning",
			Backend:  BackendPurego,
		},
		Runtime: RuntimeConfig{
			Threads:           1,
			OptimizationLevel: "basic",
			ORTLibraryPath:    "",
			ORTAPIVersion:     23,
			ORTVersion:        "",
		},
		Paths: PathsConfig{
			ModelPath: "pose_landmark_lite.onnx",
		},
		Input: InputConfig{
			Fill:  "linspace",
			Shape: "",
		},
	}
}

// flagKeys maps flag names to config keys. Aliases come after their
// canonical flag so an alias set on the command line wins.
var flagKeys = []struct {
	flag, key string
	alias     bool
}{
	{flag: "log-level", key: "log_level"},
	{flag: "environment-name", key: "environment.name"},
	{flag: "ort-log-level", key: "environment.log_level"},
	{flag: "backend", key: "environment.backend"},
	{flag: "runtime-threads", key: "runtime.threads"},
	{flag: "runtime-optimization-level", key: "runtime.optimization_level"},
	{flag: "runtime-ort-library-path", key: "runtime.ort_library_path"},
	{flag: "ort-lib", key: "runtime.ort_library_path", alias: true},
	{flag: "runtime-ort-api-version", key: "runtime.ort_api_version"},
	{flag: "runtime-ort-version", key: "runtime.ort_version"},
	{flag: "paths-model-path", key: "paths.model_path"},
	{flag: "model", key: "paths.model_path", alias: true},
	{flag: "input-fill", key: "input.fill"},
	{flag: "input-shape", key: "input.shape"},
	{flag: "contract-input", key: "contract.inputs"},
	{flag: "contract-output", key: "contract.outputs"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Application log level (debug|info|warn|error)")
	fs.String("environment-name", defaults.Environment.Name, "ONNX Runtime environment name")
	fs.String("ort-log-level", defaults.Environment.LogLevel, "ONNX Runtime log level (verbose|info|warning|error|fatal)")
	fs.String("backend", defaults.Environment.Backend, "Engine backend (purego|cgo)")
	fs.Int("runtime-threads", defaults.Runtime.Threads, "ONNX Runtime intra-op thread count")
	fs.String("runtime-optimization-level", defaults.Runtime.OptimizationLevel, "Graph optimization level (disabled|basic|extended|all)")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.Uint32("runtime-ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version to request")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.String("paths-model-path", defaults.Paths.ModelPath, "Path to ONNX model")
	fs.String("model", defaults.Paths.ModelPath, "Path to ONNX model (alias for --paths-model-path)")
	fs.String("input-fill", defaults.Input.Fill, "Input content (linspace|zeros|ones)")
	fs.String("input-shape", defaults.Input.Shape, "Concrete input shape for dynamic axes, e.g. 1,3,256,256")
	fs.StringArray("contract-input", defaults.Contract.Inputs, "Expected input shape, repeatable, in declared order (env: shapes separated by ;)")
	fs.StringArray("contract-output", defaults.Contract.Outputs, "Expected output shape, repeatable, in declared order (env: shapes separated by ;)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)

	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("ORTSMOKE")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)

	if err := v.BindEnv("runtime.ort_library_path", "ORTSMOKE_RUNTIME_ORT_LIBRARY_PATH", "ORTSMOKE_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}

	if err := v.BindEnv("environment.log_level", "ORTSMOKE_ORT_LOG_LEVEL", "ORTSMOKE_ENVIRONMENT_LOG_LEVEL"); err != nil {
		return Config{}, fmt.Errorf("bind ort log level env vars: %w", err)
	}

	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ortsmoke")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(shapeListHook)); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	backend, err := NormalizeBackend(cfg.Environment.Backend)
	if err != nil {
		return Config{}, err
	}

	cfg.Environment.Backend = backend

	return cfg, nil
}

// bindFlags binds every registered flag to its key. Alias flags only bind
// when they were set, so the canonical flag keeps its default otherwise.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil || (fk.alias && !f.Changed) {
			continue
		}

		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", fk.flag, err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("environment.name", c.Environment.Name)
	v.SetDefault("environment.log_level", c.Environment.LogLevel)
	v.SetDefault("environment.backend", c.Environment.Backend)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("runtime.optimization_level", c.Runtime.OptimizationLevel)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("paths.model_path", c.Paths.ModelPath)
	v.SetDefault("input.fill", c.Input.Fill)
	v.SetDefault("input.shape", c.Input.Shape)
	v.SetDefault("contract.inputs", c.Contract.Inputs)
	v.SetDefault("contract.outputs", c.Contract.Outputs)
}

// shapeListHook turns a string bound to a []string field into a list split on
// ShapeListSeparator. Flags and config files already yield lists.
var shapeListHook mapstructure.DecodeHookFuncType = func(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string(nil)) {
		return data, nil
	}

	var out []string
	for _, part := range strings.Split(reflect.ValueOf(data).String(), ShapeListSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out, nil
}

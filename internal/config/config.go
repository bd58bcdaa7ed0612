package config

import (
	"fmt"
	"os"
	"strconv"

	"sigs.k8s.io/yaml"

	"vase/internal/distill"
	"vase/internal/inject"
)

// Config bundles the whole option surface: the injection wrapper's
// vase-* knobs and the distiller bounds. Config files are YAML (JSON is
// valid YAML, so either shape loads).
type Config struct {
	Inject  inject.Config   `json:"inject"`
	Distill distill.Options `json:"distill"`
}

// Default returns the documented defaults for every option.
func Default() Config {
	return Config{
		Inject:  inject.DefaultConfig(),
		Distill: distill.DefaultOptions(),
	}
}

// LoadFile overlays a YAML config file on the defaults. Absent fields
// keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Environment variable names for the in-process overrides.
const (
	EnvMap       = "VASE_MAP"
	EnvMaxArrays = "VASE_MAX_ARRAYS"
	EnvMaxBytes  = "VASE_MAX_BYTES"
	EnvMaxValues = "VASE_MAX_VALUES"
	EnvTryPairs  = "VASE_TRY_PAIRS"
	EnvVerbose   = "VASE_VERBOSE"
)

// FromEnv overlays environment variables on cfg. Unset variables leave
// their options untouched.
func FromEnv(cfg Config) Config {
	if v := os.Getenv(EnvMap); v != "" {
		cfg.Inject.MapPath = v
	}
	if v, ok := envInt(EnvMaxArrays); ok {
		cfg.Inject.MaxArrays = v
	}
	if v, ok := envInt(EnvMaxBytes); ok {
		cfg.Inject.MaxBytes = v
	}
	if v, ok := envInt(EnvMaxValues); ok {
		cfg.Inject.MaxValues = v
	}
	if v, ok := envBool(EnvTryPairs); ok {
		cfg.Inject.TryPairs = v
	}
	if v, ok := envBool(EnvVerbose); ok {
		cfg.Inject.Verbose = v
	}
	return cfg
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envBool(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

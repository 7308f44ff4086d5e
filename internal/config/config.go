// Package config loads pandakin's runtime configuration from an optional
// YAML file, environment overrides and built-in defaults, in that order of
// precedence (env wins over file, file wins over defaults).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Backends and transports.
const (
	BackendLocal    = "local"
	BackendExternal = "external"

	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Environment variables.
const (
	EnvConfig    = "PANDAKIN_CONFIG"
	EnvBackend   = "PANDAKIN_BACKEND"
	EnvDataDir   = "PANDAKIN_DATA_DIR"
	EnvTransport = "PANDAKIN_TRANSPORT"
	EnvHTTPAddr  = "PANDAKIN_HTTP_ADDR"
)

// Config is the full runtime configuration.
type Config struct {
	Backend     string            `yaml:"backend"`
	External    ExternalConfig    `yaml:"external"`
	DataDir     string            `yaml:"data_dir"`
	Transport   string            `yaml:"transport"`
	HTTPAddr    string            `yaml:"http_addr"`
	IK          IKConfig          `yaml:"ik"`
	Singularity SingularityConfig `yaml:"singularity"`
	Workspace   WorkspaceConfig   `yaml:"workspace"`
	Jacobian    JacobianConfig    `yaml:"jacobian"`
}

// ExternalConfig describes the subprocess backend.
type ExternalConfig struct {
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

// IKConfig holds solver defaults applied when a request leaves them unset.
type IKConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
	MaxCondition  float64 `yaml:"max_condition"`
}

// SingularityConfig holds the default manipulability threshold.
type SingularityConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// WorkspaceConfig holds sampler defaults.
type WorkspaceConfig struct {
	Samples int    `yaml:"samples"`
	Workers int    `yaml:"workers"`
	Seed    uint64 `yaml:"seed"`
}

// JacobianConfig selects the finite-difference scheme ("forward" or "central").
type JacobianConfig struct {
	Scheme string `yaml:"scheme"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultDataDir is ~/.pandakin, or .pandakin when the home directory is
// unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pandakin"
	}
	return filepath.Join(home, ".pandakin")
}

// Load builds the configuration. An empty path falls back to $PANDAKIN_CONFIG;
// when neither is set only defaults and environment apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvTransport); v != "" {
		c.Transport = v
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.HTTPAddr = v
	}
}

// applyDefaults fills every zero field.
func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendLocal
	}
	if c.External.Timeout == 0 {
		c.External.Timeout = 10 * time.Second
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.Transport == "" {
		c.Transport = TransportStdio
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = "127.0.0.1:8765"
	}
	if c.IK.MaxIterations == 0 {
		c.IK.MaxIterations = 100
	}
	if c.IK.Tolerance == 0 {
		c.IK.Tolerance = 1e-3
	}
	if c.IK.MaxCondition == 0 {
		c.IK.MaxCondition = 1e12
	}
	if c.Singularity.Threshold == 0 {
		c.Singularity.Threshold = 1e-6
	}
	if c.Workspace.Samples == 0 {
		c.Workspace.Samples = 10000
	}
	if c.Jacobian.Scheme == "" {
		c.Jacobian.Scheme = "forward"
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendLocal:
	case BackendExternal:
		if c.External.Command == "" {
			errs = append(errs, errors.New("backend \"external\" requires external.command"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want local or external)", c.Backend))
	}
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q (want stdio or http)", c.Transport))
	}
	if c.External.Timeout < 0 {
		errs = append(errs, fmt.Errorf("external.timeout must not be negative, got %s", c.External.Timeout))
	}
	if c.IK.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("ik.max_iterations must be positive, got %d", c.IK.MaxIterations))
	}
	if !(c.IK.Tolerance > 0) {
		errs = append(errs, fmt.Errorf("ik.tolerance must be positive, got %v", c.IK.Tolerance))
	}
	if !(c.IK.MaxCondition > 1) {
		errs = append(errs, fmt.Errorf("ik.max_condition must exceed 1, got %v", c.IK.MaxCondition))
	}
	if !(c.Singularity.Threshold > 0) {
		errs = append(errs, fmt.Errorf("singularity.threshold must be positive, got %v", c.Singularity.Threshold))
	}
	if c.Workspace.Samples < 1000 || c.Workspace.Samples > 100000 {
		errs = append(errs, fmt.Errorf("workspace.samples must be in [1000, 100000], got %d", c.Workspace.Samples))
	}
	if c.Workspace.Workers < 0 {
		errs = append(errs, fmt.Errorf("workspace.workers must not be negative, got %d", c.Workspace.Workers))
	}
	if c.Jacobian.Scheme != "forward" && c.Jacobian.Scheme != "central" {
		errs = append(errs, fmt.Errorf("unknown jacobian.scheme %q (want forward or central)", c.Jacobian.Scheme))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

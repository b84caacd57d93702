// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads depviz configuration.
//
// Values are layered: the embedded default.yaml, then an external YAML file,
// then DEPVIZ_* environment variables. Command-line flags are applied last by
// the caller.
//
// Thread Safety:
//
//	A loaded Config is a plain value; do not mutate it concurrently.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/depviz/services/depviz/extract"
)

// MaxYAMLFileSize is the maximum allowed config file size (1MB).
const MaxYAMLFileSize = 1024 * 1024

// Environment variables read by Load.
const (
	EnvConfig        = "DEPVIZ_CONFIG"
	EnvLogLevel      = "DEPVIZ_LOG_LEVEL"
	EnvWorkers       = "DEPVIZ_WORKERS"
	EnvOutput        = "DEPVIZ_OUTPUT"
	EnvExternalNodes = "DEPVIZ_EXTERNAL_NODES"
)

// ErrInvalidConfig indicates a config file or value that failed to parse or validate.
var ErrInvalidConfig = errors.New("invalid config")

//go:embed default.yaml
var defaultYAML []byte

var configLoads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "depviz_config_loads_total",
	Help: "Config loads by source and result",
}, []string{"source", "result"})

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("extractor", validateExtractor)
}

// validateExtractor accepts registered extractor names.
func validateExtractor(fl validator.FieldLevel) bool {
	_, err := extract.ByName(fl.Field().String())
	return err == nil
}

// Config is the complete depviz configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Graph     GraphConfig     `yaml:"graph"`
	Output    OutputConfig    `yaml:"output"`
	LSP       LSPConfig       `yaml:"lsp"`
	HTTP      HTTPConfig      `yaml:"http"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=auto text json"`
}

// AnalysisConfig configures the extraction pipeline.
type AnalysisConfig struct {
	// Workers bounds parallel parsing and extraction; 0 means one per CPU.
	Workers int `yaml:"workers" validate:"gte=0,lte=1024"`

	MaxFileSize  int64 `yaml:"max_file_size" validate:"gte=0"`
	StrictSyntax bool  `yaml:"strict_syntax"`

	// Extractors selects extractors by name; empty selects all.
	Extractors []string `yaml:"extractors" validate:"dive,extractor"`

	Exclude []string `yaml:"exclude" validate:"dive,required"`
}

// GraphConfig configures graph output policy.
type GraphConfig struct {
	ExternalNodes string `yaml:"external_nodes" validate:"oneof=keep drop"`
}

// OutputConfig configures the batch output artifact.
type OutputConfig struct {
	Path   string `yaml:"path" validate:"required"`
	Pretty bool   `yaml:"pretty"`
}

// LSPConfig configures the language server.
type LSPConfig struct {
	Watch bool `yaml:"watch"`
}

// HTTPConfig configures the HTTP query surface.
type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
}

// Default returns the embedded defaults.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded default config: %v", err))
	}
	return &cfg
}

// Load builds the configuration.
//
// Description:
//
//	Starts from the embedded defaults, overlays the YAML file at path (when
//	path is empty, $DEPVIZ_CONFIG, ./depviz.yaml or ./config/depviz.yaml if
//	one exists), applies DEPVIZ_* environment overrides and validates.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error   - ErrInvalidConfig for malformed or invalid values; an I/O error
//	          when an explicitly named file cannot be read.
func Load(path string) (*Config, error) {
	cfg := Default()

	src := "default"
	if path == "" {
		path = externalPath()
	}
	if path != "" {
		src = "file"
		data, err := readYAML(path)
		if err != nil {
			configLoads.WithLabelValues(src, "error").Inc()
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			configLoads.WithLabelValues(src, "error").Inc()
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		configLoads.WithLabelValues(src, "error").Inc()
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		configLoads.WithLabelValues(src, "error").Inc()
		return nil, err
	}
	configLoads.WithLabelValues(src, "ok").Inc()
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// externalPath returns the first configured or present config file, "" if none.
func externalPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	for _, loc := range []string{"./depviz.yaml", "./config/depviz.yaml"} {
		if _, err := os.Stat(loc); err == nil {
			abs, err := filepath.Abs(loc)
			if err != nil {
				return loc
			}
			return abs
		}
	}
	return ""
}

// readYAML reads a config file no larger than MaxYAMLFileSize.
func readYAML(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidConfig, abs)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("%w: config file too large: %d bytes (max %d)", ErrInvalidConfig, info.Size(), MaxYAMLFileSize)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return data, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvWorkers, v, err)
		}
		c.Analysis.Workers = n
	}
	if v := getenv(EnvOutput); v != "" {
		c.Output.Path = v
	}
	if v := getenv(EnvExternalNodes); v != "" {
		c.Graph.ExternalNodes = strings.ToLower(v)
	}
	return nil
}

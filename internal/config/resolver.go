// Package config resolves storyweb settings from a YAML file, the
// environment, and CLI flags, recording where each value came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// Float parses the value as a float64, falling back when absent or
// malformed. Geometry tuning resolves through this.
func (v ResolvedValue) Float(fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// Int parses the value as an int, falling back when absent or malformed.
func (v ResolvedValue) Int(fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil {
		return fallback
	}
	return n
}

type ResolveOptions struct {
	ConfigPath string
	CLIDBPath  string
	CLIProject string
	CLIPort    string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath   ResolvedValue `json:"db_path"`
	Project  ResolvedValue `json:"project"`
	Port     ResolvedValue `json:"port"`
	LogLevel ResolvedValue `json:"log_level"`

	Geometry GeometryConfig `json:"geometry"`
}

// GeometryConfig carries the outline tuning knobs. Values resolve from
// the config file only; unset knobs fall back to the pipeline defaults
// at the call site via ResolvedValue.Float / Int.
type GeometryConfig struct {
	NodeMargin       ResolvedValue `json:"node_margin"`
	HullPadding      ResolvedValue `json:"hull_padding"`
	SmoothIterations ResolvedValue `json:"smooth_iterations"`
	CurveSamples     ResolvedValue `json:"curve_samples"`
	PerimeterSamples ResolvedValue `json:"perimeter_samples"`
}

type fileConfig struct {
	DBPath   string `yaml:"db_path"`
	Project  string `yaml:"project"`
	LogLevel string `yaml:"log_level"`
	Serve    struct {
		Port int `yaml:"port"`
	} `yaml:"serve"`
	Geometry struct {
		NodeMargin       *float64 `yaml:"node_margin"`
		HullPadding      *float64 `yaml:"hull_padding"`
		SmoothIterations *int     `yaml:"smooth_iterations"`
		CurveSamples     *int     `yaml:"curve_samples"`
		PerimeterSamples *int     `yaml:"perimeter_samples"`
	} `yaml:"geometry"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".storyweb", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Project, cfg.Project, SourceConfig, path)
		apply(&out.LogLevel, cfg.LogLevel, SourceConfig, path)
		if cfg.Serve.Port > 0 {
			apply(&out.Port, strconv.Itoa(cfg.Serve.Port), SourceConfig, path)
		}
		applyFloat(&out.Geometry.NodeMargin, cfg.Geometry.NodeMargin, path)
		applyFloat(&out.Geometry.HullPadding, cfg.Geometry.HullPadding, path)
		applyInt(&out.Geometry.SmoothIterations, cfg.Geometry.SmoothIterations, path)
		applyInt(&out.Geometry.CurveSamples, cfg.Geometry.CurveSamples, path)
		applyInt(&out.Geometry.PerimeterSamples, cfg.Geometry.PerimeterSamples, path)
	}

	applyEnv(&out.DBPath, "STORYWEB_DB")
	applyEnv(&out.DBPath, "STORYWEB_DB_PATH")
	applyEnv(&out.Project, "STORYWEB_PROJECT")
	applyEnv(&out.Port, "STORYWEB_PORT")
	applyEnv(&out.LogLevel, "STORYWEB_LOG_LEVEL")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Project, opts.CLIProject, SourceCLI, "--project")
	apply(&out.Port, opts.CLIPort, SourceCLI, "--port")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func applyFloat(dst *ResolvedValue, raw *float64, from string) {
	if raw == nil {
		return
	}
	*dst = ResolvedValue{Value: strconv.FormatFloat(*raw, 'f', -1, 64), Source: SourceConfig, From: from}
}

func applyInt(dst *ResolvedValue, raw *int, from string) {
	if raw == nil {
		return
	}
	*dst = ResolvedValue{Value: strconv.Itoa(*raw), Source: SourceConfig, From: from}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Package config loads and validates generator settings from an optional
// YAML file, EBIRD_* environment variables, and flag bindings, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/aingebritson/ebird-hotspot-guide/internal/occurrence"
)

// Config holds all generator settings.
type Config struct {
	// Input location: either a data directory to auto-detect the EBD pair
	// in, or both files named explicitly.
	DataDir      string `mapstructure:"data_dir"`
	MainFile     string `mapstructure:"main_file"`
	SamplingFile string `mapstructure:"sampling_file"`

	OutputDir string `mapstructure:"output_dir"`

	// Rows per chunk when streaming each file. Bounds reader memory; has no
	// effect on results.
	ChunkSize         int `mapstructure:"chunk_size"`
	SamplingChunkSize int `mapstructure:"sampling_chunk_size"`

	MinChecklists       int `mapstructure:"min_checklists"`
	MediumConfidenceMin int `mapstructure:"medium_confidence_min"`
	HighConfidenceMin   int `mapstructure:"high_confidence_min"`

	// Hotspots per species in the index summaries. Full guide files always
	// keep every admitted hotspot.
	TopHotspots int `mapstructure:"top_hotspots"`

	Seasons map[string][]int `mapstructure:"seasons"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// When set, serve Prometheus metrics at this address for the duration of
	// the run. Empty disables the server.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// ValidationError reports a single invalid configuration field. All
// validation happens before any input processing begins.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// New returns a viper instance carrying the generator defaults. Callers bind
// flags onto it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("data_dir", ".")
	v.SetDefault("output_dir", "output")
	v.SetDefault("chunk_size", 100000)
	v.SetDefault("sampling_chunk_size", 50000)
	v.SetDefault("min_checklists", 10)
	v.SetDefault("medium_confidence_min", 30)
	v.SetDefault("high_confidence_min", 100)
	v.SetDefault("top_hotspots", 25)
	v.SetDefault("seasons", map[string][]int(occurrence.DefaultSeasons()))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetEnvPrefix("EBIRD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load resolves the configuration. When cfgFile is set it must exist; when
// empty, a hotspotguide.yaml in the working directory is used if present.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("hotspotguide")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every setting, returning a ValidationError for the first
// inconsistency found.
func (c *Config) Validate() error {
	if c.DataDir == "" && (c.MainFile == "" || c.SamplingFile == "") {
		return &ValidationError{Field: "data_dir", Reason: "set data_dir, or both main_file and sampling_file"}
	}
	if c.OutputDir == "" {
		return &ValidationError{Field: "output_dir", Reason: "must not be empty"}
	}
	if c.ChunkSize < 1 {
		return &ValidationError{Field: "chunk_size", Reason: fmt.Sprintf("must be at least 1, got %d", c.ChunkSize)}
	}
	if c.SamplingChunkSize < 1 {
		return &ValidationError{Field: "sampling_chunk_size", Reason: fmt.Sprintf("must be at least 1, got %d", c.SamplingChunkSize)}
	}
	if c.TopHotspots < 1 {
		return &ValidationError{Field: "top_hotspots", Reason: fmt.Sprintf("must be at least 1, got %d", c.TopHotspots)}
	}
	if err := c.Thresholds().Validate(); err != nil {
		return &ValidationError{Field: "thresholds", Reason: err.Error()}
	}
	if err := c.SeasonPartition().Validate(); err != nil {
		return &ValidationError{Field: "seasons", Reason: err.Error()}
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return &ValidationError{Field: "log_format", Reason: fmt.Sprintf("must be text or json, got %q", c.LogFormat)}
	}
	return nil
}

// Thresholds adapts the config values for the occurrence calculator.
func (c *Config) Thresholds() occurrence.Thresholds {
	return occurrence.Thresholds{
		MinChecklists: c.MinChecklists,
		MediumMin:     c.MediumConfidenceMin,
		HighMin:       c.HighConfidenceMin,
	}
}

// SeasonPartition adapts the configured season map.
func (c *Config) SeasonPartition() occurrence.Seasons {
	return occurrence.Seasons(c.Seasons)
}

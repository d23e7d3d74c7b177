// Package config provides configuration management for otus.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/otus/pkg/cluster"
	"github.com/thebtf/otus/pkg/kmer"
	"github.com/thebtf/otus/pkg/match"
	"github.com/thebtf/otus/pkg/subdivide"
)

const (
	// DefaultMaxClade is the default upper bound on leaves per emitted cluster.
	DefaultMaxClade = 500
	// DefaultOutputFormat writes NEXUS-style tree lines.
	DefaultOutputFormat = "nexus"
	// DefaultDistance selects the alignment oracle.
	DefaultDistance = "align"
)

// OutputFormats lists the accepted output formats.
var OutputFormats = []string{"nexus", "json"}

// Distances lists the accepted distance oracles.
var Distances = []string{"align", "hamming"}

// Config holds the clustering and runtime settings.
type Config struct {
	K                  int       `json:"OTUS_K" yaml:"OTUS_K"`
	FailLimit          int       `json:"OTUS_FAIL_LIMIT" yaml:"OTUS_FAIL_LIMIT"`
	Adaptive           bool      `json:"OTUS_ADAPTIVE" yaml:"OTUS_ADAPTIVE"`
	AdaptiveMinSamples int       `json:"OTUS_ADAPTIVE_MIN_SAMPLES" yaml:"OTUS_ADAPTIVE_MIN_SAMPLES"`
	AdaptiveFactor     float64   `json:"OTUS_ADAPTIVE_FACTOR" yaml:"OTUS_ADAPTIVE_FACTOR"`
	MaxClade           int       `json:"OTUS_MAX_CLADE" yaml:"OTUS_MAX_CLADE"`
	Thresholds         []float64 `json:"OTUS_THRESHOLDS" yaml:"OTUS_THRESHOLDS"`
	Distance           string    `json:"OTUS_DISTANCE" yaml:"OTUS_DISTANCE"`
	Correction         bool      `json:"OTUS_CORRECTION" yaml:"OTUS_CORRECTION"`
	Workers            int       `json:"OTUS_WORKERS" yaml:"OTUS_WORKERS"`
	Seed               uint64    `json:"OTUS_SEED" yaml:"OTUS_SEED"`
	EstimateSamples    int       `json:"OTUS_ESTIMATE_SAMPLES" yaml:"OTUS_ESTIMATE_SAMPLES"`
	EstimateSubSample  int       `json:"OTUS_ESTIMATE_SUBSAMPLE" yaml:"OTUS_ESTIMATE_SUBSAMPLE"`
	EstimateRounds     int       `json:"OTUS_ESTIMATE_ROUNDS" yaml:"OTUS_ESTIMATE_ROUNDS"`
	EstimatePercentile float64   `json:"OTUS_ESTIMATE_PERCENTILE" yaml:"OTUS_ESTIMATE_PERCENTILE"`
	EstimateDivisor    float64   `json:"OTUS_ESTIMATE_DIVISOR" yaml:"OTUS_ESTIMATE_DIVISOR"`
	MaxDepth           int       `json:"OTUS_MAX_DEPTH" yaml:"OTUS_MAX_DEPTH"`
	Dedupe             bool      `json:"OTUS_DEDUPE" yaml:"OTUS_DEDUPE"`
	DBPath             string    `json:"OTUS_DB_PATH" yaml:"OTUS_DB_PATH"`
	OutputFormat       string    `json:"OTUS_OUTPUT_FORMAT" yaml:"OTUS_OUTPUT_FORMAT"`
}

var (
	cached     *Config
	cachedOnce sync.Once
)

// Default returns the default configuration.
func Default() *Config {
	mp := match.DefaultParams()
	ep := subdivide.DefaultEstimateParams()
	bo := subdivide.DefaultOptions()
	return &Config{
		K:                  kmer.DefaultK,
		FailLimit:          mp.FailLimit,
		Adaptive:           mp.Adaptive,
		AdaptiveMinSamples: mp.AdaptiveMinSamples,
		AdaptiveFactor:     mp.AdaptiveFactor,
		MaxClade:           DefaultMaxClade,
		Distance:           DefaultDistance,
		Correction:         true,
		Workers:            bo.Workers,
		Seed:               bo.Seed,
		EstimateSamples:    ep.Samples,
		EstimateSubSample:  ep.SubSample,
		EstimateRounds:     ep.Rounds,
		EstimatePercentile: ep.Percentile,
		EstimateDivisor:    ep.Divisor,
		MaxDepth:           bo.MaxDepth,
		Dedupe:             true,
		DBPath:             DBPath(),
		OutputFormat:       DefaultOutputFormat,
	}
}

// DataDir returns the otus data directory.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".otus")
}

// DBPath returns the default run database path.
func DBPath() string {
	return filepath.Join(DataDir(), "otus.db")
}

// SettingsPath returns the JSON settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// YAMLSettingsPath returns the YAML settings file path, read when no JSON file exists.
func YAMLSettingsPath() string {
	return filepath.Join(DataDir(), "settings.yaml")
}

// EnsureDataDir creates the data directory if needed.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureAll creates the data directory and the default settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads the settings file from the data directory and applies environment
// overrides. A missing or unreadable file yields the defaults.
func Load() (*Config, error) {
	path := SettingsPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = YAMLSettingsPath()
	}
	return LoadFile(path)
}

// LoadFile reads settings from path, choosing the decoder by extension.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	default:
		parsed := Default()
		if err := decode(path, data, parsed); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Invalid settings file, using defaults")
		} else {
			cfg = parsed
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	cachedOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load config, using defaults")
			cfg = Default()
		}
		cached = cfg
	})
	return cached
}

func applyEnv(cfg *Config) {
	envInt("OTUS_K", &cfg.K)
	envInt("OTUS_FAIL_LIMIT", &cfg.FailLimit)
	envBool("OTUS_ADAPTIVE", &cfg.Adaptive)
	envInt("OTUS_ADAPTIVE_MIN_SAMPLES", &cfg.AdaptiveMinSamples)
	envFloat("OTUS_ADAPTIVE_FACTOR", &cfg.AdaptiveFactor)
	envInt("OTUS_MAX_CLADE", &cfg.MaxClade)
	envString("OTUS_DISTANCE", &cfg.Distance)
	envBool("OTUS_CORRECTION", &cfg.Correction)
	envInt("OTUS_WORKERS", &cfg.Workers)
	envInt("OTUS_ESTIMATE_SAMPLES", &cfg.EstimateSamples)
	envInt("OTUS_ESTIMATE_SUBSAMPLE", &cfg.EstimateSubSample)
	envInt("OTUS_ESTIMATE_ROUNDS", &cfg.EstimateRounds)
	envFloat("OTUS_ESTIMATE_PERCENTILE", &cfg.EstimatePercentile)
	envFloat("OTUS_ESTIMATE_DIVISOR", &cfg.EstimateDivisor)
	envInt("OTUS_MAX_DEPTH", &cfg.MaxDepth)
	envBool("OTUS_DEDUPE", &cfg.Dedupe)
	envString("OTUS_DB_PATH", &cfg.DBPath)
	envString("OTUS_OUTPUT_FORMAT", &cfg.OutputFormat)

	if v := os.Getenv("OTUS_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Seed = seed
		} else {
			log.Warn().Str("key", "OTUS_SEED").Str("value", v).Msg("Ignoring invalid environment value")
		}
	}
	if v := os.Getenv("OTUS_THRESHOLDS"); v != "" {
		if ths, err := ParseThresholds(v); err == nil {
			cfg.Thresholds = ths
		} else {
			log.Warn().Err(err).Str("key", "OTUS_THRESHOLDS").Msg("Ignoring invalid environment value")
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid environment value")
		return
	}
	*dst = n
}

func envFloat(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid environment value")
		return
	}
	*dst = f
}

func envBool(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid environment value")
		return
	}
	*dst = b
}

// ParseThresholds parses a comma separated threshold list such as "0.1,0.05".
func ParseThresholds(s string) ([]float64, error) {
	parts := splitTrim(s)
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("threshold %q: %w", p, err)
		}
		if f < 0 || f > 1 {
			return nil, fmt.Errorf("threshold %g outside [0, 1]", f)
		}
		out = append(out, f)
	}
	return out, nil
}

// splitTrim splits a comma-separated string and trims whitespace from each part.
func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Validate reports the first setting that cannot drive a run.
func (c *Config) Validate() error {
	switch {
	case c.K <= 0:
		return fmt.Errorf("k must be positive, got %d", c.K)
	case c.MaxClade < 1:
		return fmt.Errorf("max clade must be at least 1, got %d", c.MaxClade)
	case c.AdaptiveFactor <= 0 || c.AdaptiveFactor > 1:
		return fmt.Errorf("adaptive factor must be in (0, 1], got %g", c.AdaptiveFactor)
	case c.EstimatePercentile < 0 || c.EstimatePercentile > 1:
		return fmt.Errorf("estimate percentile must be in [0, 1], got %g", c.EstimatePercentile)
	case c.EstimateDivisor <= 0:
		return fmt.Errorf("estimate divisor must be positive, got %g", c.EstimateDivisor)
	case c.MaxDepth < 1:
		return fmt.Errorf("max depth must be at least 1, got %d", c.MaxDepth)
	}
	if err := subdivide.CheckThresholds(c.Thresholds); err != nil {
		return err
	}
	if !contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q", c.OutputFormat)
	}
	if !contains(Distances, c.Distance) {
		return fmt.Errorf("unknown distance %q", c.Distance)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// MatchParams returns the candidate scan parameters.
func (c *Config) MatchParams() match.Params {
	return match.Params{
		FailLimit:          c.FailLimit,
		Adaptive:           c.Adaptive,
		AdaptiveMinSamples: c.AdaptiveMinSamples,
		AdaptiveFactor:     c.AdaptiveFactor,
	}
}

// ClusterOptions returns the single-pass clustering options.
func (c *Config) ClusterOptions() cluster.Options {
	return cluster.Options{K: c.K, Match: c.MatchParams()}
}

// BreakdownOptions returns the recursive subdivision options.
func (c *Config) BreakdownOptions() subdivide.Options {
	return subdivide.Options{
		Cluster:    c.ClusterOptions(),
		Thresholds: append([]float64(nil), c.Thresholds...),
		Estimate: subdivide.EstimateParams{
			Samples:    c.EstimateSamples,
			SubSample:  c.EstimateSubSample,
			Rounds:     c.EstimateRounds,
			Percentile: c.EstimatePercentile,
			Divisor:    c.EstimateDivisor,
			Levels:     subdivide.DefaultEstimateParams().Levels,
		},
		Seed:     c.Seed,
		Workers:  c.Workers,
		MaxDepth: c.MaxDepth,
	}
}

// Package config loads the pipeline configuration from YAML, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"storm-decay-lab/internal/classify"
	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/idhash"
	"storm-decay-lab/internal/measure"
	"storm-decay-lab/internal/normalization"
	"storm-decay-lab/internal/window"
)

const day = 24 * time.Hour

type Config struct {
	Logging  LoggingConfig     `yaml:"logging"`
	Database DatabaseConfig    `yaml:"database"`
	Ingest   IngestConfig      `yaml:"ingest"`
	Cleaning CleaningConfig    `yaml:"cleaning"`
	Windows  []WindowSetConfig `yaml:"windows"`
	Measure  MeasureConfig     `yaml:"measure"`
	Classify ClassifyConfig    `yaml:"classify"`
	Pipeline PipelineConfig    `yaml:"pipeline"`
	Archive  ArchiveConfig     `yaml:"archive"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type DatabaseConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

type IngestConfig struct {
	DstPath         string `yaml:"dst_path"`
	ElementsDir     string `yaml:"elements_dir"`
	OrbitRaisePath  string `yaml:"orbit_raise_path"`
	CatalogPath     string `yaml:"catalog_path"`
	Magnitude       bool   `yaml:"magnitude"`
	LoadConcurrency int    `yaml:"load_concurrency"`
}

type CleaningConfig struct {
	MinSamples    int      `yaml:"min_samples"`
	MinAge        Duration `yaml:"min_age"`
	MaxAltitudeKM float64  `yaml:"max_altitude_km"`
}

type WindowSetConfig struct {
	Label       string   `yaml:"label"`
	Mode        string   `yaml:"mode"`
	Threshold   float64  `yaml:"threshold"`
	Percentile  float64  `yaml:"percentile"`
	MergeGap    Duration `yaml:"merge_gap"`
	MinDuration Duration `yaml:"min_duration"`
}

type MeasureConfig struct {
	OffsetsDays   []int   `yaml:"offsets_days"`
	DecayGuardKM  float64 `yaml:"decay_guard_km"`
	IncludeAnchor bool    `yaml:"include_anchor"`
}

type ClassifyConfig struct {
	VanishedPolicy string `yaml:"vanished_policy"`
}

type PipelineConfig struct {
	Workers      int    `yaml:"workers"`
	OutputDir    string `yaml:"output_dir"`
	MetricsAddr  string `yaml:"metrics_addr"`
	TrackingDays int    `yaml:"tracking_days"`
}

type ArchiveConfig struct {
	Parquet ParquetConfig `yaml:"parquet"`
	S3      S3Config      `yaml:"s3"`
}

type ParquetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Duration is a time.Duration that also accepts a whole or fractional day
// prefix in YAML, e.g. "13d" or "1d12h".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration parses a Go duration with an optional leading day count.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	var total time.Duration
	if i := strings.IndexByte(s, 'd'); i >= 0 {
		days, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		total = time.Duration(days * float64(day))
		s = s[i+1:]
		if s == "" {
			return total, nil
		}
	}

	rest, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return total + rest, nil
}

// Default returns the configuration used when no file is given: storm sets
// above the 80th, 95th and 99th index percentile and a quiet set below the
// 80th lasting more than 13 days, all merged across gaps up to 10 days.
func Default() *Config {
	clean := normalization.DefaultRules()
	meas := measure.DefaultConfig()
	gap := Duration(10 * day)

	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Ingest: IngestConfig{
			Magnitude:       true,
			LoadConcurrency: 8,
		},
		Cleaning: CleaningConfig{
			MinSamples:    clean.MinSamples,
			MinAge:        Duration(clean.MinAge),
			MaxAltitudeKM: clean.MaxAltitudeKM,
		},
		Windows: []WindowSetConfig{
			{Label: "storm_p80", Mode: string(domain.ModeAbove), Percentile: 80, MergeGap: gap},
			{Label: "storm_p95", Mode: string(domain.ModeAbove), Percentile: 95, MergeGap: gap},
			{Label: "storm_p99", Mode: string(domain.ModeAbove), Percentile: 99, MergeGap: gap},
			{Label: "quiet_p80", Mode: string(domain.ModeBelow), Percentile: 80, MergeGap: gap, MinDuration: Duration(13 * day)},
		},
		Measure: MeasureConfig{
			OffsetsDays:   meas.OffsetsDays,
			DecayGuardKM:  meas.DecayGuardKM,
			IncludeAnchor: meas.IncludeAnchor,
		},
		Classify: ClassifyConfig{
			VanishedPolicy: string(classify.VanishedExclude),
		},
		Pipeline: PipelineConfig{
			Workers:      runtime.NumCPU(),
			OutputDir:    "reports",
			TrackingDays: 30,
		},
		Archive: ArchiveConfig{
			Parquet: ParquetConfig{Compression: "snappy"},
		},
	}
}

// LoadDotEnv loads .env from the working directory. A missing file is not
// an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads path on top of Default, applies environment overrides and
// validates the result. An empty path uses the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	override(&c.Logging.Level, "LOG_LEVEL")
	override(&c.Database.PostgresDSN, "POSTGRES_DSN")
	override(&c.Database.ClickhouseDSN, "CLICKHOUSE_DSN")
	override(&c.Archive.S3.Bucket, "S3_BUCKET")
	override(&c.Archive.S3.Region, "AWS_REGION")
	override(&c.Archive.S3.Endpoint, "S3_ENDPOINT")
	override(&c.Archive.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
	override(&c.Archive.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")

	c.Archive.S3.Bucket = strings.TrimSpace(c.Archive.S3.Bucket)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	if c.Cleaning.MinSamples < 0 {
		return errors.New("cleaning.min_samples must not be negative")
	}
	if c.Cleaning.MaxAltitudeKM <= 0 {
		return errors.New("cleaning.max_altitude_km must be greater than 0")
	}

	if len(c.Windows) == 0 {
		return errors.New("windows must define at least one set")
	}
	seen := make(map[string]bool, len(c.Windows))
	for _, s := range c.WindowSets() {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("windows: %w", err)
		}
		if seen[s.Label] {
			return fmt.Errorf("windows: duplicate label %q", s.Label)
		}
		seen[s.Label] = true
	}

	if err := c.Measurement().Validate(); err != nil {
		return err
	}
	if !c.VanishedPolicy().Valid() {
		return fmt.Errorf("classify.vanished_policy must be exclude or zero, got %q", c.Classify.VanishedPolicy)
	}

	if c.Pipeline.Workers <= 0 {
		return errors.New("pipeline.workers must be greater than 0")
	}
	if c.Pipeline.TrackingDays < 0 {
		return errors.New("pipeline.tracking_days must not be negative")
	}

	if c.Archive.S3.Enabled {
		if c.Archive.S3.Bucket == "" {
			return errors.New("archive.s3.bucket is required when S3 is enabled")
		}
		if c.Archive.S3.Region == "" {
			return errors.New("archive.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(c.Archive.S3.Bucket) {
			return fmt.Errorf("archive.s3.bucket '%s' is invalid", c.Archive.S3.Bucket)
		}
	}
	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if strings.Contains(name, "..") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}

// WindowSets returns the configured window sets in file order.
func (c *Config) WindowSets() []window.Set {
	sets := make([]window.Set, 0, len(c.Windows))
	for _, w := range c.Windows {
		sets = append(sets, window.Set{
			Label:       w.Label,
			Mode:        domain.ThresholdMode(w.Mode),
			Threshold:   w.Threshold,
			Percentile:  w.Percentile,
			MergeGap:    w.MergeGap.Std(),
			MinDuration: w.MinDuration.Std(),
		})
	}
	return sets
}

// Measurement returns the measurer configuration.
func (c *Config) Measurement() measure.Config {
	offsets := make([]int, len(c.Measure.OffsetsDays))
	copy(offsets, c.Measure.OffsetsDays)
	return measure.Config{
		OffsetsDays:   offsets,
		DecayGuardKM:  c.Measure.DecayGuardKM,
		IncludeAnchor: c.Measure.IncludeAnchor,
	}
}

// CleaningRules returns the satellite cleaning thresholds.
func (c *Config) CleaningRules() normalization.Rules {
	return normalization.Rules{
		MinSamples:    c.Cleaning.MinSamples,
		MinAge:        c.Cleaning.MinAge.Std(),
		MaxAltitudeKM: c.Cleaning.MaxAltitudeKM,
	}
}

// VanishedPolicy returns the classifier's vanished point policy.
func (c *Config) VanishedPolicy() classify.VanishedPolicy {
	return classify.VanishedPolicy(c.Classify.VanishedPolicy)
}

// Signature returns the SHA256 of the settings that determine run results.
// Connections, outputs and credentials are left out so equal analyses sign
// equally across environments.
func (c *Config) Signature() (string, error) {
	return idhash.ConfigSignature(struct {
		Magnitude bool
		Cleaning  CleaningConfig
		Windows   []WindowSetConfig
		Measure   MeasureConfig
		Classify  ClassifyConfig
	}{c.Ingest.Magnitude, c.Cleaning, c.Windows, c.Measure, c.Classify})
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/mchmarny/riskprep/pkg/clean"
	"github.com/mchmarny/riskprep/pkg/data"
	"github.com/mchmarny/riskprep/pkg/export"
	"github.com/mchmarny/riskprep/pkg/feature"
	"github.com/mchmarny/riskprep/pkg/load"
	"github.com/mchmarny/riskprep/pkg/net"
	"github.com/mchmarny/riskprep/pkg/pipeline"
	"github.com/mchmarny/riskprep/pkg/risk"
	"github.com/mchmarny/riskprep/pkg/split"
)

const (
	FileName  = "riskprep.yaml"
	EnvPrefix = "RISKPREP_"

	DefaultYear = 5

	dirMode  = 0o755
	fileMode = 0o644
)

// ErrInvalid is returned when the merged configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the effective configuration of a riskprep invocation.
type Config struct {
	Dataset  Dataset  `koanf:"dataset" yaml:"dataset" json:"dataset"`
	Paths    Paths    `koanf:"paths" yaml:"paths" json:"paths"`
	Clip     Clip     `koanf:"clip" yaml:"clip" json:"clip"`
	Risk     Risk     `koanf:"risk" yaml:"risk" json:"risk"`
	Features Features `koanf:"features" yaml:"features" json:"features"`
	Split    Split    `koanf:"split" yaml:"split" json:"split"`
	Store    Store    `koanf:"store" yaml:"store" json:"store"`
	Fetch    Fetch    `koanf:"fetch" yaml:"fetch" json:"fetch"`
}

type Dataset struct {
	Name string `koanf:"name" yaml:"name" json:"name" validate:"required"`
	Year int    `koanf:"year" yaml:"year" json:"year" validate:"min=1,max=5"`
}

type Paths struct {
	Raw       string `koanf:"raw" yaml:"raw" json:"raw" validate:"required"`
	Archive   string `koanf:"archive" yaml:"archive" json:"archive" validate:"required"`
	Processed string `koanf:"processed" yaml:"processed" json:"processed" validate:"required"`
	Splits    string `koanf:"splits" yaml:"splits" json:"splits" validate:"required"`
	Artifacts string `koanf:"artifacts" yaml:"artifacts" json:"artifacts" validate:"required"`
}

// Clip bounds are percentiles in [0, 100].
type Clip struct {
	Enabled bool    `koanf:"enabled" yaml:"enabled" json:"enabled"`
	Lower   float64 `koanf:"lower" yaml:"lower" json:"lower" validate:"gte=0,lt=100"`
	Upper   float64 `koanf:"upper" yaml:"upper" json:"upper" validate:"lte=100,gtfield=Lower"`
}

type Risk struct {
	Target         string  `koanf:"target" yaml:"target" json:"target"`
	Label          string  `koanf:"label" yaml:"label" json:"label" validate:"required"`
	MaxKeyRatios   int     `koanf:"max_key_ratios" yaml:"max_key_ratios" json:"max_key_ratios" validate:"min=1"`
	Profitability  string  `koanf:"profitability" yaml:"profitability,omitempty" json:"profitability,omitempty"`
	Leverage       string  `koanf:"leverage" yaml:"leverage,omitempty" json:"leverage,omitempty"`
	MediumQuantile float64 `koanf:"medium_quantile" yaml:"medium_quantile" json:"medium_quantile" validate:"gt=0,lt=1"`
	HighQuantile   float64 `koanf:"high_quantile" yaml:"high_quantile" json:"high_quantile" validate:"lt=1,gtfield=MediumQuantile"`
	Epsilon        float64 `koanf:"epsilon" yaml:"epsilon" json:"epsilon" validate:"gt=0"`
}

type Features struct {
	CorrelationThreshold float64 `koanf:"correlation_threshold" yaml:"correlation_threshold" json:"correlation_threshold" validate:"gt=0,lte=1"`
}

type Split struct {
	TestSize float64 `koanf:"test_size" yaml:"test_size" json:"test_size" validate:"gt=0,lt=1"`
	Seed     uint64  `koanf:"seed" yaml:"seed" json:"seed"`
	Stratify string  `koanf:"stratify" yaml:"stratify" json:"stratify"`
}

// Store selects the artifact database. An empty DSN disables it.
type Store struct {
	Driver string `koanf:"driver" yaml:"driver" json:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `koanf:"dsn" yaml:"dsn" json:"dsn"`
}

type Fetch struct {
	URL string `koanf:"url" yaml:"url" json:"url" validate:"required,url"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	r := risk.DefaultOptions()
	s := split.DefaultOptions()
	c := clean.DefaultClipOptions()
	return &Config{
		Dataset: Dataset{Name: load.DefaultDatasetName, Year: DefaultYear},
		Paths: Paths{
			Raw:       load.DefaultRawDir,
			Archive:   load.DefaultArchiveDir,
			Processed: export.DefaultProcessedDir,
			Splits:    export.DefaultSplitsDir,
			Artifacts: export.DefaultArtifactsDir,
		},
		Clip: Clip{Enabled: c.Enabled, Lower: c.Lower, Upper: c.Upper},
		Risk: Risk{
			Target:         r.Target,
			Label:          r.Label,
			MaxKeyRatios:   r.MaxKeyRatios,
			MediumQuantile: r.MediumQuantile,
			HighQuantile:   r.HighQuantile,
			Epsilon:        r.Epsilon,
		},
		Features: Features{CorrelationThreshold: feature.DefaultCorrelationThreshold},
		Split:    Split{TestSize: s.TestSize, Seed: s.Seed, Stratify: r.Label},
		Store: Store{
			Driver: data.DriverSQLite,
			DSN:    filepath.Join(export.DefaultArtifactsDir, data.DataFileName),
		},
		Fetch: Fetch{URL: net.DatasetURL},
	}
}

// Load merges defaults, the YAML file at path and RISKPREP_ environment
// variables, in that order. An empty path falls back to riskprep.yaml in
// the working directory when it exists. A double underscore in a variable
// name nests: RISKPREP_SPLIT__TEST_SIZE sets split.test_size.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]any{}
	b, err := yamlv3.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}
	if err := yamlv3.Unmarshal(b, &defaults); err != nil {
		return nil, fmt.Errorf("failed to unmarshal defaults: %w", err)
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(FileName); err == nil {
			path = FileName
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks the configuration and lists every offending field.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config required", ErrInvalid)
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		fields = append(fields, fmt.Sprintf("%s (%s)", ns, fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, ", "))
}

// Save writes c as riskprep.yaml into dirPath and returns the file path.
func Save(dirPath string, c *Config) (string, error) {
	if dirPath == "" {
		return "", errors.New("config directory required")
	}
	if c == nil {
		return "", errors.New("config required")
	}
	if err := os.MkdirAll(dirPath, dirMode); err != nil {
		return "", fmt.Errorf("failed to create dir %s: %w", dirPath, err)
	}
	b, err := yamlv3.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dirPath, FileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return "", fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return path, nil
}

// LoadOptions returns the loader options for year and an optional
// explicit path. A zero year uses the configured one.
func (c *Config) LoadOptions(year int, path string) load.Options {
	if year == 0 {
		year = c.Dataset.Year
	}
	return load.Options{
		Path:        path,
		DatasetName: c.Dataset.Name,
		Year:        year,
		RawDir:      c.Paths.Raw,
		ArchiveDir:  c.Paths.Archive,
	}
}

func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Clip: clean.ClipOptions{
			Enabled: c.Clip.Enabled,
			Lower:   c.Clip.Lower,
			Upper:   c.Clip.Upper,
		},
		Risk: risk.Options{
			Target:         c.Risk.Target,
			Label:          c.Risk.Label,
			MaxKeyRatios:   c.Risk.MaxKeyRatios,
			Profitability:  c.Risk.Profitability,
			Leverage:       c.Risk.Leverage,
			MediumQuantile: c.Risk.MediumQuantile,
			HighQuantile:   c.Risk.HighQuantile,
			Epsilon:        c.Risk.Epsilon,
		},
		CorrelationThreshold: c.Features.CorrelationThreshold,
		Split: split.Options{
			TestSize: c.Split.TestSize,
			Seed:     c.Split.Seed,
			Stratify: c.Split.Stratify,
		},
	}
}

func (c *Config) ExportOptions(year int) export.Options {
	if year == 0 {
		year = c.Dataset.Year
	}
	return export.Options{
		ProcessedDir: c.Paths.Processed,
		SplitsDir:    c.Paths.Splits,
		ArtifactsDir: c.Paths.Artifacts,
		DatasetName:  c.Dataset.Name,
		Year:         year,
		LabelColumn:  c.Risk.Label,
	}
}

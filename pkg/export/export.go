package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/mchmarny/riskprep/pkg/feature"
	"github.com/mchmarny/riskprep/pkg/load"
	"github.com/mchmarny/riskprep/pkg/pipeline"
	"github.com/mchmarny/riskprep/pkg/table"
)

const (
	DefaultProcessedDir = "data/processed"
	DefaultSplitsDir    = "data/splits"
	DefaultArtifactsDir = "artifacts"

	TrainFile    = "train.csv"
	TestFile     = "test.csv"
	ScalerFile   = "scaler.yaml"
	FeaturesFile = "features.yaml"

	dirPerm  = 0o755
	filePerm = 0o644
)

var errNoResult = errors.New("nothing to export: pipeline result is nil")

// Options name the output locations.
type Options struct {
	ProcessedDir string
	SplitsDir    string
	ArtifactsDir string
	DatasetName  string
	Year         int
	// LabelColumn is appended to the split files. Empty omits it.
	LabelColumn string
}

// Paths lists the files written by Write.
type Paths struct {
	Processed string `json:"processed" yaml:"processed"`
	Train     string `json:"train" yaml:"train"`
	Test      string `json:"test" yaml:"test"`
	Scaler    string `json:"scaler" yaml:"scaler"`
	Features  string `json:"features" yaml:"features"`
}

// FeatureList is the content of the features artifact.
type FeatureList struct {
	Retained []string `yaml:"retained"`
	Removed  []string `yaml:"removed,omitempty"`
	Scaled   []string `yaml:"scaled"`
}

// Write persists the processed table, both scaled partitions and the
// scaler and feature artifacts of a run.
func Write(res *pipeline.Result, opt Options) (*Paths, error) {
	if res == nil || res.Processed == nil || res.Scaled == nil {
		return nil, errNoResult
	}
	o := opt.withDefaults()

	for _, d := range []string{o.ProcessedDir, o.SplitsDir, o.ArtifactsDir} {
		if err := os.MkdirAll(d, dirPerm); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	p := &Paths{
		Processed: filepath.Join(o.ProcessedDir, fmt.Sprintf("%s_%dyear_processed.csv", o.DatasetName, o.Year)),
		Train:     filepath.Join(o.SplitsDir, TrainFile),
		Test:      filepath.Join(o.SplitsDir, TestFile),
		Scaler:    filepath.Join(o.ArtifactsDir, ScalerFile),
		Features:  filepath.Join(o.ArtifactsDir, FeaturesFile),
	}

	if err := writeFile(p.Processed, func(w io.Writer) error { return WriteTable(w, res.Processed) }); err != nil {
		return nil, err
	}

	var g errgroup.Group
	g.Go(func() error {
		return writeFile(p.Train, func(w io.Writer) error {
			return WriteMatrix(w, res.Scaled.Stats, res.Scaled.Train, o.LabelColumn, res.TrainLabels)
		})
	})
	g.Go(func() error {
		return writeFile(p.Test, func(w io.Writer) error {
			return WriteMatrix(w, res.Scaled.Stats, res.Scaled.Test, o.LabelColumn, res.TestLabels)
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := WriteScaler(p.Scaler, res.Scaled.Stats); err != nil {
		return nil, err
	}

	fl := FeatureList{
		Retained: res.Summary.Features.Retained,
		Removed:  res.Summary.Features.Removed,
		Scaled:   res.Features,
	}
	if err := writeYAML(p.Features, fl); err != nil {
		return nil, err
	}

	slog.Debug("run exported", "processed", p.Processed, "train", p.Train, "test", p.Test)
	return p, nil
}

func (o Options) withDefaults() Options {
	if o.ProcessedDir == "" {
		o.ProcessedDir = DefaultProcessedDir
	}
	if o.SplitsDir == "" {
		o.SplitsDir = DefaultSplitsDir
	}
	if o.ArtifactsDir == "" {
		o.ArtifactsDir = DefaultArtifactsDir
	}
	if o.DatasetName == "" {
		o.DatasetName = load.DefaultDatasetName
	}
	return o
}

// WriteTable writes t as CSV with a header row. Missing cells are empty.
func WriteTable(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i := 0; i < t.NumRows(); i++ {
		if err := cw.Write(t.Row(i)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMatrix writes a scaled matrix as CSV named after the fitted
// columns of s, followed by an optional label column. NaN cells are
// written empty and a nil matrix writes the header only.
func WriteMatrix(w io.Writer, s *feature.ScalerStats, m *mat.Dense, labelCol string, labels []string) error {
	t, err := s.ToTable(m)
	if err != nil {
		return err
	}
	if labelCol != "" {
		if labels == nil {
			labels = []string{}
		}
		cols := append(t.Columns(), table.NewCategorical(labelCol, labels, nil))
		if t, err = table.New(cols...); err != nil {
			return fmt.Errorf("adding label column: %w", err)
		}
	}
	return WriteTable(w, t)
}

// WriteScaler saves scaler stats as YAML.
func WriteScaler(path string, s *feature.ScalerStats) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return writeYAML(path, s)
}

// ReadScaler loads scaler stats saved by WriteScaler.
func ReadScaler(path string) (*feature.ScalerStats, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scaler file %s: %w", path, err)
	}
	var s feature.ScalerStats
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parsing scaler file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scaler file %s: %w", path, err)
	}
	return &s, nil
}

func writeYAML(path string, v any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, filePerm); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func writeFile(path string, fn func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

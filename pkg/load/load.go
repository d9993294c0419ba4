package load

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/riskprep/pkg/table"
)

const (
	DefaultDatasetName = "polish_companies_bankruptcy"
	DefaultRawDir      = "data/raw"
	DefaultArchiveDir  = "polish+companies+bankruptcy+data"

	extARFF = ".arff"
	extCSV  = ".csv"
	extXLSX = ".xlsx"
)

var (
	ErrNotFound          = errors.New("dataset file not found")
	ErrInvalidYear       = errors.New("year must be between 1 and 5")
	ErrMissingDependency = errors.New("no decoder registered")
)

// Decoder turns raw file content into a table.
type Decoder interface {
	Decode(r io.Reader) (*table.Table, error)
}

// Options select the file to load. Path, when set, wins over the
// name/year lookup.
type Options struct {
	Path        string
	DatasetName string
	Year        int
	RawDir      string
	ArchiveDir  string
}

func (o Options) withDefaults() Options {
	if o.DatasetName == "" {
		o.DatasetName = DefaultDatasetName
	}
	if o.RawDir == "" {
		o.RawDir = DefaultRawDir
	}
	if o.ArchiveDir == "" {
		o.ArchiveDir = DefaultArchiveDir
	}
	return o
}

// Loader locates dataset files and decodes them with the decoders
// registered for their extension.
type Loader struct {
	decoders map[string]Decoder
}

// Option configures a Loader.
type Option func(*Loader)

// WithDecoder registers d for files with the given extension.
func WithDecoder(ext string, d Decoder) Option {
	return func(l *Loader) {
		l.decoders[normalizeExt(ext)] = d
	}
}

// New returns a loader with only the given decoders registered.
func New(opts ...Option) *Loader {
	l := &Loader{decoders: make(map[string]Decoder)}
	for _, o := range opts {
		o(l)
	}
	return l
}

// NewDefault returns a loader with the ARFF, CSV and XLSX decoders.
func NewDefault(opts ...Option) *Loader {
	base := []Option{
		WithDecoder(extARFF, ARFF{}),
		WithDecoder(extCSV, CSV{}),
		WithDecoder(extXLSX, XLSX{}),
	}
	return New(append(base, opts...)...)
}

// Candidates returns the paths searched for a dataset name and year,
// in lookup order.
func Candidates(opt Options) ([]string, error) {
	o := opt.withDefaults()
	if o.Year < 1 || o.Year > 5 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidYear, o.Year)
	}
	y := fmt.Sprintf("%dyear", o.Year)
	return []string{
		filepath.Join(o.RawDir, o.DatasetName+extCSV),
		filepath.Join(o.RawDir, o.DatasetName+"_"+y+extCSV),
		filepath.Join(o.RawDir, y+extARFF),
		filepath.Join(o.RawDir, o.DatasetName+"_"+y+extARFF),
		filepath.Join(o.ArchiveDir, y+extARFF),
		filepath.Join(o.ArchiveDir, y+extCSV),
	}, nil
}

// Locate returns the first existing candidate path, or the explicit path
// when one is set.
func Locate(opt Options) (string, error) {
	if opt.Path != "" {
		if !fileExists(opt.Path) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, opt.Path)
		}
		return opt.Path, nil
	}

	paths, err := Candidates(opt)
	if err != nil {
		return "", err
	}
	for _, p := range paths {
		if fileExists(p) {
			return p, nil
		}
	}

	o := opt.withDefaults()
	return "", fmt.Errorf("%w: expected one of the year %d files in %s (searched %s)",
		ErrNotFound, o.Year, o.RawDir, strings.Join(paths, ", "))
}

// Load locates and decodes the dataset. It returns the table and the path
// it was read from.
func (l *Loader) Load(opt Options) (*table.Table, string, error) {
	path, err := Locate(opt)
	if err != nil {
		return nil, "", err
	}
	t, err := l.LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	slog.Debug("dataset loaded", "path", path, "rows", t.NumRows(), "cols", t.NumCols())
	return t, path, nil
}

// LoadFile decodes a single file using the decoder registered for its
// extension. Files with an unregistered extension are tried as ARFF and
// then as CSV.
func (l *Loader) LoadFile(path string) (*table.Table, error) {
	ext := normalizeExt(filepath.Ext(path))

	if d, ok := l.decoders[ext]; ok {
		return decodeFile(d, path)
	}

	switch ext {
	case extARFF:
		return nil, fmt.Errorf("%w for %s files: register one with load.WithDecoder(%q, load.ARFF{})",
			ErrMissingDependency, extARFF, extARFF)
	case extCSV, extXLSX:
		return nil, fmt.Errorf("%w for %s files", ErrMissingDependency, ext)
	}

	var arffErr error
	if d, ok := l.decoders[extARFF]; ok {
		t, err := decodeFile(d, path)
		if err == nil {
			return t, nil
		}
		arffErr = err
	}

	d, ok := l.decoders[extCSV]
	if !ok {
		if arffErr != nil {
			return nil, arffErr
		}
		return nil, fmt.Errorf("%w for %s", ErrMissingDependency, path)
	}
	t, err := decodeFile(d, path)
	if err != nil {
		if arffErr != nil {
			return nil, fmt.Errorf("%w (as ARFF: %v)", err, arffErr)
		}
		return nil, err
	}
	return t, nil
}

func decodeFile(d Decoder, path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	t, err := d.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return t, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/mchmarny/riskprep/pkg/config"
	"github.com/mchmarny/riskprep/pkg/data"
	"github.com/mchmarny/riskprep/pkg/export"
	"github.com/mchmarny/riskprep/pkg/feature"
	"github.com/mchmarny/riskprep/pkg/load"
	"github.com/mchmarny/riskprep/pkg/pipeline"
)

const (
	flagYear      = "year"
	flagPath      = "path"
	flagNoClip    = "no-clip"
	flagDB        = "db"
	flagNoStore   = "no-store"
	flagScaler    = "scaler"
	flagScalerRun = "scaler-run"
)

func yearFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  flagYear,
		Usage: fmt.Sprintf("Dataset year [1-5] (default: %d, or dataset.year from config)", config.DefaultYear),
	}
}

func pathFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  flagPath,
		Usage: "Explicit dataset file (.arff, .csv, .xlsx), overrides the year lookup",
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  flagDB,
		Usage: "Artifact store DSN, overrides store.dsn from config",
	}
}

func newPrepareCmd() *cli.Command {
	return &cli.Command{
		Name:    "prepare",
		Aliases: []string{"p"},
		Usage:   "Clean, label, select, split and scale a dataset year",
		UsageText: `riskprep prepare --year 3                    # locate and prepare year 3
   riskprep prepare --path data/raw/5year.arff  # prepare an explicit file
   riskprep prepare --year 1 --no-clip --scaler artifacts/scaler.yaml`,
		Action: cmdPrepare,
		Flags: []cli.Flag{
			yearFlag(),
			pathFlag(),
			&cli.BoolFlag{
				Name:  flagNoClip,
				Usage: "Disable percentile outlier clipping",
			},
			dbFlag(),
			&cli.BoolFlag{
				Name:  flagNoStore,
				Usage: "Do not record the run in the artifact store",
			},
			&cli.StringFlag{
				Name:  flagScaler,
				Usage: "Reuse scaler stats from a YAML artifact instead of fitting",
			},
			&cli.StringFlag{
				Name:  flagScalerRun,
				Usage: "Reuse scaler stats saved with a previous run ID",
			},
		},
	}
}

// PrepareResult is the output of the prepare command.
type PrepareResult struct {
	RunID   string            `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Source  string            `json:"source" yaml:"source"`
	Files   *export.Paths     `json:"files" yaml:"files"`
	Summary *pipeline.Summary `json:"summary" yaml:"summary"`
}

func cmdPrepare(ctx context.Context, cmd *cli.Command) error {
	start := time.Now()
	app := getConfig(ctx)
	cfg := *app.Config

	if cmd.Bool(flagNoClip) {
		cfg.Clip.Enabled = false
	}
	if dsn := cmd.String(flagDB); dsn != "" {
		cfg.Store.DSN = dsn
	}

	lo := cfg.LoadOptions(cmd.Int(flagYear), cmd.String(flagPath))
	t, src, err := load.NewDefault().Load(lo)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	slog.Info("loaded", "source", src, "rows", t.NumRows(), "cols", t.NumCols())

	var store *data.Store
	if !cmd.Bool(flagNoStore) && cfg.Store.DSN != "" {
		store, err = openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	opt := cfg.PipelineOptions()
	opt.Scaler, err = reusedScaler(ctx, cmd, store)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(t, opt)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	files, err := export.Write(res, cfg.ExportOptions(lo.Year))
	if err != nil {
		return fmt.Errorf("exporting results: %w", err)
	}

	out := &PrepareResult{Source: src, Files: files, Summary: &res.Summary}
	if store != nil {
		run, err := newRunDetail(&cfg, lo, src, res)
		if err != nil {
			return err
		}
		if out.RunID, err = store.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		slog.Info("run saved", "id", out.RunID)
	}

	slog.Debug("prepare done", "duration", time.Since(start).String())
	return encode(writerOf(cmd), app.Format, out)
}

func reusedScaler(ctx context.Context, cmd *cli.Command, store *data.Store) (*feature.ScalerStats, error) {
	if p := cmd.String(flagScaler); p != "" {
		s, err := export.ReadScaler(p)
		if err != nil {
			return nil, fmt.Errorf("reading scaler %s: %w", p, err)
		}
		return s, nil
	}
	id := cmd.String(flagScalerRun)
	if id == "" {
		return nil, nil
	}
	if store == nil {
		return nil, fmt.Errorf("--%s requires the artifact store", flagScalerRun)
	}
	s, err := store.GetScalerStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading scaler of run %s: %w", id, err)
	}
	return s, nil
}

func newRunDetail(cfg *config.Config, lo load.Options, src string, res *pipeline.Result) (*data.RunDetail, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	sum := res.Summary
	d := &data.RunDetail{
		Run: data.Run{
			Dataset:    lo.DatasetName,
			Year:       lo.Year,
			Source:     src,
			InputRows:  sum.InputRows,
			OutputRows: sum.OutputRows,
			TrainRows:  sum.Split.Train,
			TestRows:   sum.Split.Test,
			Config:     string(b),
		},
		Retained: sum.Features.Retained,
		Removed:  sum.Features.Removed,
		Scaler:   sum.Scaler,
	}
	if sum.Risk != nil {
		d.Labels = sum.Risk.Counts
	}
	return d, nil
}

func openStore(ctx context.Context, sc config.Store) (*data.Store, error) {
	s, err := data.Open(sc.Driver, sc.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening artifact store: %w", err)
	}
	if err := s.Init(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("initializing artifact store: %w", err)
	}
	return s, nil
}

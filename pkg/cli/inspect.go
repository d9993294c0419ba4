package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/mchmarny/riskprep/pkg/clean"
	"github.com/mchmarny/riskprep/pkg/load"
	"github.com/mchmarny/riskprep/pkg/risk"
	"github.com/mchmarny/riskprep/pkg/stats"
	dataset "github.com/mchmarny/riskprep/pkg/table"
)

const defaultInspectLimit = 20

const (
	flagLimit = "limit"
	flagLabel = "label"
)

func newInspectCmd() *cli.Command {
	return &cli.Command{
		Name:    "inspect",
		Aliases: []string{"i"},
		Usage:   "Print a column summary of a dataset year",
		UsageText: `riskprep inspect --year 3
   riskprep inspect --path data/raw/1year.arff --limit 0 --label`,
		Action: cmdInspect,
		Flags: []cli.Flag{
			yearFlag(),
			pathFlag(),
			&cli.IntFlag{
				Name:  flagLimit,
				Usage: "Maximum number of columns to list, 0 lists all",
				Value: defaultInspectLimit,
			},
			&cli.BoolFlag{
				Name:  flagLabel,
				Usage: "Also print the risk label distribution",
			},
		},
	}
}

type columnSummary struct {
	Name    string
	Kind    string
	Missing int
	Min     float64
	Max     float64
	Mean    float64
	Std     float64
	Mode    string
}

func cmdInspect(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(ctx).Config
	lo := cfg.LoadOptions(cmd.Int(flagYear), cmd.String(flagPath))

	t, src, err := load.NewDefault().Load(lo)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	w := writerOf(cmd)
	fmt.Fprintf(w, "%s: %d rows, %d columns\n", src, t.NumRows(), t.NumCols())
	renderColumns(w, summarizeColumns(t, cmd.Int(flagLimit)))

	if !cmd.Bool(flagLabel) {
		return nil
	}

	imputed, _ := clean.Impute(t)
	_, res, err := risk.Label(imputed, cfg.PipelineOptions().Risk)
	if err != nil {
		return fmt.Errorf("labeling dataset: %w", err)
	}
	renderDistribution(w, res)
	return nil
}

func summarizeColumns(t *dataset.Table, limit int) []*columnSummary {
	cols := t.Columns()
	if limit > 0 && len(cols) > limit {
		cols = cols[:limit]
	}

	list := make([]*columnSummary, 0, len(cols))
	for _, c := range cols {
		s := &columnSummary{Name: c.Name, Kind: c.Kind.String(), Missing: c.MissingCount()}
		if c.Kind == dataset.Numeric {
			s.Min, s.Max = stats.MinMax(c.Floats)
			s.Mean, s.Std = stats.MeanStd(c.Floats)
		} else {
			s.Min, s.Max, s.Mean, s.Std = math.NaN(), math.NaN(), math.NaN(), math.NaN()
			var present []string
			for i, v := range c.Texts {
				if !c.IsMissing(i) {
					present = append(present, v)
				}
			}
			s.Mode, _ = stats.Mode(present)
		}
		list = append(list, s)
	}
	return list
}

func renderColumns(w io.Writer, list []*columnSummary) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Column", "Kind", "Missing", "Min", "Max", "Mean", "Std", "Mode"})
	for _, s := range list {
		tw.AppendRow(table.Row{
			s.Name, s.Kind, s.Missing,
			formatStat(s.Min), formatStat(s.Max), formatStat(s.Mean), formatStat(s.Std),
			s.Mode,
		})
	}
	tw.Render()
}

func renderDistribution(w io.Writer, res *risk.Result) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("Risk levels (target: %s)", res.Target)
	tw.AppendHeader(table.Row{"Level", "Rows"})
	total := 0
	for _, l := range risk.Levels {
		tw.AppendRow(table.Row{l, res.Counts[l]})
		total += res.Counts[l]
	}
	tw.AppendFooter(table.Row{"Total", total})
	tw.Render()
	fmt.Fprintf(w, "key ratios: %v, bankrupt: %d\n", res.KeyRatios, res.Bankrupt)
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

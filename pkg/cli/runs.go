package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/mchmarny/riskprep/pkg/data"
)

const flagID = "id"

func newRunsCmd() *cli.Command {
	return &cli.Command{
		Name:    "runs",
		Aliases: []string{"r"},
		Usage:   "List, show and delete recorded pipeline runs",
		Flags: []cli.Flag{
			dbFlag(),
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List the most recent runs",
				Action: cmdListRuns,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  flagLimit,
						Usage: fmt.Sprintf("Number of runs to list (default: %d)", data.DefaultListLimit),
						Value: data.DefaultListLimit,
					},
				},
			},
			{
				Name:   "show",
				Usage:  "Show a run with its features, scaler stats and label counts",
				Action: cmdShowRun,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagID,
						Usage:    "Run ID",
						Required: true,
					},
				},
			},
			{
				Name:   "delete",
				Usage:  "Delete a run and its artifacts",
				Action: cmdDeleteRun,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagID,
						Usage:    "Run ID",
						Required: true,
					},
				},
			},
			{
				Name:   "reset",
				Usage:  "Delete all recorded runs",
				Action: cmdResetRuns,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  flagYes,
						Usage: "Skip the confirmation prompt",
					},
				},
			},
			{
				Name:   "state",
				Usage:  "Print row counts of the artifact store",
				Action: cmdStoreState,
			},
		},
	}
}

func runsStore(ctx context.Context, cmd *cli.Command) (*data.Store, error) {
	sc := getConfig(ctx).Config.Store
	if dsn := cmd.String(flagDB); dsn != "" {
		sc.DSN = dsn
	}
	if sc.DSN == "" {
		return nil, fmt.Errorf("artifact store not configured, set store.dsn or --%s", flagDB)
	}
	return openStore(ctx, sc)
}

func cmdListRuns(ctx context.Context, cmd *cli.Command) error {
	s, err := runsStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	list, err := s.ListRuns(ctx, cmd.Int(flagLimit))
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	renderRuns(writerOf(cmd), list)
	return nil
}

func cmdShowRun(ctx context.Context, cmd *cli.Command) error {
	s, err := runsStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.GetRun(ctx, cmd.String(flagID))
	if err != nil {
		return fmt.Errorf("getting run: %w", err)
	}
	return encode(writerOf(cmd), getConfig(ctx).Format, r)
}

func cmdStoreState(ctx context.Context, cmd *cli.Command) error {
	s, err := runsStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	state, err := s.GetDataState(ctx)
	if err != nil {
		return fmt.Errorf("getting store state: %w", err)
	}
	return encode(writerOf(cmd), getConfig(ctx).Format, state)
}

func renderRuns(w io.Writer, list []*data.Run) {
	if len(list) == 0 {
		fmt.Fprintln(w, "(0 runs)")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "Dataset", "Year", "Input", "Output", "Train", "Test", "Created"})
	for _, r := range list {
		tw.AppendRow(table.Row{
			r.ID, r.Dataset, r.Year, r.InputRows, r.OutputRows, r.TrainRows, r.TestRows,
			r.CreatedAt.Local().Format(time.DateTime),
		})
	}
	tw.Render()
	fmt.Fprintf(w, "(%d runs)\n", len(list))
}

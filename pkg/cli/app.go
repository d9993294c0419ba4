package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/mchmarny/riskprep/pkg/config"
	"github.com/mchmarny/riskprep/pkg/logging"
)

const (
	appName = "riskprep"

	flagDebug  = "debug"
	flagConfig = "config"
	flagFormat = "format"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

type appConfigKey struct{}

// appConfig is the state shared by every command of one invocation.
type appConfig struct {
	Config *config.Config
	Format string
	Debug  bool
}

func getConfig(ctx context.Context) *appConfig {
	if c, ok := ctx.Value(appConfigKey{}).(*appConfig); ok {
		return c
	}
	return &appConfig{Config: config.Default(), Format: formatJSON}
}

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Prepare the Polish companies bankruptcy dataset for risk modeling",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&cli.StringFlag{
				Name:  flagConfig,
				Usage: fmt.Sprintf("Path to the config file (optional, default: ./%s)", config.FileName),
			},
			&cli.StringFlag{
				Name:  flagFormat,
				Usage: "Output format [json, yaml]",
				Value: formatJSON,
			},
		},
		Commands: []*cli.Command{
			newPrepareCmd(),
			newInspectCmd(),
			newFetchCmd(),
			newRunsCmd(),
			newConfigCmd(),
		},
		Before: before,
	}
}

func before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	debug := cmd.Bool(flagDebug)
	if debug {
		logging.SetDefaultCLILogger("debug")
	}

	format := formatJSON
	switch f := cmd.String(flagFormat); f {
	case formatJSON:
	case formatYAML, "yml":
		format = formatYAML
	default:
		return ctx, fmt.Errorf("unsupported output format: %s", f)
	}

	cfg, err := config.Load(cmd.String(flagConfig))
	if err != nil {
		return ctx, fmt.Errorf("loading configuration: %w", err)
	}
	slog.Debug("configuration loaded", "dataset", cfg.Dataset.Name, "year", cfg.Dataset.Year)

	return context.WithValue(ctx, appConfigKey{}, &appConfig{
		Config: cfg,
		Format: format,
		Debug:  debug,
	}), nil
}

func encode(w io.Writer, format string, v any) error {
	if w == nil {
		return errors.New("output writer required")
	}
	if format == formatYAML {
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

func writerOf(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

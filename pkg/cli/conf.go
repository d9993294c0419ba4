package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/mchmarny/riskprep/pkg/config"
)

const (
	flagDir   = "dir"
	flagForce = "force"
)

func newConfigCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or initialize the configuration",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the effective configuration",
				Action: cmdShowConfig,
			},
			{
				Name:   "init",
				Usage:  fmt.Sprintf("Write a default %s", config.FileName),
				Action: cmdInitConfig,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagDir,
						Usage: "Directory to write the config file into",
						Value: ".",
					},
					&cli.BoolFlag{
						Name:  flagForce,
						Usage: "Overwrite an existing config file",
					},
				},
			},
		},
	}
}

func cmdShowConfig(ctx context.Context, cmd *cli.Command) error {
	app := getConfig(ctx)
	return encode(writerOf(cmd), app.Format, app.Config)
}

func cmdInitConfig(_ context.Context, cmd *cli.Command) error {
	dir := cmd.String(flagDir)
	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil && !cmd.Bool(flagForce) {
		return fmt.Errorf("config file %s already exists, use --%s to overwrite", path, flagForce)
	}

	path, err := config.Save(dir, config.Default())
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	slog.Info("config written", "path", path)
	fmt.Fprintln(writerOf(cmd), path)
	return nil
}

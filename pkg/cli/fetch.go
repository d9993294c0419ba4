package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/mchmarny/riskprep/pkg/net"
)

const (
	archiveFileName = "dataset.zip"

	flagURL         = "url"
	flagKeepArchive = "keep-archive"
)

func newFetchCmd() *cli.Command {
	return &cli.Command{
		Name:    "fetch",
		Aliases: []string{"f"},
		Usage:   "Download the dataset archive and extract the yearly files into the raw dir",
		Action:  cmdFetch,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagURL,
				Usage: "Dataset archive URL, overrides fetch.url from config",
			},
			&cli.BoolFlag{
				Name:  flagKeepArchive,
				Usage: "Keep the downloaded archive next to the extracted files",
			},
		},
	}
}

// FetchResult is the output of the fetch command.
type FetchResult struct {
	URL      string   `json:"url" yaml:"url"`
	Files    []string `json:"files" yaml:"files"`
	Archive  string   `json:"archive,omitempty" yaml:"archive,omitempty"`
	Duration string   `json:"duration" yaml:"duration"`
}

func cmdFetch(ctx context.Context, cmd *cli.Command) error {
	start := time.Now()
	app := getConfig(ctx)
	cfg := app.Config

	url := cmd.String(flagURL)
	if url == "" {
		url = cfg.Fetch.URL
	}

	archive := filepath.Join(cfg.Paths.Raw, archiveFileName)
	slog.Info("downloading", "url", url, "path", archive)
	if err := net.Download(ctx, url, archive); err != nil {
		return fmt.Errorf("downloading dataset: %w", err)
	}

	files, err := net.Extract(archive, cfg.Paths.Raw)
	if err != nil {
		return fmt.Errorf("extracting dataset: %w", err)
	}
	slog.Info("extracted", "files", len(files), "dir", cfg.Paths.Raw)

	res := &FetchResult{URL: url, Files: files}
	if cmd.Bool(flagKeepArchive) {
		res.Archive = archive
	} else if err := os.Remove(archive); err != nil {
		slog.Warn("failed to remove archive", "path", archive, "error", err)
	}

	res.Duration = time.Since(start).String()
	return encode(writerOf(cmd), app.Format, res)
}

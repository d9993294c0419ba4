package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

const flagYes = "yes"

func cmdDeleteRun(ctx context.Context, cmd *cli.Command) error {
	s, err := runsStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	id := cmd.String(flagID)
	if err := s.DeleteRun(ctx, id); err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	slog.Info("run deleted", "id", id)
	return nil
}

func cmdResetRuns(ctx context.Context, cmd *cli.Command) error {
	s, err := runsStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	w := writerOf(cmd)
	if !cmd.Bool(flagYes) {
		fmt.Fprintln(w, "This will permanently delete all recorded runs")
		fmt.Fprint(w, "Are you sure? [y/N]: ")

		ok, err := confirm(readerOf(cmd))
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if !ok {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	n, err := s.DeleteRuns(ctx)
	if err != nil {
		return fmt.Errorf("resetting runs: %w", err)
	}
	slog.Info("runs deleted", "count", n)
	fmt.Fprintln(w, "Reset complete.")
	return nil
}

func confirm(r io.Reader) (bool, error) {
	answer, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	return strings.ToLower(strings.TrimSpace(answer)) == "y", nil
}

func readerOf(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

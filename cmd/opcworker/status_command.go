package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/plc-filebridge/backend/internal/journal"
	"github.com/plc-filebridge/backend/internal/logging"
	"github.com/plc-filebridge/backend/internal/progress"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stored watermarks and recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			snap, err := progress.NewStore(cfg.ProgressFile, logging.NewNop()).Load()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Progress (%s)\n", cfg.ProgressFile)
			fmt.Fprintln(out, renderProgress(snap.Entries()))

			if cfg.JournalPath == "" {
				return nil
			}
			j, err := journal.OpenDuckReadOnly(cfg.JournalPath)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warn: journal unavailable: %v\n", err)
				return nil
			}
			defer j.Close()
			runs, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nRecent runs (%s)\n", cfg.JournalPath)
			fmt.Fprintln(out, renderRuns(runs, shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

func renderProgress(entries []progress.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		wm := e.Raw
		if !e.Valid {
			wm += " (invalid)"
		}
		rows = append(rows, []string{e.Key.FilePath, e.Key.Sheet, wm})
	}
	return renderTable([]string{"File", "Sheet", "Watermark"}, rows, nil)
}

func renderRuns(runs []journal.RunSummary, color bool) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.StartedAt.Local().Format(time.DateTime),
			r.DataID,
			r.FilePath,
			colorStatus(r.Status, color),
			strconv.Itoa(r.Rows),
			strconv.Itoa(r.FailedCells),
			(time.Duration(r.DurationMS) * time.Millisecond).String(),
			r.Error,
		})
	}
	return renderTable(
		[]string{"Started", "Data ID", "File", "Status", "Rows", "Failed", "Took", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

const (
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiReset = "\033[0m"
)

func colorStatus(status string, color bool) string {
	if !color {
		return status
	}
	switch status {
	case "ok":
		return ansiGreen + status + ansiReset
	case "failed":
		return ansiRed + status + ansiReset
	}
	return status
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

package main

import (
	"fmt"
	"io"

	"github.com/bietkhonhungvandi212/pagemap/internal/bench"
	"github.com/bietkhonhungvandi212/pagemap/internal/logger"
	"github.com/bietkhonhungvandi212/pagemap/internal/storage/file"
	util "github.com/bietkhonhungvandi212/pagemap/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newBenchCommand(opts *util.Options, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Run concurrent page uses against a file and verify it.",
		Long: `
Registers --pages pages of --page-size bytes from --path across
--priority-levels levels, then runs --workers workers doing --iterations
use/release cycles each under --mapping-limit. A --dirty-ratio share of the
uses writes a new pattern into the page. At the end the dirty list is flushed
synchronously and every page is compared against the file.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(logger.Config{Level: opts.LogLevel, Format: opts.LogFormat})
			if err != nil {
				return err
			}
			defer log.Sync()

			log.Debug("starting bench", zap.Any("options", opts))
			res, err := bench.Run(cmd.Context(), *opts, file.NewMapper(), log)
			if err != nil {
				return err
			}

			writeResult(stdout, opts, res)
			if opts.Metrics {
				_, err = stdout.Write(res.Metrics)
			}
			return err
		},
	}
}

func writeResult(w io.Writer, opts *util.Options, res *bench.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	// Don't uppercase the header values.
	t.Style().Format.Header = text.FormatDefault

	s := res.Stats
	t.AppendHeader(table.Row{"metric", "value"})
	for _, row := range []table.Row{
		{"file", opts.Path},
		{"pages", fmt.Sprintf("%d x %s", res.Pages, humanize.IBytes(uint64(opts.PageSize)))},
		{"workers", res.Workers},
		{"uses", humanize.Comma(int64(res.Uses))},
		{"dirty uses", humanize.Comma(int64(res.DirtyUses))},
		{"elapsed", res.Duration.String()},
		{"mapping limit", humanize.IBytes(uint64(s.MappingLimit))},
		{"mapped", fmt.Sprintf("%s (%d pages)", humanize.IBytes(uint64(s.MappedBytes)), s.MappedPages)},
		{"map calls", humanize.Comma(int64(s.MapCount))},
		{"evictions", humanize.Comma(int64(s.Evictions))},
		{"flushes", humanize.Comma(int64(s.Flushes))},
		{"flushed at end", res.Flushed},
		{"verified pages", res.Verified},
		{"file blake3", fmt.Sprintf("%x", res.FileDigest[:8])},
	} {
		t.AppendRow(row)
	}
	t.Render()
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/regingest/internal/pipeline"
)

type ingestOptions struct {
	noCache        bool
	recursive      bool
	ingestObsolete bool
	workers        int
	reportDir      string
	quiet          bool
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	opts := &ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest <dir> | <file>...",
		Short: "Process a directory or a list of files and push the chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, root, opts, args)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.noCache, "no-cache", false, "reprocess files even when unchanged since the last run")
	f.BoolVarP(&opts.recursive, "recursive", "r", false, "descend into subdirectories")
	f.BoolVar(&opts.ingestObsolete, "ingest-obsolete", false, "ingest documents older than the registered edition")
	f.IntVarP(&opts.workers, "workers", "w", 0, "concurrent files (default WORKER_COUNT)")
	f.StringVar(&opts.reportDir, "report-dir", "", "write batch_report_*.json and .txt here (default REPORT_DIR)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "print only the summary, not the full report")
	return cmd
}

func runIngest(cmd *cobra.Command, root *rootOptions, opts *ingestOptions, args []string) error {
	log := root.logger()
	cfg, err := root.config()
	if err != nil {
		return err
	}
	if opts.noCache {
		cfg.UseCache = false
	}
	if cmd.Flags().Changed("recursive") {
		cfg.Recursive = opts.recursive
	}
	if cmd.Flags().Changed("ingest-obsolete") {
		cfg.IngestObsolete = opts.ingestObsolete
	}
	if opts.workers > 0 {
		cfg.WorkerCount = opts.workers
	}
	if opts.reportDir != "" {
		cfg.ReportDir = opts.reportDir
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}

	// First signal stops new files; files in flight finish.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := runInputs(ctx, a.coord, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !opts.quiet {
		fmt.Fprint(out, pipeline.TextReport(rep))
	}
	if cfg.ReportDir != "" {
		jsonPath, txtPath, err := pipeline.SaveReport(cfg.ReportDir, rep)
		if err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		fmt.Fprintf(out, "Report saved to %s and %s\n", jsonPath, txtPath)
	}
	printSummary(out, rep)

	if rep.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", rep.Failed, rep.Total)
	}
	return nil
}

// runInputs treats a single directory argument as a directory run and
// anything else as a list of files.
func runInputs(ctx context.Context, coord *pipeline.Coordinator, args []string) (pipeline.BatchReport, error) {
	if len(args) == 1 {
		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			return coord.RunDirectory(ctx, args[0])
		}
	}
	sources := make([]pipeline.Source, len(args))
	for i, p := range args {
		sources[i] = pipeline.Source{Path: p}
	}
	return coord.Run(ctx, sources)
}

func printSummary(w io.Writer, rep pipeline.BatchReport) {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "%s %d processed, %d chunks in %.2fs\n",
		green("✓"), rep.Successful, rep.TotalChunks, rep.Duration().Seconds())
	if rep.Skipped > 0 {
		fmt.Fprintf(w, "%s %d skipped\n", yellow("-"), rep.Skipped)
	}
	if rep.Failed > 0 {
		fmt.Fprintf(w, "%s %d failed\n", red("✗"), rep.Failed)
	}
	if n := len(rep.VersionConflicts); n > 0 {
		fmt.Fprintf(w, "%s %d version conflicts, see `regingest versions conflicts`\n", yellow("!"), n)
	}
	if rep.Cancelled {
		fmt.Fprintf(w, "%s run cancelled before all files started\n", yellow("!"))
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/regingest/internal/pipeline"
	"github.com/dgallion1/regingest/internal/watch"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		recursive bool
		debounce  time.Duration
		initial   bool
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Ingest files in a directory as they are created or changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := root.logger()
			cfg, err := root.config()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("recursive") {
				cfg.Recursive = recursive
			}
			if debounce > 0 {
				cfg.WatchDebounce = debounce
			}
			if err := cfg.Validate(false); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			finish := func(rep pipeline.BatchReport) {
				if cfg.ReportDir != "" {
					if _, _, err := pipeline.SaveReport(cfg.ReportDir, rep); err != nil {
						log.Error("save report failed", "error", err)
					}
				}
				printSummary(out, rep)
			}

			if initial {
				rep, err := a.coord.RunDirectory(ctx, args[0])
				if err != nil {
					return err
				}
				finish(rep)
			}

			w := &watch.Watcher{Dir: args[0], Recursive: cfg.Recursive, Debounce: cfg.WatchDebounce, Log: log}
			fmt.Fprintf(out, "Watching %s, press Ctrl+C to stop\n", args[0])
			return w.Run(ctx, func(ctx context.Context, paths []string) {
				sources := make([]pipeline.Source, len(paths))
				for i, p := range paths {
					sources[i] = pipeline.Source{Path: p}
				}
				rep, err := a.coord.Run(ctx, sources)
				if err != nil {
					log.Error("watch run failed", "error", err)
					return
				}
				finish(rep)
			})
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&recursive, "recursive", "r", false, "watch subdirectories too")
	f.DurationVar(&debounce, "debounce", 0, "quiet period before a batch runs (default WATCH_DEBOUNCE)")
	f.BoolVar(&initial, "initial", true, "ingest the directory once before watching")
	return cmd
}

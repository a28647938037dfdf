package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/regingest/internal/config"
	"github.com/dgallion1/regingest/internal/indexer"
	"github.com/dgallion1/regingest/internal/pipeline"
	"github.com/dgallion1/regingest/internal/store/sqlite"
	"github.com/dgallion1/regingest/internal/versioning"
)

type rootOptions struct {
	configFile string
	logJSON    bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "regingest",
		Short:         "Ingest regulatory documents into a retrieval index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, toml or json) overlaid on the environment")
	cmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "log as JSON instead of text")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newIngestCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newVersionsCmd(opts),
		newInspectCmd(opts),
	)
	return cmd
}

func (o *rootOptions) logger() *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, hopts)
	if o.logJSON {
		h = slog.NewJSONHandler(os.Stderr, hopts)
	}
	log := slog.New(h)
	slog.SetDefault(log)
	return log
}

func (o *rootOptions) config() (config.Config, error) {
	cfg, err := config.LoadFile(o.configFile)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// app holds the long-lived dependencies shared by the subcommands.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	store    *sqlite.Store
	versions *versioning.Detector
	stats    *indexer.Stats
	coord    *pipeline.Coordinator
	closers  []func()
}

// openApp opens the store and, when withIndexer is set, the configured
// indexer. Commands that never push use a memory sink.
func openApp(ctx context.Context, cfg config.Config, log *slog.Logger, withIndexer bool) (*app, error) {
	st, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, log: log, store: st}
	a.closers = append(a.closers, func() { st.Close() })

	limits := indexer.Limits{MaxBatchSize: cfg.IndexerBatchSize, MaxTokens: cfg.IndexerMaxTokens}
	var ix indexer.Indexer = indexer.NewMemory(limits)
	if withIndexer {
		ix, err = a.buildIndexer(ctx, limits)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	a.stats = indexer.NewStats(time.Hour)
	ix = indexer.Instrument(indexer.Throttle(ix, cfg.IndexerRatePerSec, 1), a.stats)

	a.versions = versioning.NewDetector(st, cfg.StaleAfter, log)
	a.coord = pipeline.NewCoordinator(cfg, ix, st, a.versions, nil, log)
	return a, nil
}

func (a *app) buildIndexer(ctx context.Context, limits indexer.Limits) (indexer.Indexer, error) {
	switch a.cfg.Indexer {
	case config.IndexerHTTP:
		c := indexer.NewHTTP(a.cfg.IndexerURL, a.cfg.IndexerAPIKey, limits)
		a.closers = append(a.closers, c.Close)
		a.log.Info("indexer", "kind", "http", "url", a.cfg.IndexerURL)
		return c, nil
	case config.IndexerWeaviate:
		w, err := indexer.NewWeaviate(ctx, indexer.WeaviateConfig{
			Host:   a.cfg.WeaviateHost,
			APIKey: a.cfg.WeaviateAPIKey,
			Class:  a.cfg.WeaviateClass,
			Limits: limits,
		})
		if err != nil {
			return nil, fmt.Errorf("connect weaviate: %w", err)
		}
		a.log.Info("indexer", "kind", "weaviate", "host", a.cfg.WeaviateHost, "class", a.cfg.WeaviateClass)
		return w, nil
	default:
		a.log.Warn("indexer is memory, chunks are not persisted")
		return indexer.NewMemory(limits), nil
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

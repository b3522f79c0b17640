package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/searchgrep/searchgrep/internal/embedder"
	"github.com/searchgrep/searchgrep/internal/syncer"
	"github.com/searchgrep/searchgrep/pkg/types"
)

func newWatchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <path>",
		Short: "Index a directory and keep the index current",
		Long: `Watch runs an initial index pass, then monitors the directory for file
changes and re-syncs after a quiet period. Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			root, err := resolveRoot(args[0])
			if err != nil {
				return err
			}

			st, err := openStore(cfg, root, true)
			if err != nil {
				return err
			}

			registry := embedder.NewRegistry(cfg.BackendURL, cfg.CacheSize)
			defer registry.Close() //nolint:errcheck

			emb, err := registry.Get(cfg.ParsedMode())
			if err != nil {
				return err
			}

			sync := syncer.New(root, st, emb, syncer.Config{
				Workers: cfg.Workers,
				Logger:  logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var partial *types.PartialIndexError
			if _, err := sync.Sync(ctx); err != nil && !errors.As(err, &partial) {
				return err
			}
			if partial != nil {
				logger.Warn("initial sync left failures", zap.Int("files", len(partial.Failures)))
			}

			watcher, err := syncer.NewWatcher(sync, cfg.Debounce())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (%s mode), debounce %s. Ctrl-C to stop.\n",
				root, cfg.Mode, cfg.Debounce())

			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("watch stopped", zap.String("root", root))
			return nil
		},
	}
}

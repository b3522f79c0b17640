package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/searchgrep/searchgrep/internal/embedder"
	"github.com/searchgrep/searchgrep/internal/syncer"
	"github.com/searchgrep/searchgrep/pkg/types"
)

func newIndexCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "index <path>",
		Short: "Index or re-index a directory",
		Long: `Index walks the directory, chunks every recognized source file, embeds the
chunks through the local embedding backend, and persists the result as a
durable snapshot. Re-indexing is incremental: unchanged files are skipped
and unchanged chunks keep their stored vectors.`,
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

			stats, err := sync.Sync(cmd.Context())
			var partial *types.PartialIndexError
			if err != nil && !errors.As(err, &partial) {
				return err
			}

			if serr := rebuildSymbols(cmd.Context(), cfg, root); serr != nil {
				logger.Warn("symbol graph rebuild failed", zap.String("root", root), zap.Error(serr))
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Indexed %s (%s mode): %d files indexed, %d unchanged, %d removed, %d skipped; %d chunks embedded, %d reused in %s\n",
				root, cfg.Mode,
				stats.FilesIndexed, stats.FilesUnchanged, stats.FilesRemoved, stats.FilesSkipped,
				stats.ChunksEmbedded, stats.ChunksReused, stats.Duration.Round(time.Millisecond))

			if partial != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%d files failed:\n", len(partial.Failures))
				for path, ferr := range partial.Failures {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", path, ferr)
				}
			}
			return nil
		},
	}
}

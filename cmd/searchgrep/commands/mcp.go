package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/searchgrep/searchgrep/internal/mcp"
)

func newMCPCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run as an MCP server on stdio",
		Long: `MCP serves the semantic_search, index_directory, watch_directory,
search_symbols, get_codebase_map, and get_status tools over the Model
Context Protocol on stdin/stdout. Logs go to stderr so the protocol
stream stays clean.`,
		Args: cobra.NoArgs,
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

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("starting MCP server",
				zap.String("mode", cfg.Mode),
				zap.String("backend", cfg.BackendURL),
				zap.String("data_dir", cfg.DataDir))

			return mcp.NewServer(cfg, logger).Serve(ctx)
		},
	}
}

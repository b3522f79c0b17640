package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/searchgrep/searchgrep/internal/codemap"
	"github.com/searchgrep/searchgrep/internal/config"
	"github.com/searchgrep/searchgrep/pkg/types"
)

// options carries the flags shared by every subcommand.
type options struct {
	configPath string
	mode       string
	dataDir    string
}

// NewRootCommand builds the searchgrep CLI.
func NewRootCommand(version, buildTime string) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "searchgrep",
		Short: "Semantic code search over local directories",
		Long: `searchgrep indexes a directory of source code into a durable vector
snapshot and searches it with natural-language queries, fusing semantic
similarity with literal term overlap. It also runs as an MCP server on
stdio for editor and agent integration.`,
		Version:       fmt.Sprintf("%s (built %s, sqlite %s/%s)", version, buildTime, codemap.BuildMode, codemap.DriverName),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.toml (default: <data-dir>/config.toml)")
	root.PersistentFlags().StringVar(&opts.mode, "mode", "", "embedding tier: fast, balanced, quality, or hybrid")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "directory for indexes and the symbol graph (default: ~/.searchgrep)")

	root.AddCommand(newIndexCommand(opts))
	root.AddCommand(newSearchCommand(opts))
	root.AddCommand(newWatchCommand(opts))
	root.AddCommand(newMCPCommand(opts))

	return root
}

// loadConfig resolves flags over file over defaults.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.mode != "" {
		if _, err := types.ParseMode(o.mode, types.ModeBalanced); err != nil {
			return nil, err
		}
		cfg.Mode = o.mode
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	return cfg, nil
}

// newLogger builds a stderr logger. Stdout stays clean: the search command
// prints results there and the MCP server owns it for the protocol.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

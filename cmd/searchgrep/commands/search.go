package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchgrep/searchgrep/internal/embedder"
	"github.com/searchgrep/searchgrep/internal/searcher"
	"github.com/searchgrep/searchgrep/pkg/types"
)

func newSearchCommand(opts *options) *cobra.Command {
	var (
		maxResults int
		pathFilter string
	)

	cmd := &cobra.Command{
		Use:   "search <path> <query>",
		Short: "Search an indexed directory",
		Long: `Search encodes the query with the same model the index was built with and
ranks every indexed chunk by a fusion of vector similarity and literal
term overlap. The directory must have been indexed first.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			root, err := resolveRoot(args[0])
			if err != nil {
				return err
			}
			query := args[1]

			st, err := openStore(cfg, root, false)
			if types.IsNotIndexed(err) {
				return fmt.Errorf("%s is not indexed under %s mode; run: searchgrep index %s", root, cfg.Mode, root)
			}
			if err != nil {
				return err
			}

			registry := embedder.NewRegistry(cfg.BackendURL, cfg.CacheSize)
			defer registry.Close() //nolint:errcheck

			emb, err := registry.Get(cfg.ParsedMode())
			if err != nil {
				return err
			}

			results, err := searcher.New(emb).Search(cmd.Context(), st, query, searcher.Options{
				MaxResults: maxResults,
				PathFilter: pathFilter,
			})
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
				return nil
			}
			for i, res := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %.4f  %s:%d-%d\n",
					i+1, res.Score, res.Chunk.FilePath, res.Chunk.StartLine, res.Chunk.EndLine)
				fmt.Fprintln(cmd.OutOrStdout(), indent(res.Chunk.Content, "    "))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxResults, "max-results", searcher.DefaultMaxResults, "maximum number of results (capped at 50)")
	cmd.Flags().StringVar(&pathFilter, "filter", "", "only match chunks whose file path contains this substring")

	return cmd
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/searchgrep/searchgrep/internal/codemap"
	"github.com/searchgrep/searchgrep/internal/config"
	"github.com/searchgrep/searchgrep/internal/embedder"
	"github.com/searchgrep/searchgrep/internal/store"
	"github.com/searchgrep/searchgrep/internal/syncer"
	"github.com/searchgrep/searchgrep/pkg/types"
)

// resolveRoot validates and normalizes the directory argument.
func resolveRoot(arg string) (string, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("%w: %s", types.ErrInvalidPath, arg)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", types.ErrInvalidPath, abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", types.ErrInvalidPath, abs)
	}
	return abs, nil
}

// openStore loads the snapshot for root under the configured mode, creating
// an empty store when none exists yet.
func openStore(cfg *config.Config, root string, create bool) (*store.Store, error) {
	mode := cfg.ParsedMode()
	path := store.SnapshotPath(cfg.DataDir, root, mode)
	model := embedder.ModelFor(mode)
	dim := embedder.DimensionFor(mode)

	st, err := store.Load(path, root, mode, model, dim)
	if err == nil {
		return st, nil
	}
	if create && types.IsNotIndexed(err) {
		return store.New(path, root, mode, model, dim), nil
	}
	return nil, err
}

// symbolDBPath keeps one symbol graph per corpus root.
func symbolDBPath(cfg *config.Config, root string) string {
	h := sha256.Sum256([]byte(root))
	return filepath.Join(cfg.DataDir, "symbols", hex.EncodeToString(h[:8])+".db")
}

// rebuildSymbols refreshes the symbol graph for root from the corpus on
// disk. Extraction is regex based and cheap, so a full pass per index run
// is fine.
func rebuildSymbols(ctx context.Context, cfg *config.Config, root string) error {
	symbols, err := codemap.Open(symbolDBPath(cfg, root))
	if err != nil {
		return err
	}
	defer symbols.Close() //nolint:errcheck

	files, err := syncer.Discover(root)
	if err != nil {
		return err
	}
	for _, relPath := range files {
		content, err := os.ReadFile(filepath.Join(root, relPath))
		if err != nil {
			continue
		}
		if _, err := symbols.IndexFile(ctx, relPath, string(content)); err != nil {
			return err
		}
	}
	return symbols.PruneExcept(ctx, files)
}

package store

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/searchgrep/searchgrep/pkg/types"
)

// SnapshotPath places the snapshot for a corpus root under the data
// directory, keyed by a hash of the absolute root so unrelated projects
// never collide. The mode is part of the name, so one corpus can carry
// indexes for several tiers side by side.
func SnapshotPath(dataDir, root string, mode types.Mode) string {
	h := sha256.Sum256([]byte(root))
	name := hex.EncodeToString(h[:8]) + "-" + string(mode) + ".idx"
	return filepath.Join(dataDir, "indices", name)
}

//go:build !cgo_sqlite
// +build !cgo_sqlite

package codemap

// Default build: pure Go SQLite, no C compiler required, cross-compiles
// everywhere.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

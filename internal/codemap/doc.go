// Package codemap maintains a lightweight symbol graph of the corpus.
//
// Declarations are extracted with per-language regular expressions for Go,
// Rust, Python, and TypeScript/JavaScript, then persisted in SQLite. The
// graph answers "where is symbol X" and "what does this codebase contain"
// without any embedding work, and it is fully independent of the vector
// index: neither side reads the other's data.
//
// Two SQLite drivers are supported via build tags, following the same
// pattern as the rest of the toolchain: the default pure Go driver
// (modernc.org/sqlite) builds everywhere, and -tags cgo_sqlite swaps in
// mattn/go-sqlite3 where CGO is available.
package codemap

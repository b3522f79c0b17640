// Package store persists the chunk index as a single durable snapshot.
//
// The store holds every chunk in memory under a read-write lock and writes
// the whole index as one gob snapshot on save. Saves go through a temp file
// plus rename in the snapshot's directory, so an interrupted save leaves the
// previous generation readable.
//
// Loading validates the snapshot against the requested configuration. A
// missing, corrupt, or incompatible snapshot (wrong schema version, mode,
// model, dimension, or root) all resolve to the same caller-facing state:
// the corpus is not indexed and must be built from scratch. There are no
// partial recoveries or migrations.
package store

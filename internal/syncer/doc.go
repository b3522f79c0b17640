// Package syncer reconciles the durable chunk index with the corpus on
// disk.
//
// A sync pass walks the corpus root, diffs per-file content fingerprints
// against the store, and processes only what changed. Within a changed
// file, chunk identity is content-derived, so chunks untouched by an edit
// keep their stored vectors and only the affected chunks re-embed. Deleted
// files drop out of the index on the same pass. Every pass ends with one
// atomic snapshot save; re-running a sync against an unchanged corpus is a
// no-op.
//
// Watch mode layers fsnotify on top: filesystem events accumulate in a
// pending set and a re-sync fires once the corpus has been quiet for the
// debounce interval, so bursts of saves collapse into one pass.
package syncer

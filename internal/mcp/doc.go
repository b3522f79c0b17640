// Package mcp exposes the search engine over the Model Context Protocol.
//
// The server speaks the MCP stdio transport and registers six tools:
// semantic_search, index_directory, watch_directory, search_symbols,
// get_codebase_map, and get_status. Each indexed directory gets its own
// session holding the loaded snapshot, its syncer, the symbol graph, and
// the watch goroutine when one is running.
//
// Searching an unindexed directory is reported explicitly as not indexed,
// never as an empty result set, so a client can tell "nothing matched"
// apart from "nothing was ever indexed".
package mcp

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/searchgrep/searchgrep/internal/codemap"
	"github.com/searchgrep/searchgrep/internal/searcher"
	"github.com/searchgrep/searchgrep/internal/syncer"
	"github.com/searchgrep/searchgrep/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeBackendUnavailable = -32001 // Embedding backend not reachable
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleSemanticSearch handles the semantic_search tool invocation
func (s *Server) handleSemanticSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, err := requirePath(args)
	if err != nil {
		return nil, err
	}
	query, _ := args["query"].(string)
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param": "query",
		})
	}
	mode, err := s.resolveMode(getStringDefault(args, "mode", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}
	maxResults := getIntDefault(args, "max_results", searcher.DefaultMaxResults)
	if maxResults < 1 || maxResults > searcher.HardResultLimit {
		return nil, newMCPError(ErrorCodeInvalidParams,
			fmt.Sprintf("max_results must be between 1 and %d", searcher.HardResultLimit),
			map[string]interface{}{"param": "max_results", "value": maxResults})
	}

	sess, err := s.openSession(root, mode)
	if err != nil {
		if types.IsNotIndexed(err) {
			// Not the same as an empty result: the caller must index first.
			return mcp.NewToolResultText(formatJSON(map[string]interface{}{
				"indexed": false,
				"path":    root,
				"mode":    string(mode),
				"message": "Directory is not indexed under this mode. Run index_directory first.",
			})), nil
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to open index", errData(err))
	}

	emb, err := s.registry.Get(mode)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}

	results, err := searcher.New(emb).Search(ctx, sess.store, query, searcher.Options{
		MaxResults: maxResults,
		PathFilter: getStringDefault(args, "path_filter", ""),
	})
	if err != nil {
		if errors.Is(err, types.ErrModelLoad) {
			return nil, newMCPError(ErrorCodeBackendUnavailable, "embedding backend unavailable", errData(err))
		}
		return nil, newMCPError(ErrorCodeInternalError, "search failed", errData(err))
	}

	includeContent := getBoolDefault(args, "include_content", true)
	formatted := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		entry := map[string]interface{}{
			"path":       r.Chunk.FilePath,
			"start_line": r.Chunk.StartLine,
			"end_line":   r.Chunk.EndLine,
			"score":      fmt.Sprintf("%.4f", r.Score),
		}
		if includeContent {
			entry["content"] = r.Chunk.Content
		}
		formatted = append(formatted, entry)
	}
	response := map[string]interface{}{
		"indexed": true,
		"query":   query,
		"mode":    string(mode),
		"results": formatted,
	}
	if len(formatted) == 0 {
		response["message"] = "No matching chunks found."
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexDirectory handles the index_directory tool invocation
func (s *Server) handleIndexDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	root, err := requirePath(args)
	if err != nil {
		return nil, err
	}
	mode, err := s.resolveMode(getStringDefault(args, "mode", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}

	sess, err := s.createSession(root, mode)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open index", errData(err))
	}

	stats, syncErr := sess.syncer.Sync(ctx)
	var partial *types.PartialIndexError
	if syncErr != nil && !errors.As(syncErr, &partial) {
		if errors.Is(syncErr, types.ErrModelLoad) {
			return nil, newMCPError(ErrorCodeBackendUnavailable, "embedding backend unavailable", errData(syncErr))
		}
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", errData(syncErr))
	}

	if err := s.rebuildSymbols(ctx, sess); err != nil {
		s.logger.Warn("symbol graph update failed", zap.String("root", root), zap.Error(err))
	}

	response := map[string]interface{}{
		"indexed":         true,
		"path":            root,
		"mode":            string(mode),
		"files_scanned":   stats.FilesScanned,
		"files_indexed":   stats.FilesIndexed,
		"files_unchanged": stats.FilesUnchanged,
		"files_removed":   stats.FilesRemoved,
		"files_skipped":   stats.FilesSkipped,
		"chunks_embedded": stats.ChunksEmbedded,
		"chunks_reused":   stats.ChunksReused,
		"duration_ms":     stats.Duration.Milliseconds(),
	}
	if partial != nil {
		failures := make([]string, 0, len(partial.Failures))
		for path, ferr := range partial.Failures {
			failures = append(failures, fmt.Sprintf("%s: %v", path, ferr))
		}
		if len(failures) > 5 {
			failures = failures[:5]
		}
		response["failures"] = failures
		response["failure_count"] = len(partial.Failures)
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// rebuildSymbols refreshes the symbol graph from the current corpus. Cheap
// regex extraction, so a full rebuild per index pass is fine.
func (s *Server) rebuildSymbols(ctx context.Context, sess *session) error {
	files, err := syncer.Discover(sess.root)
	if err != nil {
		return err
	}
	for _, relPath := range files {
		content, err := os.ReadFile(filepath.Join(sess.root, relPath))
		if err != nil {
			continue
		}
		if _, err := sess.symbols.IndexFile(ctx, relPath, string(content)); err != nil {
			return err
		}
	}
	return sess.symbols.PruneExcept(ctx, files)
}

// handleWatchDirectory handles the watch_directory tool invocation
func (s *Server) handleWatchDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	root, err := requirePath(args)
	if err != nil {
		return nil, err
	}
	mode, err := s.resolveMode(getStringDefault(args, "mode", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}

	if getBoolDefault(args, "stop", false) {
		s.mu.Lock()
		sess, ok := s.sessions[root]
		if ok {
			sess.stopWatchLocked()
		}
		s.mu.Unlock()
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"watching": false,
			"path":     root,
		})), nil
	}

	sess, err := s.createSession(root, mode)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open index", errData(err))
	}

	s.mu.Lock()
	alreadyWatching := sess.watchCancel != nil
	s.mu.Unlock()
	if alreadyWatching {
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"watching": true,
			"path":     root,
			"message":  "Already watching.",
		})), nil
	}

	// Converge once before handing off to the watcher.
	if _, err := sess.syncer.Sync(ctx); err != nil {
		var partial *types.PartialIndexError
		if !errors.As(err, &partial) {
			return nil, newMCPError(ErrorCodeInternalError, "initial sync failed", errData(err))
		}
	}

	watcher, err := syncer.NewWatcher(sess.syncer, s.cfg.Debounce())
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to start watcher", errData(err))
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	sess.watchCancel = cancel
	sess.watchDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := watcher.Run(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("watcher stopped", zap.String("root", root), zap.Error(err))
		}
	}()

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"watching":    true,
		"path":        root,
		"mode":        string(mode),
		"debounce_ms": s.cfg.DebounceMs,
	})), nil
}

// handleSearchSymbols handles the search_symbols tool invocation
func (s *Server) handleSearchSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	root, err := requirePath(args)
	if err != nil {
		return nil, err
	}
	query, _ := args["query"].(string)
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", nil)
	}

	sess, err := s.symbolSession(root)
	if err != nil {
		return nil, err
	}

	symbols, err := sess.symbols.SearchSymbols(ctx, query,
		codemap.SymbolKind(getStringDefault(args, "kind", "")),
		getIntDefault(args, "limit", 25))
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "symbol search failed", errData(err))
	}

	formatted := make([]map[string]interface{}, 0, len(symbols))
	for _, sym := range symbols {
		formatted = append(formatted, map[string]interface{}{
			"name":      sym.Name,
			"kind":      string(sym.Kind),
			"file":      sym.File,
			"line":      sym.Line,
			"signature": sym.Signature,
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   query,
		"symbols": formatted,
	})), nil
}

// handleCodebaseMap handles the get_codebase_map tool invocation
func (s *Server) handleCodebaseMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	root, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	sess, err := s.symbolSession(root)
	if err != nil {
		return nil, err
	}

	overviews, err := sess.symbols.Overview(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to build codebase map", errData(err))
	}

	files := make([]map[string]interface{}, 0, len(overviews))
	for _, ov := range overviews {
		symbols := make([]string, 0, len(ov.Symbols))
		for _, sym := range ov.Symbols {
			symbols = append(symbols, fmt.Sprintf("%s %s (line %d)", sym.Kind, sym.Name, sym.Line))
		}
		files = append(files, map[string]interface{}{
			"path":    ov.Path,
			"symbols": symbols,
			"imports": ov.Imports,
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"path":  root,
		"files": files,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	root, err := requirePath(args)
	if err != nil {
		return nil, err
	}
	mode, err := s.resolveMode(getStringDefault(args, "mode", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}

	sess, err := s.openSession(root, mode)
	if err != nil {
		if types.IsNotIndexed(err) {
			return mcp.NewToolResultText(formatJSON(map[string]interface{}{
				"indexed": false,
				"path":    root,
				"mode":    string(mode),
				"message": "Directory is not indexed under this mode. Run index_directory first.",
			})), nil
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to read index", errData(err))
	}

	meta := sess.store.Meta()
	symbolCount, _ := sess.symbols.SymbolCount(ctx)

	s.mu.Lock()
	watching := sess.watchCancel != nil
	s.mu.Unlock()

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"indexed":  true,
		"path":     root,
		"mode":     string(meta.Mode),
		"model":    meta.Model,
		"files":    sess.store.FileCount(),
		"chunks":   sess.store.ChunkCount(),
		"symbols":  symbolCount,
		"watching": watching,
		"cache":    s.registry.CacheLen(),
		"updated":  meta.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})), nil
}

// symbolSession finds an existing session for root, or opens one under the
// default mode so symbol queries work against the on-disk index.
func (s *Server) symbolSession(root string) (*session, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[root]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	sess, err := s.openSession(root, s.cfg.ParsedMode())
	if err != nil {
		if types.IsNotIndexed(err) {
			return nil, newMCPError(ErrorCodeInvalidParams,
				"directory is not indexed; run index_directory first", nil)
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to open index", errData(err))
	}
	return sess, nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func errData(err error) map[string]interface{} {
	return map[string]interface{}{"error": err.Error()}
}

// requirePath extracts and validates the path argument.
func requirePath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param": "path",
		})
	}
	if err := validatePath(path); err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return filepath.Clean(path), nil
}

// validatePath checks that a path is an absolute, readable directory.
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: must be absolute", types.ErrInvalidPath)
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: does not exist", types.ErrInvalidPath)
	}
	if err != nil {
		return fmt.Errorf("%w: not readable", types.ErrInvalidPath)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: not a directory", types.ErrInvalidPath)
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	switch val := args[key].(type) {
	case float64:
		return int(val)
	case int:
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/searchgrep/searchgrep/internal/codemap"
	"github.com/searchgrep/searchgrep/internal/config"
	"github.com/searchgrep/searchgrep/internal/embedder"
	"github.com/searchgrep/searchgrep/internal/store"
	"github.com/searchgrep/searchgrep/internal/syncer"
	"github.com/searchgrep/searchgrep/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "searchgrep"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// session is the per-corpus state: the loaded vector store, its syncer, the
// symbol graph, and the watch goroutine if one is running.
type session struct {
	root    string
	mode    types.Mode
	store   *store.Store
	syncer  *syncer.Syncer
	symbols *codemap.Store

	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// Server wraps the MCP server with application dependencies.
type Server struct {
	mcp      *server.MCPServer
	cfg      *config.Config
	registry *embedder.Registry
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewServer wires the full stack behind an MCP stdio server.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		cfg:      cfg,
		registry: embedder.NewRegistry(cfg.BackendURL, cfg.CacheSize),
		logger:   logger,
		sessions: make(map[string]*session),
	}
	s.registerTools()
	return s
}

// Serve runs the server on stdio until the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	defer s.shutdown()
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(semanticSearchTool(), s.handleSemanticSearch)
	s.mcp.AddTool(indexDirectoryTool(), s.handleIndexDirectory)
	s.mcp.AddTool(watchDirectoryTool(), s.handleWatchDirectory)
	s.mcp.AddTool(searchSymbolsTool(), s.handleSearchSymbols)
	s.mcp.AddTool(codebaseMapTool(), s.handleCodebaseMap)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

func (s *Server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.stopWatchLocked()
		if sess.symbols != nil {
			_ = sess.symbols.Close()
		}
	}
	_ = s.registry.Close()
	_ = s.logger.Sync()
}

func (sess *session) stopWatchLocked() {
	if sess.watchCancel != nil {
		sess.watchCancel()
		<-sess.watchDone
		sess.watchCancel = nil
		sess.watchDone = nil
	}
}

// openSession returns the session for root, creating it and loading the
// snapshot from disk if needed. When no usable snapshot exists the error
// satisfies types.IsNotIndexed and the session is not created.
func (s *Server) openSession(root string, mode types.Mode) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[root]; ok {
		if sess.mode != mode {
			return nil, fmt.Errorf("%w: %s is open in %s mode", types.ErrStoreIncompatible, root, sess.mode)
		}
		return sess, nil
	}

	st, err := store.Load(
		store.SnapshotPath(s.cfg.DataDir, root, mode),
		root, mode, embedder.ModelFor(mode), embedder.DimensionFor(mode))
	if err != nil {
		return nil, err
	}
	return s.createSessionLocked(root, mode, st)
}

// createSession builds a session around a fresh, empty store. Used by
// indexing, which is allowed to start from nothing.
func (s *Server) createSession(root string, mode types.Mode) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[root]; ok {
		if sess.mode != mode {
			return nil, fmt.Errorf("%w: %s is open in %s mode", types.ErrStoreIncompatible, root, sess.mode)
		}
		return sess, nil
	}

	path := store.SnapshotPath(s.cfg.DataDir, root, mode)
	st, err := store.Load(path, root, mode, embedder.ModelFor(mode), embedder.DimensionFor(mode))
	if err != nil {
		if !types.IsNotIndexed(err) {
			return nil, err
		}
		st = store.New(path, root, mode, embedder.ModelFor(mode), embedder.DimensionFor(mode))
	}
	return s.createSessionLocked(root, mode, st)
}

func (s *Server) createSessionLocked(root string, mode types.Mode, st *store.Store) (*session, error) {
	emb, err := s.registry.Get(mode)
	if err != nil {
		return nil, err
	}
	symbols, err := codemap.Open(s.symbolDBPath(root))
	if err != nil {
		return nil, fmt.Errorf("open symbol database: %w", err)
	}

	sess := &session{
		root:    root,
		mode:    mode,
		store:   st,
		symbols: symbols,
		syncer: syncer.New(root, st, emb, syncer.Config{
			Workers: s.cfg.Workers,
			Logger:  s.logger,
		}),
	}
	s.sessions[root] = sess
	return sess, nil
}

// symbolDBPath keeps one symbol graph per corpus root.
func (s *Server) symbolDBPath(root string) string {
	h := sha256.Sum256([]byte(root))
	return filepath.Join(s.cfg.DataDir, "symbols", hex.EncodeToString(h[:8])+".db")
}

// resolveMode maps a tool's mode argument onto a tier, falling back to the
// configured default.
func (s *Server) resolveMode(arg string) (types.Mode, error) {
	return types.ParseMode(arg, s.cfg.ParsedMode())
}

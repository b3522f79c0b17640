package codemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findSymbol(symbols []Symbol, name string) *Symbol {
	for i := range symbols {
		if symbols[i].Name == name {
			return &symbols[i]
		}
	}
	return nil
}

func TestExtract_Go(t *testing.T) {
	content := `package server

import (
	"context"
	"net/http"
)

type Server struct {
	addr string
}

type Handler interface {
	Handle(ctx context.Context) error
}

func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

func (s *Server) Start(ctx context.Context) error {
	return nil
}
`
	fm := NewExtractor().Extract("server.go", content)

	srv := findSymbol(fm.Symbols, "Server")
	require.NotNil(t, srv)
	assert.Equal(t, KindStruct, srv.Kind)
	assert.Equal(t, 8, srv.Line)

	handler := findSymbol(fm.Symbols, "Handler")
	require.NotNil(t, handler)
	assert.Equal(t, KindInterface, handler.Kind)

	newServer := findSymbol(fm.Symbols, "NewServer")
	require.NotNil(t, newServer)
	assert.Equal(t, KindFunction, newServer.Kind)
	assert.Equal(t, "func NewServer(addr string) *Server", newServer.Signature)

	start := findSymbol(fm.Symbols, "Start")
	require.NotNil(t, start, "methods with receivers are extracted")

	assert.Equal(t, []string{"context", "net/http"}, fm.Imports)
}

func TestExtract_Rust(t *testing.T) {
	content := `use std::collections::HashMap;

pub struct VectorStore {
    chunks: HashMap<String, Chunk>,
}

pub enum SpeedMode {
    Fast,
    Balanced,
}

pub trait Embedder {
    fn embed(&self, text: &str) -> Vec<f32>;
}

pub async fn load_store(path: &Path) -> Result<VectorStore> {
    todo!()
}
`
	fm := NewExtractor().Extract("store.rs", content)

	assert.Equal(t, KindStruct, findSymbol(fm.Symbols, "VectorStore").Kind)
	assert.Equal(t, KindEnum, findSymbol(fm.Symbols, "SpeedMode").Kind)
	assert.Equal(t, KindTrait, findSymbol(fm.Symbols, "Embedder").Kind)

	// Both the free function and the trait method match the fn pattern.
	loadStore := findSymbol(fm.Symbols, "load_store")
	require.NotNil(t, loadStore)
	assert.Equal(t, KindFunction, loadStore.Kind)

	assert.Equal(t, []string{"std::collections::HashMap"}, fm.Imports)
}

func TestExtract_Python(t *testing.T) {
	content := `from flask import Flask
import json

class EmbeddingServer:
    def __init__(self):
        pass

def create_app():
    return Flask(__name__)

async def embed_batch(texts):
    return []
`
	fm := NewExtractor().Extract("app.py", content)

	assert.Equal(t, KindClass, findSymbol(fm.Symbols, "EmbeddingServer").Kind)
	assert.NotNil(t, findSymbol(fm.Symbols, "create_app"))
	assert.NotNil(t, findSymbol(fm.Symbols, "embed_batch"))
	// Indented methods are not top-level declarations.
	assert.Nil(t, findSymbol(fm.Symbols, "__init__"))

	assert.Contains(t, fm.Imports, "flask")
	assert.Contains(t, fm.Imports, "json")
}

func TestExtract_TypeScript(t *testing.T) {
	content := `import { search } from './search';

export interface SearchResult {
  path: string;
  score: number;
}

export type Mode = 'fast' | 'balanced';

export class SearchClient {
  constructor() {}
}

export function formatResult(r: SearchResult): string {
  return r.path;
}

export const rankResults = async (results: SearchResult[]) => {
  return results;
};
`
	fm := NewExtractor().Extract("client.ts", content)

	assert.Equal(t, KindInterface, findSymbol(fm.Symbols, "SearchResult").Kind)
	assert.Equal(t, KindType, findSymbol(fm.Symbols, "Mode").Kind)
	assert.Equal(t, KindClass, findSymbol(fm.Symbols, "SearchClient").Kind)
	assert.Equal(t, KindFunction, findSymbol(fm.Symbols, "formatResult").Kind)
	assert.Equal(t, KindFunction, findSymbol(fm.Symbols, "rankResults").Kind)
	assert.Equal(t, []string{"./search"}, fm.Imports)
}

func TestExtract_UnsupportedLanguageIsEmpty(t *testing.T) {
	fm := NewExtractor().Extract("notes.md", "# Heading\n\nfunc fake() {}\n")
	assert.Empty(t, fm.Symbols)
	assert.Empty(t, fm.Imports)
}

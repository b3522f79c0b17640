package codemap

// SymbolKind classifies an extracted declaration.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindStruct    SymbolKind = "struct"
	KindEnum      SymbolKind = "enum"
	KindTrait     SymbolKind = "trait"
	KindClass     SymbolKind = "class"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
)

// Symbol is one top-level declaration found in a source file.
type Symbol struct {
	Name      string
	File      string // Relative to the indexed root
	Line      int    // 1-based
	Kind      SymbolKind
	Signature string
}

// FileMap is the extraction result for one file.
type FileMap struct {
	Path    string
	Symbols []Symbol
	Imports []string
}

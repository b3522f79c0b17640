package codemap

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Extractor pulls top-level declarations out of source text with per-language
// regular expressions. It is heuristic on purpose: no build step, no language
// toolchains, wrong on exotic syntax, and good enough to navigate a codebase.
type Extractor struct {
	rustFn     *regexp.Regexp
	rustStruct *regexp.Regexp
	rustEnum   *regexp.Regexp
	rustTrait  *regexp.Regexp
	rustUse    *regexp.Regexp

	tsFn        *regexp.Regexp
	tsArrow     *regexp.Regexp
	tsClass     *regexp.Regexp
	tsInterface *regexp.Regexp
	tsType      *regexp.Regexp
	tsImport    *regexp.Regexp

	pyFn     *regexp.Regexp
	pyClass  *regexp.Regexp
	pyImport *regexp.Regexp

	goFn        *regexp.Regexp
	goStruct    *regexp.Regexp
	goInterface *regexp.Regexp
	goImport    *regexp.Regexp
}

// NewExtractor compiles the language patterns.
func NewExtractor() *Extractor {
	return &Extractor{
		rustFn:     regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+(\w+)`),
		rustStruct: regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?struct\s+(\w+)`),
		rustEnum:   regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?enum\s+(\w+)`),
		rustTrait:  regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?trait\s+(\w+)`),
		rustUse:    regexp.MustCompile(`(?m)^\s*use\s+([^;]+);`),

		tsFn:        regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)`),
		tsArrow:     regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:const|let)\s+(\w+)\s*(?::\s*[^=]+)?=\s*(?:async\s+)?\([^)]*\)[^=]*=>`),
		tsClass:     regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:abstract\s+)?class\s+(\w+)`),
		tsInterface: regexp.MustCompile(`(?m)^\s*(?:export\s+)?interface\s+(\w+)`),
		tsType:      regexp.MustCompile(`(?m)^\s*(?:export\s+)?type\s+(\w+)(?:<[^>]*>)?\s*=`),
		tsImport:    regexp.MustCompile(`(?m)^\s*import\s+(?:\{[^}]*\}|[^;{]+)\s+from\s+['"]([^'"]+)['"]`),

		pyFn:     regexp.MustCompile(`(?m)^(?:async\s+)?def\s+(\w+)\s*\(`),
		pyClass:  regexp.MustCompile(`(?m)^class\s+(\w+)`),
		pyImport: regexp.MustCompile(`(?m)^(?:from\s+(\S+)\s+)?import\s+([^\n]+)`),

		goFn:        regexp.MustCompile(`(?m)^func\s+(?:\([^)]+\)\s+)?(\w+)\s*\(`),
		goStruct:    regexp.MustCompile(`(?m)^type\s+(\w+)\s+struct\s*\{`),
		goInterface: regexp.MustCompile(`(?m)^type\s+(\w+)\s+interface\s*\{`),
		goImport:    regexp.MustCompile(`(?m)^\s*(?:import\s+)?(?:\w+\s+)?"([^"]+)"`),
	}
}

// Extract maps relPath's content to its declarations. Unsupported languages
// return an empty map, not an error.
func (e *Extractor) Extract(relPath, content string) *FileMap {
	fm := &FileMap{Path: relPath}
	switch strings.ToLower(filepath.Ext(relPath)) {
	case ".rs":
		e.extractRust(fm, content)
	case ".ts", ".tsx", ".js", ".jsx":
		e.extractTypeScript(fm, content)
	case ".py":
		e.extractPython(fm, content)
	case ".go":
		e.extractGo(fm, content)
	}
	return fm
}

func (e *Extractor) extractRust(fm *FileMap, content string) {
	e.collect(fm, content, e.rustFn, KindFunction)
	e.collect(fm, content, e.rustStruct, KindStruct)
	e.collect(fm, content, e.rustEnum, KindEnum)
	e.collect(fm, content, e.rustTrait, KindTrait)
	for _, m := range e.rustUse.FindAllStringSubmatch(content, -1) {
		fm.Imports = append(fm.Imports, strings.TrimSpace(m[1]))
	}
}

func (e *Extractor) extractTypeScript(fm *FileMap, content string) {
	e.collect(fm, content, e.tsFn, KindFunction)
	e.collect(fm, content, e.tsArrow, KindFunction)
	e.collect(fm, content, e.tsClass, KindClass)
	e.collect(fm, content, e.tsInterface, KindInterface)
	e.collect(fm, content, e.tsType, KindType)
	for _, m := range e.tsImport.FindAllStringSubmatch(content, -1) {
		fm.Imports = append(fm.Imports, m[1])
	}
}

func (e *Extractor) extractPython(fm *FileMap, content string) {
	e.collect(fm, content, e.pyFn, KindFunction)
	e.collect(fm, content, e.pyClass, KindClass)
	for _, m := range e.pyImport.FindAllStringSubmatch(content, -1) {
		if m[1] != "" {
			fm.Imports = append(fm.Imports, m[1])
		} else {
			fm.Imports = append(fm.Imports, strings.TrimSpace(m[2]))
		}
	}
}

func (e *Extractor) extractGo(fm *FileMap, content string) {
	e.collect(fm, content, e.goFn, KindFunction)
	e.collect(fm, content, e.goStruct, KindStruct)
	e.collect(fm, content, e.goInterface, KindInterface)
	// Import paths only make sense inside an import declaration; scanning
	// every quoted string would be far too noisy, so imports are limited to
	// the block form.
	if start := strings.Index(content, "import ("); start >= 0 {
		if end := strings.Index(content[start:], ")"); end >= 0 {
			for _, m := range e.goImport.FindAllStringSubmatch(content[start:start+end], -1) {
				fm.Imports = append(fm.Imports, m[1])
			}
		}
	}
}

// collect appends one symbol per pattern match, with the declaration's first
// line as its signature.
func (e *Extractor) collect(fm *FileMap, content string, pattern *regexp.Regexp, kind SymbolKind) {
	for _, loc := range pattern.FindAllStringSubmatchIndex(content, -1) {
		name := content[loc[2]:loc[3]]
		fm.Symbols = append(fm.Symbols, Symbol{
			Name:      name,
			File:      fm.Path,
			Line:      lineAt(content, loc[0]),
			Kind:      kind,
			Signature: firstLine(content[loc[0]:]),
		})
	}
}

func lineAt(content string, offset int) int {
	return strings.Count(content[:offset], "\n") + 1
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "{"))
}

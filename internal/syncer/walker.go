package syncer

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// skipDirs are never descended into, independent of .gitignore.
var skipDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"__pycache__":  true,
	".git":         true,
}

// codeExtensions marks files eligible for indexing.
var codeExtensions = map[string]bool{
	".go":    true,
	".rs":    true,
	".py":    true,
	".js":    true,
	".jsx":   true,
	".ts":    true,
	".tsx":   true,
	".java":  true,
	".c":     true,
	".h":     true,
	".cpp":   true,
	".hpp":   true,
	".cc":    true,
	".cs":    true,
	".rb":    true,
	".php":   true,
	".swift": true,
	".kt":    true,
	".scala": true,
	".sh":    true,
	".sql":   true,
	".proto": true,
	".md":    true,
	".toml":  true,
	".yaml":  true,
	".yml":   true,
	".json":  true,
}

// ignoreRules holds patterns from the root .gitignore. Only the common
// subset is honored: bare names, directory patterns with a trailing slash,
// extension globs, and root-anchored paths. Negations and nested ignore
// files are out of scope.
type ignoreRules struct {
	patterns []string
}

func loadIgnoreRules(root string) *ignoreRules {
	rules := &ignoreRules{}
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return rules
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		rules.patterns = append(rules.patterns, line)
	}
	return rules
}

// Match reports whether the relative path is ignored.
func (r *ignoreRules) Match(relPath string, isDir bool) bool {
	if r == nil || len(r.patterns) == 0 {
		return false
	}
	base := filepath.Base(relPath)
	for _, pattern := range r.patterns {
		dirOnly := strings.HasSuffix(pattern, "/")
		pattern = strings.TrimSuffix(pattern, "/")
		if dirOnly && !isDir {
			// A directory pattern still hides the files below it.
			if strings.HasPrefix(relPath, pattern+string(filepath.Separator)) ||
				strings.Contains(relPath, string(filepath.Separator)+pattern+string(filepath.Separator)) {
				return true
			}
			continue
		}
		if strings.HasPrefix(pattern, "/") {
			if ok, _ := filepath.Match(strings.TrimPrefix(pattern, "/"), relPath); ok {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}

// Discover lists the indexable files under root with the same ignore rules
// a sync pass applies. The symbol indexer walks the corpus through this.
func Discover(root string) ([]string, error) {
	return discoverFiles(root, loadIgnoreRules(root))
}

// discoverFiles walks the corpus root and returns the relative paths of
// every indexable file, sorted for deterministic processing order.
func discoverFiles(root string, rules *ignoreRules) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if relPath == "." {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if skipDirs[name] || strings.HasPrefix(name, ".") || rules.Match(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if !codeExtensions[strings.ToLower(filepath.Ext(name))] {
			return nil
		}
		if rules.Match(relPath, false) {
			return nil
		}
		files = append(files, relPath)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// modeProperty is shared by every tool that accepts a speed tier.
func modeProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Embedding tier: fast, balanced, quality, or hybrid (general + code models fused). Defaults to the configured mode.",
		"enum":        []string{"fast", "balanced", "quality", "hybrid"},
	}
}

func pathProperty(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": desc,
	}
}

// semanticSearchTool returns the tool definition for semantic_search
func semanticSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "semantic_search",
		Description: "Search an indexed directory with a natural-language query. Ranks code chunks by meaning fused with literal term overlap.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path":  pathProperty("Absolute path to the indexed directory"),
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language description of the code to find",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (1-50)",
					"default":     10,
					"minimum":     1,
					"maximum":     50,
				},
				"path_filter": map[string]interface{}{
					"type":        "string",
					"description": "Only return chunks whose file path contains this substring",
				},
				"include_content": map[string]interface{}{
					"type":        "boolean",
					"description": "Include chunk text in results. Disable for a compact location-and-score listing.",
					"default":     true,
				},
				"mode": modeProperty(),
			},
			Required: []string{"path", "query"},
		},
	}
}

// indexDirectoryTool returns the tool definition for index_directory
func indexDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_directory",
		Description: "Index or incrementally re-index a directory for semantic search. Unchanged files are skipped; unchanged chunks keep their embeddings.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to the directory to index"),
				"mode": modeProperty(),
			},
			Required: []string{"path"},
		},
	}
}

// watchDirectoryTool returns the tool definition for watch_directory
func watchDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "watch_directory",
		Description: "Start or stop continuous re-indexing of a directory. While watching, edits are picked up automatically after a short quiet period.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to the directory to watch"),
				"stop": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, stop watching instead of starting",
					"default":     false,
				},
				"mode": modeProperty(),
			},
			Required: []string{"path"},
		},
	}
}

// searchSymbolsTool returns the tool definition for search_symbols
func searchSymbolsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_symbols",
		Description: "Find declarations by name in an indexed directory's symbol graph.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to the indexed directory"),
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name or name fragment (case-insensitive)",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Restrict to one declaration kind",
					"enum":        []string{"function", "struct", "enum", "trait", "class", "interface", "type"},
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of symbols to return",
					"default":     25,
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// codebaseMapTool returns the tool definition for get_codebase_map
func codebaseMapTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_codebase_map",
		Description: "Summarize an indexed directory: every file with its declarations and imports.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to the indexed directory"),
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report whether a directory is indexed, with chunk and file counts, the embedding model, and watch state.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to the directory"),
				"mode": modeProperty(),
			},
			Required: []string{"path"},
		},
	}
}

// Package retrieval defines the code-retrieval capability consumed during
// context assembly, plus a grep-based fallback for trees without an index.
package retrieval

import "context"

// Chunk types reported by retrieval backends.
const (
	ChunkFunction = "function"
	ChunkMethod   = "method"
	ChunkClass    = "class"
	ChunkBlock    = "block"
)

// SearchResult is one ranked snippet returned by a retrieval backend.
type SearchResult struct {
	FilePath   string  `json:"file_path"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	SymbolName string  `json:"symbol_name,omitempty"`
	ChunkType  string  `json:"chunk_type,omitempty"`
}

// Filters narrows a search to specific chunk types or paths.
type Filters struct {
	ChunkTypes []string `json:"chunk_types,omitempty"`
	PathPrefix string   `json:"path_prefix,omitempty"`
}

// Retriever is the retrieval capability. Implementations rank results by
// relevance; k bounds the result count.
type Retriever interface {
	Search(ctx context.Context, query string, k int, filters *Filters) ([]SearchResult, error)
	GetSnippet(ctx context.Context, filePath string, startLine, endLine, contextLines int) (string, error)
}

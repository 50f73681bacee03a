package retrieval

import "context"

// MockRetriever is a mock implementation of the Retriever interface for testing.
type MockRetriever struct {
	// SearchFunc is the mock implementation for Search
	SearchFunc func(ctx context.Context, query string, k int, filters *Filters) ([]SearchResult, error)

	// GetSnippetFunc is the mock implementation for GetSnippet
	GetSnippetFunc func(ctx context.Context, filePath string, startLine, endLine, contextLines int) (string, error)

	// Queries records every search query seen
	Queries []string
}

// Search calls the mock SearchFunc if set, otherwise returns no results.
func (m *MockRetriever) Search(ctx context.Context, query string, k int, filters *Filters) ([]SearchResult, error) {
	m.Queries = append(m.Queries, query)
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, k, filters)
	}
	return nil, nil
}

// GetSnippet calls the mock GetSnippetFunc if set, otherwise returns empty text.
func (m *MockRetriever) GetSnippet(ctx context.Context, filePath string, startLine, endLine, contextLines int) (string, error) {
	if m.GetSnippetFunc != nil {
		return m.GetSnippetFunc(ctx, filePath, startLine, endLine, contextLines)
	}
	return "", nil
}

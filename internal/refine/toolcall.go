// Package refine lets the model request additional context through a small,
// closed set of lookup tools before patch generation starts.
package refine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolCall is one lookup requested by the model. The set of implementations
// is closed: ReadFileCall, SearchCodeCall and FindSymbolCall. Dispatch is an
// exhaustive type switch; adding a variant without handling it everywhere is
// a compile-time visible change.
type ToolCall interface {
	// Describe returns a short human-readable form for logs and notes.
	Describe() string

	sealed()
}

// ReadFileCall reads a file, optionally restricted to a line range.
type ReadFileCall struct {
	Path      string
	StartLine int
	EndLine   int
}

func (c ReadFileCall) Describe() string {
	if c.StartLine > 0 {
		return fmt.Sprintf("readFile(%s, %d-%d)", c.Path, c.StartLine, c.EndLine)
	}
	return fmt.Sprintf("readFile(%s)", c.Path)
}
func (ReadFileCall) sealed() {}

// SearchCodeCall runs a free-text code search.
type SearchCodeCall struct {
	Query string
}

func (c SearchCodeCall) Describe() string { return fmt.Sprintf("searchCode(%q)", c.Query) }
func (SearchCodeCall) sealed()            {}

// FindSymbolCall looks up a named function, method or class.
type FindSymbolCall struct {
	Name string
}

func (c FindSymbolCall) Describe() string { return fmt.Sprintf("findSymbol(%s)", c.Name) }
func (FindSymbolCall) sealed()            {}

// rawToolCall is the wire shape the model replies with.
type rawToolCall struct {
	Tool      string `json:"tool"`
	Path      string `json:"path,omitempty"`
	StartLine int    `json:"startLine,omitempty"`
	EndLine   int    `json:"endLine,omitempty"`
	Query     string `json:"query,omitempty"`
	Name      string `json:"name,omitempty"`
}

// ParseToolCalls decodes a JSON tool-call request. A single bare object is
// normalized to a one-element array. Individually malformed entries yield
// errors in the second return without discarding the valid ones.
func ParseToolCalls(raw json.RawMessage) ([]ToolCall, []error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		trimmed = "[" + trimmed + "]"
	}

	var rawCalls []rawToolCall
	if err := json.Unmarshal([]byte(trimmed), &rawCalls); err != nil {
		return nil, []error{fmt.Errorf("tool-call request is not a JSON array: %w", err)}
	}

	var calls []ToolCall
	var errs []error
	for i, rc := range rawCalls {
		call, err := rc.typed()
		if err != nil {
			errs = append(errs, fmt.Errorf("tool call %d: %w", i, err))
			continue
		}
		calls = append(calls, call)
	}
	return calls, errs
}

func (rc rawToolCall) typed() (ToolCall, error) {
	switch rc.Tool {
	case "readFile":
		if rc.Path == "" {
			return nil, fmt.Errorf("readFile requires a path")
		}
		return ReadFileCall{Path: rc.Path, StartLine: rc.StartLine, EndLine: rc.EndLine}, nil
	case "searchCode":
		if strings.TrimSpace(rc.Query) == "" {
			return nil, fmt.Errorf("searchCode requires a query")
		}
		return SearchCodeCall{Query: rc.Query}, nil
	case "findSymbol":
		if strings.TrimSpace(rc.Name) == "" {
			return nil, fmt.Errorf("findSymbol requires a name")
		}
		return FindSymbolCall{Name: rc.Name}, nil
	default:
		return nil, fmt.Errorf("unknown tool %q", rc.Tool)
	}
}

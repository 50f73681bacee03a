package retrieval

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/codefionn/patchflink/internal/fs"
	"github.com/codefionn/patchflink/internal/logger"
)

// Source file extensions considered by the grep fallback.
var grepExtensions = map[string]bool{
	".go": true, ".py": true, ".ts": true, ".tsx": true,
	".js": true, ".jsx": true, ".sh": true, ".rb": true,
	".rs": true, ".java": true, ".c": true, ".h": true, ".cpp": true,
}

// Symbol-definition line shapes per keyword family. Used to classify hits
// so chunk-type filters still work without a real index.
var (
	funcDefRe  = regexp.MustCompile(`^\s*(func|def|fn)\s+\w`)
	classDefRe = regexp.MustCompile(`^\s*(class|type|interface|struct)\s+\w`)
)

// GrepRetriever is a Retriever over the working tree using regex scans.
// It is the default when no retrieval index is wired in: rankings are
// crude (term-frequency) but GetSnippet is exact.
type GrepRetriever struct {
	fs       fs.FileSystem
	maxFiles int
}

// NewGrepRetriever creates a grep-based retriever over the given filesystem.
func NewGrepRetriever(filesystem fs.FileSystem) *GrepRetriever {
	return &GrepRetriever{
		fs:       filesystem,
		maxFiles: 500,
	}
}

// Search scans source files under the base directory for query terms and
// returns line-anchored results, best term coverage first.
func (g *GrepRetriever) Search(ctx context.Context, query string, k int, filters *Filters) ([]SearchResult, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	files, err := g.collectFiles(ctx, ".", g.maxFiles)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if filters != nil && filters.PathPrefix != "" && !strings.HasPrefix(path, filters.PathPrefix) {
			continue
		}

		lines, err := g.fs.ReadFileLines(ctx, path, 1, 0)
		if err != nil {
			logger.Debug("retrieval: skipping unreadable file %s: %v", path, err)
			continue
		}

		for i, line := range lines {
			score := termCoverage(line, terms)
			if score == 0 {
				continue
			}

			chunkType := classifyLine(line)
			if filters != nil && len(filters.ChunkTypes) > 0 && !containsString(filters.ChunkTypes, chunkType) {
				continue
			}

			start := i + 1
			end := start + 4
			if end > len(lines) {
				end = len(lines)
			}
			results = append(results, SearchResult{
				FilePath:   path,
				StartLine:  start,
				EndLine:    end,
				Content:    strings.Join(lines[start-1:end], "\n"),
				Score:      score,
				SymbolName: symbolFromLine(line),
				ChunkType:  chunkType,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// GetSnippet returns the exact line range of a file, padded by contextLines
// on both sides.
func (g *GrepRetriever) GetSnippet(ctx context.Context, filePath string, startLine, endLine, contextLines int) (string, error) {
	from := startLine - contextLines
	if from < 1 {
		from = 1
	}
	to := endLine + contextLines

	lines, err := g.fs.ReadFileLines(ctx, filePath, from, to)
	if err != nil {
		return "", fmt.Errorf("failed to read snippet %s:%d-%d: %w", filePath, startLine, endLine, err)
	}
	return strings.Join(lines, "\n"), nil
}

func (g *GrepRetriever) collectFiles(ctx context.Context, dir string, limit int) ([]string, error) {
	var files []string
	var walk func(string) error
	walk = func(d string) error {
		if len(files) >= limit {
			return nil
		}
		entries, err := g.fs.ListDir(ctx, d)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if len(files) >= limit {
				return nil
			}
			name := filepath.Base(entry.Path)
			if entry.IsDir {
				if strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" || name == "__pycache__" {
					continue
				}
				if err := walk(entry.Path); err != nil {
					return err
				}
				continue
			}
			if grepExtensions[strings.ToLower(filepath.Ext(name))] {
				files = append(files, entry.Path)
			}
		}
		return nil
	}
	if err := walk(dir); err != nil {
		return nil, err
	}
	return files, nil
}

func searchTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `.,;:"'()[]{}`)
		if len(f) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

func termCoverage(line string, terms []string) float64 {
	lower := strings.ToLower(line)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return float64(hits) / float64(len(terms))
}

func classifyLine(line string) string {
	switch {
	case funcDefRe.MatchString(line):
		return ChunkFunction
	case classDefRe.MatchString(line):
		return ChunkClass
	default:
		return ChunkBlock
	}
}

func symbolFromLine(line string) string {
	fields := strings.Fields(line)
	for i, f := range fields {
		switch f {
		case "func", "def", "fn", "class", "type", "interface", "struct":
			if i+1 < len(fields) {
				name := fields[i+1]
				if idx := strings.IndexAny(name, "(:{"); idx > 0 {
					name = name[:idx]
				}
				return name
			}
		}
	}
	return ""
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/codefionn/patchflink/internal/ctxbuild"
	"github.com/codefionn/patchflink/internal/fs"
	"github.com/codefionn/patchflink/internal/llm"
	"github.com/codefionn/patchflink/internal/retrieval"
	"github.com/codefionn/patchflink/internal/task"
	"github.com/codefionn/patchflink/internal/tokens"
)

func TestParseToolCalls(t *testing.T) {
	t.Run("array of calls", func(t *testing.T) {
		raw := json.RawMessage(`[
			{"tool": "readFile", "path": "a.py", "startLine": 3, "endLine": 9},
			{"tool": "searchCode", "query": "token refresh"},
			{"tool": "findSymbol", "name": "Handler"}
		]`)
		calls, errs := ParseToolCalls(raw)
		if len(errs) != 0 {
			t.Fatalf("unexpected parse errors: %v", errs)
		}
		if len(calls) != 3 {
			t.Fatalf("got %d calls, want 3", len(calls))
		}
		rf, ok := calls[0].(ReadFileCall)
		if !ok || rf.Path != "a.py" || rf.StartLine != 3 || rf.EndLine != 9 {
			t.Errorf("bad readFile decode: %#v", calls[0])
		}
		if sc, ok := calls[1].(SearchCodeCall); !ok || sc.Query != "token refresh" {
			t.Errorf("bad searchCode decode: %#v", calls[1])
		}
		if fsym, ok := calls[2].(FindSymbolCall); !ok || fsym.Name != "Handler" {
			t.Errorf("bad findSymbol decode: %#v", calls[2])
		}
	})

	t.Run("bare object normalized to one-element array", func(t *testing.T) {
		calls, errs := ParseToolCalls(json.RawMessage(`{"tool": "searchCode", "query": "q"}`))
		if len(errs) != 0 || len(calls) != 1 {
			t.Fatalf("calls=%v errs=%v", calls, errs)
		}
	})

	t.Run("unknown tool skipped, valid ones kept", func(t *testing.T) {
		raw := json.RawMessage(`[
			{"tool": "deleteEverything"},
			{"tool": "findSymbol", "name": "x"}
		]`)
		calls, errs := ParseToolCalls(raw)
		if len(calls) != 1 || len(errs) != 1 {
			t.Errorf("calls=%d errs=%d, want 1 and 1", len(calls), len(errs))
		}
	})

	t.Run("missing arguments rejected", func(t *testing.T) {
		raw := json.RawMessage(`[{"tool": "readFile"}, {"tool": "searchCode", "query": "  "}]`)
		calls, errs := ParseToolCalls(raw)
		if len(calls) != 0 || len(errs) != 2 {
			t.Errorf("calls=%d errs=%d, want 0 and 2", len(calls), len(errs))
		}
	})
}

func newRefinerFixture(t *testing.T) (*fs.CachedFS, string) {
	t.Helper()
	dir := t.TempDir()
	cfs := fs.NewCachedFS(dir, 50)
	t.Cleanup(func() { cfs.Close() })
	return cfs, dir
}

func TestRefineExecutesAndLabelsResults(t *testing.T) {
	cfs, dir := newRefinerFixture(t)
	content := "one\ntwo\nthree\nfour\n"
	if err := os.WriteFile(filepath.Join(dir, "a.py"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	ret := &retrieval.MockRetriever{
		SearchFunc: func(ctx context.Context, query string, k int, filters *retrieval.Filters) ([]retrieval.SearchResult, error) {
			return []retrieval.SearchResult{{FilePath: "b.py", StartLine: 1, EndLine: 2, Content: "hit", SymbolName: "sym"}}, nil
		},
	}
	client := &llm.MockClient{Responses: []string{`[
		{"tool": "readFile", "path": "a.py", "startLine": 2, "endLine": 3},
		{"tool": "searchCode", "query": "alpha"},
		{"tool": "searchCode", "query": "beta"},
		{"tool": "findSymbol", "name": "sym"}
	]`}}

	cc := ctxbuild.NewCodeContext("goal", tokens.NewEstimator())
	refiner := NewRefiner(client, ret, cfs)
	n := refiner.Refine(context.Background(), &task.Spec{ID: "t", Goal: "goal", Paths: []string{"a.py"}}, cc)
	if n != 4 {
		t.Fatalf("appended %d results, want 4", n)
	}

	if got := cc.BlobContents["tool_read:a.py"]; got != "   2: two\n   3: three\n" {
		t.Errorf("tool_read content = %q", got)
	}
	if _, ok := cc.BlobContents["tool_search_1"]; !ok {
		t.Error("missing tool_search_1")
	}
	if _, ok := cc.BlobContents["tool_search_2"]; !ok {
		t.Error("missing tool_search_2")
	}
	if _, ok := cc.BlobContents["tool_symbol:sym"]; !ok {
		t.Error("missing tool_symbol:sym")
	}
}

func TestRefineIsolatesFailures(t *testing.T) {
	cfs, _ := newRefinerFixture(t)

	ret := &retrieval.MockRetriever{
		SearchFunc: func(ctx context.Context, query string, k int, filters *retrieval.Filters) ([]retrieval.SearchResult, error) {
			return nil, fmt.Errorf("index offline")
		},
	}
	client := &llm.MockClient{Responses: []string{`[
		{"tool": "readFile", "path": "missing.py"},
		{"tool": "searchCode", "query": "q"},
		{"tool": "findSymbol", "name": "n"}
	]`}}

	cc := ctxbuild.NewCodeContext("goal", tokens.NewEstimator())
	refiner := NewRefiner(client, ret, cfs)
	n := refiner.Refine(context.Background(), &task.Spec{ID: "t", Goal: "goal"}, cc)
	if n != 0 {
		t.Errorf("all calls should fail, appended %d", n)
	}
	if len(cc.BlobContents) != 0 {
		t.Errorf("failed calls must not write context entries: %v", cc.BlobContents)
	}
}

func TestRefineCapsToolCalls(t *testing.T) {
	cfs, dir := newRefinerFixture(t)
	if err := os.WriteFile(filepath.Join(dir, "a.py"), []byte("x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var callsJSON string
	for i := 0; i < 9; i++ {
		if i > 0 {
			callsJSON += ","
		}
		callsJSON += `{"tool": "readFile", "path": "a.py"}`
	}
	client := &llm.MockClient{Responses: []string{"[" + callsJSON + "]"}}

	cc := ctxbuild.NewCodeContext("goal", tokens.NewEstimator())
	refiner := NewRefiner(client, nil, cfs)
	refiner.Refine(context.Background(), &task.Spec{ID: "t", Goal: "goal"}, cc)

	// All reads share the same label so the map has one entry; the cap is
	// observable through the mock's request count staying at one round.
	if len(client.Requests) != 1 {
		t.Errorf("refinement should issue exactly one structured request, got %d", len(client.Requests))
	}
}

func TestRefineDegradesOnModelFailure(t *testing.T) {
	cfs, _ := newRefinerFixture(t)
	client := &llm.MockClient{Err: fmt.Errorf("completion backend down")}

	cc := ctxbuild.NewCodeContext("goal", tokens.NewEstimator())
	refiner := NewRefiner(client, nil, cfs)
	if n := refiner.Refine(context.Background(), &task.Spec{ID: "t", Goal: "goal"}, cc); n != 0 {
		t.Errorf("expected zero lookups on model failure, got %d", n)
	}
}

package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestFS(t *testing.T) (*CachedFS, string) {
	t.Helper()
	dir := t.TempDir()
	cfs := NewCachedFS(dir, 16)
	t.Cleanup(func() { cfs.Close() })
	return cfs, dir
}

func TestReadWriteRoundTrip(t *testing.T) {
	cfs, _ := newTestFS(t)
	ctx := context.Background()

	if err := cfs.WriteFile(ctx, "sub/file.txt", []byte("hello\n")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := cfs.ReadFile(ctx, "sub/file.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello\n" {
		t.Errorf("content = %q", data)
	}

	exists, err := cfs.Exists(ctx, "sub/file.txt")
	if err != nil || !exists {
		t.Errorf("Exists = %t, %v", exists, err)
	}
	exists, err = cfs.Exists(ctx, "nope.txt")
	if err != nil || exists {
		t.Errorf("Exists on missing file = %t, %v", exists, err)
	}
}

func TestReadFileLines(t *testing.T) {
	cfs, _ := newTestFS(t)
	ctx := context.Background()

	content := "one\ntwo\nthree\nfour\nfive\n"
	if err := cfs.WriteFile(ctx, "lines.txt", []byte(content)); err != nil {
		t.Fatal(err)
	}

	t.Run("range", func(t *testing.T) {
		lines, err := cfs.ReadFileLines(ctx, "lines.txt", 2, 4)
		if err != nil {
			t.Fatal(err)
		}
		if len(lines) != 3 || lines[0] != "two" || lines[2] != "four" {
			t.Errorf("lines = %v", lines)
		}
	})

	t.Run("to end", func(t *testing.T) {
		lines, err := cfs.ReadFileLines(ctx, "lines.txt", 4, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(lines) != 2 || lines[1] != "five" {
			t.Errorf("lines = %v", lines)
		}
	})

	t.Run("from below one", func(t *testing.T) {
		lines, err := cfs.ReadFileLines(ctx, "lines.txt", 0, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(lines) != 1 || lines[0] != "one" {
			t.Errorf("lines = %v", lines)
		}
	})
}

func TestCacheInvalidationOnWrite(t *testing.T) {
	cfs, _ := newTestFS(t)
	ctx := context.Background()

	if err := cfs.WriteFile(ctx, "f.txt", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if _, err := cfs.ReadFile(ctx, "f.txt"); err != nil {
		t.Fatal(err)
	}

	// Writes through the same CachedFS invalidate synchronously.
	if err := cfs.WriteFile(ctx, "f.txt", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	data, err := cfs.ReadFile(ctx, "f.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v2" {
		t.Errorf("stale read after write: %q", data)
	}
}

func TestExternalWriteInvalidatesCache(t *testing.T) {
	cfs, dir := newTestFS(t)
	ctx := context.Background()

	path := filepath.Join(dir, "g.txt")
	if err := os.WriteFile(path, []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := cfs.ReadFile(ctx, "g.txt"); err != nil {
		t.Fatal(err)
	}

	// External write, as git apply or reset would do.
	if err := os.WriteFile(path, []byte("v2"), 0644); err != nil {
		t.Fatal(err)
	}

	// The watcher delivers asynchronously; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := cfs.ReadFile(ctx, "g.txt")
		if err != nil {
			t.Fatal(err)
		}
		if string(data) == "v2" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("cache not invalidated after external write")
}

func TestInvalidateAll(t *testing.T) {
	cfs, dir := newTestFS(t)
	ctx := context.Background()

	path := filepath.Join(dir, "h.txt")
	if err := os.WriteFile(path, []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := cfs.ReadFile(ctx, "h.txt"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("v2"), 0644); err != nil {
		t.Fatal(err)
	}

	cfs.InvalidateAll()

	data, err := cfs.ReadFile(ctx, "h.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v2" {
		t.Errorf("read after InvalidateAll = %q", data)
	}
}

func TestListDirAndStat(t *testing.T) {
	cfs, _ := newTestFS(t)
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt"} {
		if err := cfs.WriteFile(ctx, filepath.Join("d", name), []byte(name)); err != nil {
			t.Fatal(err)
		}
	}

	infos, err := cfs.ListDir(ctx, "d")
	if err != nil {
		t.Fatalf("ListDir failed: %v", err)
	}
	if len(infos) != 2 {
		t.Errorf("got %d entries, want 2", len(infos))
	}

	info, err := cfs.Stat(ctx, "d/a.txt")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.IsDir || info.Size != int64(len("a.txt")) {
		t.Errorf("info = %+v", info)
	}
}

func TestContextCancellation(t *testing.T) {
	cfs, _ := newTestFS(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := cfs.ReadFile(ctx, "x.txt"); err == nil {
		t.Error("read with cancelled context should fail")
	}
	if err := cfs.WriteFile(ctx, "x.txt", []byte("x")); err == nil {
		t.Error("write with cancelled context should fail")
	}
}

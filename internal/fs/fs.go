// Package fs is an abstraction over filesystem operations rooted at a
// working directory, with a change-aware content cache.
package fs

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/patchflink/internal/logger"
)

// FileInfo represents file metadata
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// FileSystem is an abstraction over filesystem operations. Paths are
// interpreted relative to the implementation's base directory unless
// absolute.
type FileSystem interface {
	// ReadFile reads the entire file
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// ReadFileLines reads lines from (1-based, inclusive) of a file.
	// to <= 0 means read to the end.
	ReadFileLines(ctx context.Context, path string, from, to int) ([]string, error)
	// WriteFile writes data to a file
	WriteFile(ctx context.Context, path string, data []byte) error
	// Exists checks if a file exists
	Exists(ctx context.Context, path string) (bool, error)
	// Stat returns file information
	Stat(ctx context.Context, path string) (*FileInfo, error)
	// ListDir lists directory contents
	ListDir(ctx context.Context, path string) ([]*FileInfo, error)
	// BaseDir returns the base directory paths are resolved against
	BaseDir() string
}

// CachedFS is a FileSystem with an fsnotify-invalidated content cache.
// Context assembly re-reads the same target files on every attempt; the
// cache makes that cheap while patch application keeps mutating the tree.
type CachedFS struct {
	baseDir    string
	cache      map[string][]byte
	cacheMu    sync.RWMutex
	maxEntries int
	watcher    *fsnotify.Watcher
	stopWatch  chan struct{}
	stopOnce   sync.Once
}

// NewCachedFS creates a cached filesystem rooted at baseDir. maxEntries
// bounds the number of cached file contents.
func NewCachedFS(baseDir string, maxEntries int) *CachedFS {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("fs: failed to create file watcher, caching disabled: %v", err)
	}

	cfs := &CachedFS{
		baseDir:    baseDir,
		cache:      make(map[string][]byte),
		maxEntries: maxEntries,
		watcher:    watcher,
		stopWatch:  make(chan struct{}),
	}

	if watcher != nil {
		go cfs.watchLoop()
	}

	return cfs
}

// BaseDir returns the base directory.
func (c *CachedFS) BaseDir() string {
	return c.baseDir
}

// Close stops the watcher goroutine.
func (c *CachedFS) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopWatch)
	})
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

func (c *CachedFS) watchLoop() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Create) != 0 {
				c.invalidate(event.Name)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			logger.Debug("fs: watcher error: %v", err)
		case <-c.stopWatch:
			return
		}
	}
}

func (c *CachedFS) invalidate(absPath string) {
	c.cacheMu.Lock()
	delete(c.cache, absPath)
	c.cacheMu.Unlock()
}

// InvalidateAll drops every cached entry. Called after working-tree resets,
// where individual events may race the next read.
func (c *CachedFS) InvalidateAll() {
	c.cacheMu.Lock()
	c.cache = make(map[string][]byte)
	c.cacheMu.Unlock()
}

func (c *CachedFS) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.baseDir, path)
}

// ReadFile reads a file, serving repeated reads from the cache until the
// watcher sees the file change.
func (c *CachedFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs := c.resolve(path)

	c.cacheMu.RLock()
	data, ok := c.cache[abs]
	c.cacheMu.RUnlock()
	if ok {
		return data, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	if c.watcher != nil {
		c.cacheMu.Lock()
		if len(c.cache) < c.maxEntries {
			c.cache[abs] = data
			// Watch the containing directory; watching files directly
			// misses rename-based saves.
			if err := c.watcher.Add(filepath.Dir(abs)); err != nil {
				logger.Debug("fs: cannot watch %s: %v", filepath.Dir(abs), err)
			}
		}
		c.cacheMu.Unlock()
	}

	return data, nil
}

// ReadFileLines reads a 1-based inclusive line range of a file.
func (c *CachedFS) ReadFileLines(ctx context.Context, path string, from, to int) ([]string, error) {
	data, err := c.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if from < 1 {
		from = 1
	}

	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo < from {
			continue
		}
		if to > 0 && lineNo > to {
			break
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return lines, nil
}

// WriteFile writes data to a file and invalidates its cache entry.
func (c *CachedFS) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	abs := c.resolve(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		return err
	}
	c.invalidate(abs)
	return nil
}

// Exists checks if a file exists.
func (c *CachedFS) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(c.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Stat returns file information.
func (c *CachedFS) Stat(ctx context.Context, path string) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(c.resolve(path))
	if err != nil {
		return nil, err
	}
	return &FileInfo{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

// ListDir lists directory contents.
func (c *CachedFS) ListDir(ctx context.Context, path string) ([]*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(c.resolve(path))
	if err != nil {
		return nil, err
	}
	infos := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, &FileInfo{
			Path:    filepath.Join(path, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   entry.IsDir(),
		})
	}
	return infos, nil
}

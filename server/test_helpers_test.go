package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chazu/bfqbe/cache"
	"github.com/chazu/bfqbe/compiler"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
// ---------------------------------------------------------------------------

// newTestCache opens a cache in a temporary directory, closed at cleanup.
func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// newTestCompileService creates a CompileService with its own worker.
// c may be nil.
func newTestCompileService(t *testing.T, c *cache.Cache) *CompileService {
	t.Helper()
	w := NewWorker(2)
	t.Cleanup(w.Stop)
	return NewCompileService(w, c, compiler.DefaultOptions())
}

// compileLocal compiles src in-process for comparison with remote results.
func compileLocal(t *testing.T, src string) string {
	t.Helper()
	return compileLocalWith(t, src, compiler.DefaultOptions())
}

// compileLocalWith is compileLocal with explicit options. Zero fields take
// their defaults, as they do on the server.
func compileLocalWith(t *testing.T, src string, opts compiler.Options) string {
	t.Helper()
	a, _, err := cache.Compile(nil, src, opts.WithDefaults())
	if err != nil {
		t.Fatalf("local compile of %q: %v", src, err)
	}
	return a.IR
}

func bg() context.Context {
	return context.Background()
}

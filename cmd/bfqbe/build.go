package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chazu/bfqbe/cache"
	"github.com/chazu/bfqbe/compiler"
	"github.com/chazu/bfqbe/server"
)

// remoteTimeout bounds a single -remote compile.
const remoteTimeout = 30 * time.Second

// buildJob compiles one source file to one destination file.
type buildJob struct {
	source string
	dest   string
	opts   compiler.Options
	cache  *cache.Cache // may be nil
	remote string       // compile server address, empty for local
}

type buildResult struct {
	stats  *compiler.Stats // nil for remote compiles
	cached bool
}

// run compiles the job. The destination is only replaced once the whole
// program has been generated, so a failed compile leaves no partial file.
func (j buildJob) run() (buildResult, error) {
	src, err := os.ReadFile(j.source)
	if err != nil {
		return buildResult{}, fmt.Errorf("read source: %w", err)
	}

	var (
		ir     string
		result buildResult
	)
	if j.remote != "" {
		ir, err = j.compileRemote(string(src))
	} else {
		var a *cache.Artifact
		a, result.cached, err = cache.Compile(j.cache, string(src), j.opts)
		if err == nil {
			ir = a.IR
			result.stats = &a.Stats
		}
	}
	if err != nil {
		return buildResult{}, fmt.Errorf("%s: %w", j.source, err)
	}

	if err := writeFileAtomic(j.dest, []byte(ir)); err != nil {
		return buildResult{}, fmt.Errorf("write destination: %w", err)
	}
	log.Infof("wrote %s (%d bytes, cached: %t)", j.dest, len(ir), result.cached)
	return result, nil
}

func (j buildJob) compileRemote(src string) (string, error) {
	client, err := server.Dial(j.remote)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", j.remote, err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	return client.Compile(ctx, src, j.opts)
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

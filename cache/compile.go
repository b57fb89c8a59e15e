package cache

import (
	"errors"
	"strings"

	"github.com/chazu/bfqbe/compiler"
	"github.com/chazu/bfqbe/compiler/hash"
)

// Compile returns the artifact for src, compiling it only when c holds no
// entry for its content hash. The second result reports a cache hit.
// c may be nil, in which case every call compiles. Cache read and write
// failures are logged and otherwise ignored; bracket errors are returned.
func Compile(c *Cache, src string, opts compiler.Options) (*Artifact, bool, error) {
	opts = opts.WithDefaults()

	h, err := hash.Hash(src, opts)
	if err != nil {
		return nil, false, err
	}

	if c != nil {
		a, err := c.Get(h)
		switch {
		case err == nil:
			log.Debugf("cache hit %s", hash.Hex(h)[:12])
			return a, true, nil
		case !errors.Is(err, ErrMiss):
			log.Warningf("cache read failed: %s", err)
		}
	}

	var b strings.Builder
	stats, err := compiler.Compile(src, &b, opts)
	if err != nil {
		return nil, false, err
	}

	a := &Artifact{Hash: h, IR: b.String(), Stats: stats}
	if c != nil {
		if err := c.Put(a); err != nil {
			log.Warningf("cache write failed: %s", err)
		}
	}
	return a, false, nil
}

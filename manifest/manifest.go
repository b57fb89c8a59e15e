// Package manifest handles bfqbe.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/bfqbe/compiler"
)

// FileName is the manifest file looked up by FindAndLoad.
const FileName = "bfqbe.toml"

// Manifest represents a bfqbe.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Build   Build   `toml:"build"`
	Cache   Cache   `toml:"cache"`

	// Dir is the directory containing the bfqbe.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Build configures the emitted program.
type Build struct {
	TapeSize int    `toml:"tape-size"`
	Entry    string `toml:"entry"`
	Data     string `toml:"data"`
	PutChar  string `toml:"putchar"`
	OutDir   string `toml:"out-dir"`
}

// Cache configures the compile cache.
type Cache struct {
	Path    string `toml:"path"`
	Enabled *bool  `toml:"enabled"`
}

// Default returns the manifest used when no bfqbe.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses a bfqbe.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return parse(path, dir, data)
}

func parse(path, dir string, data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	d := compiler.DefaultOptions()
	if m.Build.TapeSize == 0 {
		m.Build.TapeSize = d.TapeSize
	}
	if m.Build.Entry == "" {
		m.Build.Entry = d.Entry
	}
	if m.Build.Data == "" {
		m.Build.Data = d.Data
	}
	if m.Build.PutChar == "" {
		m.Build.PutChar = d.PutChar
	}
	if m.Build.OutDir == "" {
		m.Build.OutDir = "."
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".bfqbe", "cache.db")
	}
	if m.Cache.Enabled == nil {
		enabled := true
		m.Cache.Enabled = &enabled
	}
}

// FindAndLoad walks up from startDir to find a bfqbe.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Options returns the generator options described by [build].
func (m *Manifest) Options() compiler.Options {
	return compiler.Options{
		TapeSize: m.Build.TapeSize,
		Entry:    m.Build.Entry,
		Data:     m.Build.Data,
		PutChar:  m.Build.PutChar,
	}
}

// CacheEnabled reports whether the compile cache should be used.
func (m *Manifest) CacheEnabled() bool {
	return m.Cache.Enabled == nil || *m.Cache.Enabled
}

// CachePath returns the absolute path of the cache database.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// OutputPath returns where the IR for source should be written when no
// destination is given: out-dir/<source base name>.ssa.
func (m *Manifest) OutputPath(source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(m.resolve(m.Build.OutDir), base+".ssa")
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

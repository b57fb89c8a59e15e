package manifest

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/chazu/bfqbe/compiler"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile manifest schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Manifest"))
		schemaErr = schemaDef.Err()
	})
	return schemaCtx, schemaDef, schemaErr
}

// Validate checks the manifest against the embedded CUE schema.
func (m *Manifest) Validate() error {
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}

	v := ctx.Encode(map[string]any{
		"project": map[string]any{
			"name":    m.Project.Name,
			"version": m.Project.Version,
		},
		"build": map[string]any{
			"tape-size": m.Build.TapeSize,
			"entry":     m.Build.Entry,
			"data":      m.Build.Data,
			"putchar":   m.Build.PutChar,
			"out-dir":   m.Build.OutDir,
		},
		"cache": map[string]any{
			"path":    m.Cache.Path,
			"enabled": m.CacheEnabled(),
		},
	})

	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}

// ValidateOptions checks generator options that did not come from a
// bfqbe.toml against the same [build] constraints.
func ValidateOptions(opts compiler.Options) error {
	m := Default(".")
	m.Build.TapeSize = opts.TapeSize
	m.Build.Entry = opts.Entry
	m.Build.Data = opts.Data
	m.Build.PutChar = opts.PutChar
	return m.Validate()
}

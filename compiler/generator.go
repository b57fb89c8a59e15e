package compiler

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ---------------------------------------------------------------------------
// Generator: lower optimized runs to QBE IR text
// ---------------------------------------------------------------------------

// DefaultTapeSize is the length in bytes of the zero-filled tape.
const DefaultTapeSize = 10_000_000

// Options controls the symbols and sizes baked into the emitted program.
type Options struct {
	TapeSize int    // bytes reserved for the tape
	Entry    string // exported function symbol
	Data     string // tape data symbol
	PutChar  string // byte-output primitive
}

// DefaultOptions returns the options matching the classic toolchain:
// an exported $main, a $data tape of DefaultTapeSize bytes and $putchar.
func DefaultOptions() Options {
	return Options{
		TapeSize: DefaultTapeSize,
		Entry:    "main",
		Data:     "data",
		PutChar:  "putchar",
	}
}

// WithDefaults returns a copy of o with every zero field taken from
// DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.TapeSize <= 0 {
		o.TapeSize = d.TapeSize
	}
	if o.Entry == "" {
		o.Entry = d.Entry
	}
	if o.Data == "" {
		o.Data = d.Data
	}
	if o.PutChar == "" {
		o.PutChar = d.PutChar
	}
	return o
}

// Generator writes IR for a run stream. It keeps two virtual registers
// threaded through the text: %ip, the tape address, and %val, a cached copy
// of the byte at %ip. Only pointer movement flushes and refills %val.
type Generator struct {
	w     *bufio.Writer
	opts  Options
	stats Stats
}

// NewGenerator creates a generator writing to w.
func NewGenerator(w io.Writer, opts Options) *Generator {
	return &Generator{
		w:    bufio.NewWriter(w),
		opts: opts.WithDefaults(),
	}
}

// Stats returns statistics gathered by the last Generate call.
func (g *Generator) Stats() Stats {
	return g.stats
}

// Generate writes a complete program for the runs produced by o.
// Any optimizer error stops generation immediately; whatever was already
// written is flushed to the sink and the error is returned.
func (g *Generator) Generate(o *Optimizer) (err error) {
	g.stats = Stats{}
	defer func() {
		if ferr := g.w.Flush(); err == nil && ferr != nil {
			err = ferr
		}
	}()

	if err := g.preamble(); err != nil {
		return err
	}

	for run, rerr := range o.Runs() {
		if rerr != nil {
			return rerr
		}
		if err := g.emit(run); err != nil {
			return err
		}
		g.stats.record(run)
	}
	g.stats.MaxDepth = o.Depth()

	return g.epilogue()
}

// Lower returns the IR text a single run lowers to.
func Lower(run Run, opts Options) (string, error) {
	var b strings.Builder
	g := NewGenerator(&b, opts)
	if err := g.emit(run); err != nil {
		return "", err
	}
	if err := g.w.Flush(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// emit lowers a single run.
func (g *Generator) emit(run Run) error {
	switch run.Op {
	case IncrementByte:
		return g.printf("    %%val =w add %%val, %d\n", run.Arg)
	case DecrementByte:
		return g.printf("    %%val =w sub %%val, %d\n", run.Arg)
	case IncrementPointer:
		return g.movePointer("add", run.Arg)
	case DecrementPointer:
		return g.movePointer("sub", run.Arg)
	case Output:
		return g.printf("    call $%s(w %%val)\n", g.opts.PutChar)
	case JumpIfZero:
		// %val == 0 skips past the matching close
		return g.branch("open", "open_after", run.Arg)
	case JumpIfNonZero:
		// %val != 0 loops back to just after the matching open
		return g.branch("close", "close_after", run.Arg)
	}
	return fmt.Errorf("generator: unknown operation %s", run.Op)
}

// movePointer flushes the cached byte, moves %ip and refills the cache.
func (g *Generator) movePointer(instr string, by int) error {
	return g.printf("    storeb %%val, %%ip\n    %%ip =l %s %%ip, %d\n    %%val =w loadsb %%ip\n", instr, by)
}

func (g *Generator) branch(block, next string, label int) error {
	return g.printf("@%s_%d\n    jnz %%val, @open_after_%d, @close_after_%d\n@%s_%d\n",
		block, label, label, label, next, label)
}

func (g *Generator) preamble() error {
	return g.printf("export function w $%s() {\n@start\n    %%ip =l copy $%s\n    %%val =w copy 0\n",
		g.opts.Entry, g.opts.Data)
}

func (g *Generator) epilogue() error {
	return g.printf("    ret 0\n}\n\ndata $%s = { z %d }\n", g.opts.Data, g.opts.TapeSize)
}

func (g *Generator) printf(format string, args ...any) error {
	n, err := fmt.Fprintf(g.w, format, args...)
	g.stats.BytesWritten += int64(n)
	return err
}

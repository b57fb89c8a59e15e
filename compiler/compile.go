package compiler

import (
	"io"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bfqbe.compiler")

// Stats summarizes one compilation.
type Stats struct {
	Operators    int                // source operators consumed
	Runs         [numOperations]int // runs emitted per operation
	Merged       [numOperations]int // operators folded into those runs
	Loops        int                // loop pairs
	MaxDepth     int                // deepest loop nesting
	BytesWritten int64              // IR bytes handed to the sink
}

func (s *Stats) record(run Run) {
	s.Runs[run.Op]++
	n := 1
	if run.Op.Mergeable() {
		n = run.Arg
	}
	s.Operators += n
	s.Merged[run.Op] += n
	if run.Op == JumpIfNonZero {
		s.Loops++
	}
}

// TotalRuns returns the number of runs across all operations.
func (s Stats) TotalRuns() int {
	total := 0
	for _, n := range s.Runs {
		total += n
	}
	return total
}

// Compile translates src into IR written to w.
// On a bracket error or write failure the sink may hold a truncated program.
func Compile(src string, w io.Writer, opts Options) (Stats, error) {
	log.Debugf("compiling %d source bytes", len(src))

	g := NewGenerator(w, opts)
	err := g.Generate(NewOptimizer(NewScanner(src)))
	stats := g.Stats()
	if err != nil {
		log.Debugf("compile failed: %s", err)
		return stats, err
	}

	log.Debugf("compiled %d operators into %d runs (%d bytes)",
		stats.Operators, stats.TotalRuns(), stats.BytesWritten)
	return stats, nil
}

// Check runs the scanner and optimizer without generating code and returns
// the first bracket error, if any.
func Check(src string) error {
	o := NewOptimizer(NewScanner(src))
	for _, err := range o.Runs() {
		if err != nil {
			return err
		}
	}
	return nil
}

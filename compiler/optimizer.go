package compiler

import (
	"errors"
	"fmt"
	"io"
	"iter"
)

// ---------------------------------------------------------------------------
// Optimizer: run-length merging and loop label resolution
// ---------------------------------------------------------------------------

var (
	// ErrUnbalancedBracket is reported when a loop-close operator has no
	// pending loop-open operator.
	ErrUnbalancedBracket = errors.New("unbalanced bracket pair")

	// ErrUnclosedBracket is reported when the input ends while a loop-open
	// operator is still waiting for its close.
	ErrUnclosedBracket = errors.New("unclosed bracket pair")
)

// BracketError locates a bracket error in the source.
type BracketError struct {
	Kind error    // ErrUnbalancedBracket or ErrUnclosedBracket
	Pos  Position // offending ']' or innermost unclosed '['
}

func (e *BracketError) Error() string {
	return fmt.Sprintf("%s at %s", e.Kind, e.Pos)
}

func (e *BracketError) Unwrap() error {
	return e.Kind
}

// Run is one optimized unit. For the four pointer/byte operations Arg is a
// repetition count >= 1; for Output it is always 1; for JumpIfZero it is a
// freshly allocated label and for JumpIfNonZero the label of the matching
// JumpIfZero.
type Run struct {
	Op  Operation
	Arg int
	Pos Position // position of the first operator in the run
}

func (r Run) String() string {
	return fmt.Sprintf("%s(%d)", r.Op, r.Arg)
}

type openLoop struct {
	label int
	pos   Position
}

// Optimizer pulls operations from a Scanner and yields Runs.
// The label counter and bracket stack live for one pass only.
type Optimizer struct {
	scanner *Scanner
	label   int
	open    []openLoop
	err     error // terminal error, repeated on every later call
	depth   int   // deepest nesting seen so far
}

// NewOptimizer creates an optimizer reading from s.
func NewOptimizer(s *Scanner) *Optimizer {
	return &Optimizer{scanner: s}
}

// Next returns the next run. It returns io.EOF once the input is exhausted
// with every bracket closed. A bracket error is terminal: it is returned
// again by every subsequent call.
func (o *Optimizer) Next() (Run, error) {
	if o.err != nil {
		return Run{}, o.err
	}

	op, ok := o.scanner.Next()
	if !ok {
		if n := len(o.open); n > 0 {
			o.err = &BracketError{Kind: ErrUnclosedBracket, Pos: o.open[n-1].pos}
		} else {
			o.err = io.EOF
		}
		return Run{}, o.err
	}
	pos := o.scanner.Pos()

	switch op {
	case Output:
		return Run{Op: op, Arg: 1, Pos: pos}, nil

	case JumpIfZero:
		o.label++
		o.open = append(o.open, openLoop{label: o.label, pos: pos})
		if len(o.open) > o.depth {
			o.depth = len(o.open)
		}
		return Run{Op: op, Arg: o.label, Pos: pos}, nil

	case JumpIfNonZero:
		n := len(o.open)
		if n == 0 {
			o.err = &BracketError{Kind: ErrUnbalancedBracket, Pos: pos}
			return Run{}, o.err
		}
		top := o.open[n-1]
		o.open = o.open[:n-1]
		return Run{Op: op, Arg: top.label, Pos: pos}, nil
	}

	count := 1
	for {
		next, ok := o.scanner.Peek()
		if !ok || next != op {
			break
		}
		o.scanner.Next()
		count++
	}
	return Run{Op: op, Arg: count, Pos: pos}, nil
}

// Depth returns the deepest loop nesting observed so far.
func (o *Optimizer) Depth() int {
	return o.depth
}

// Runs adapts the optimizer to a range-over-func sequence. Iteration ends
// at io.EOF; a bracket error is yielded once, as the final element.
func (o *Optimizer) Runs() iter.Seq2[Run, error] {
	return func(yield func(Run, error) bool) {
		for {
			run, err := o.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Run{}, err)
				return
			}
			if !yield(run, nil) {
				return
			}
		}
	}
}

// CollectRuns drains the optimizer into a slice, stopping at the first error.
func CollectRuns(o *Optimizer) ([]Run, error) {
	var runs []Run
	for run, err := range o.Runs() {
		if err != nil {
			return runs, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Scanner: lazy operation stream over raw source text
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Scanner turns source text into a single-pass sequence of operations.
// Bytes outside the operator alphabet are skipped; they are never errors.
type Scanner struct {
	input   string
	readPos int // offset of the next byte to examine
	line    int
	col     int

	// one element of lookahead
	peeked    bool
	peekOp    Operation
	peekPos   Position
	peekFound bool

	pos Position // position of the last operation returned by Next
}

// NewScanner creates a scanner over input.
func NewScanner(input string) *Scanner {
	return &Scanner{
		input: input,
		line:  1,
		col:   1,
	}
}

// advance finds the next operator byte, updating line and column tracking
// for every byte it passes over.
func (s *Scanner) advance() (Operation, Position, bool) {
	for s.readPos < len(s.input) {
		b := s.input[s.readPos]
		pos := Position{Offset: s.readPos, Line: s.line, Column: s.col}

		s.readPos++
		if b == '\n' {
			s.line++
			s.col = 1
		} else {
			s.col++
		}

		if op, ok := OperationFor(b); ok {
			return op, pos, true
		}
	}
	return 0, Position{Offset: s.readPos, Line: s.line, Column: s.col}, false
}

// Next consumes and returns the next operation. The second result is false
// once the input is exhausted; it stays false on every later call.
func (s *Scanner) Next() (Operation, bool) {
	if s.peeked {
		s.peeked = false
		s.pos = s.peekPos
		return s.peekOp, s.peekFound
	}
	op, pos, ok := s.advance()
	s.pos = pos
	return op, ok
}

// Peek returns the next operation without consuming it.
func (s *Scanner) Peek() (Operation, bool) {
	if !s.peeked {
		s.peekOp, s.peekPos, s.peekFound = s.advance()
		s.peeked = true
	}
	return s.peekOp, s.peekFound
}

// Pos returns the position of the operation most recently returned by Next.
// After exhaustion it is the end-of-input position.
func (s *Scanner) Pos() Position {
	return s.pos
}

// Operations drains the scanner into a slice. Intended for tests and
// tooling; the compile pipeline never materializes the stream.
func (s *Scanner) Operations() []Operation {
	var ops []Operation
	for {
		op, ok := s.Next()
		if !ok {
			return ops
		}
		ops = append(ops, op)
	}
}

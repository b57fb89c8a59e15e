package compiler

import (
	"testing"
)

func TestScannerOperators(t *testing.T) {
	input := `><+-.[]`
	expected := []Operation{
		IncrementPointer,
		DecrementPointer,
		IncrementByte,
		DecrementByte,
		Output,
		JumpIfZero,
		JumpIfNonZero,
	}

	s := NewScanner(input)
	for i, exp := range expected {
		op, ok := s.Next()
		if !ok {
			t.Fatalf("op[%d]: scanner exhausted early", i)
		}
		if op != exp {
			t.Errorf("op[%d] = %v, want %v", i, op, exp)
		}
	}
	if op, ok := s.Next(); ok {
		t.Errorf("expected exhaustion, got %v", op)
	}
}

func TestScannerIgnoresNonOperators(t *testing.T) {
	tests := []string{
		"",
		"hello world",
		"\t\n\r   ",
		"0123456789",
		",", // input is not part of the operator alphabet
		"# comment\n// another",
		"こんにちは",
	}

	for _, input := range tests {
		ops := NewScanner(input).Operations()
		if len(ops) != 0 {
			t.Errorf("Scanner(%q) = %v, want no operations", input, ops)
		}
	}
}

func TestScannerSkipsCommentsBetweenOperators(t *testing.T) {
	ops := NewScanner("add three: +++ then print: .").Operations()
	want := []Operation{IncrementByte, IncrementByte, IncrementByte, Output}
	if len(ops) != len(want) {
		t.Fatalf("got %d ops (%v), want %d", len(ops), ops, len(want))
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("op[%d] = %v, want %v", i, ops[i], want[i])
		}
	}
}

func TestScannerPeekDoesNotConsume(t *testing.T) {
	s := NewScanner("+ >")

	op, ok := s.Peek()
	if !ok || op != IncrementByte {
		t.Fatalf("Peek = %v, %v; want IncrementByte, true", op, ok)
	}
	op, ok = s.Peek()
	if !ok || op != IncrementByte {
		t.Fatalf("second Peek = %v, %v; want IncrementByte, true", op, ok)
	}
	op, ok = s.Next()
	if !ok || op != IncrementByte {
		t.Fatalf("Next after Peek = %v, %v; want IncrementByte, true", op, ok)
	}
	op, ok = s.Next()
	if !ok || op != IncrementPointer {
		t.Fatalf("Next = %v, %v; want IncrementPointer, true", op, ok)
	}
	if _, ok := s.Peek(); ok {
		t.Error("Peek after exhaustion reported an operation")
	}
	if _, ok := s.Next(); ok {
		t.Error("Next after exhaustion reported an operation")
	}
}

func TestScannerPositions(t *testing.T) {
	s := NewScanner("ab+\n  [x\n]")

	tests := []struct {
		op  Operation
		pos Position
	}{
		{IncrementByte, Position{Offset: 2, Line: 1, Column: 3}},
		{JumpIfZero, Position{Offset: 6, Line: 2, Column: 3}},
		{JumpIfNonZero, Position{Offset: 9, Line: 3, Column: 1}},
	}

	for i, tc := range tests {
		op, ok := s.Next()
		if !ok {
			t.Fatalf("op[%d]: scanner exhausted early", i)
		}
		if op != tc.op {
			t.Errorf("op[%d] = %v, want %v", i, op, tc.op)
		}
		if s.Pos() != tc.pos {
			t.Errorf("op[%d] pos = %+v, want %+v", i, s.Pos(), tc.pos)
		}
	}
}

func TestScannerPositionSurvivesPeek(t *testing.T) {
	s := NewScanner("+\n+")
	s.Next()
	s.Peek()
	if got := s.Pos(); got.Line != 1 || got.Column != 1 {
		t.Errorf("Pos after Peek = %v, want 1:1", got)
	}
	s.Next()
	if got := s.Pos(); got.Line != 2 || got.Column != 1 {
		t.Errorf("Pos after Next = %v, want 2:1", got)
	}
}

func TestOperationFor(t *testing.T) {
	for _, op := range Operations() {
		got, ok := OperationFor(op.Symbol())
		if !ok || got != op {
			t.Errorf("OperationFor(%q) = %v, %v; want %v, true", op.Symbol(), got, ok, op)
		}
	}
	for b := 0; b < 256; b++ {
		if _, ok := OperationFor(byte(b)); ok {
			switch byte(b) {
			case '>', '<', '+', '-', '.', '[', ']':
			default:
				t.Errorf("OperationFor(%q) reported an operation", byte(b))
			}
		}
	}
}

func TestOperationString(t *testing.T) {
	if got := JumpIfZero.String(); got != "JumpIfZero" {
		t.Errorf("JumpIfZero.String() = %q", got)
	}
	if got := Operation(42).String(); got != "Operation(42)" {
		t.Errorf("Operation(42).String() = %q", got)
	}
	if len(Operations()) != 7 {
		t.Errorf("len(Operations()) = %d, want 7", len(Operations()))
	}
}

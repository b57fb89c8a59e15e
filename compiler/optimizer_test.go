package compiler

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var ignorePos = cmpopts.IgnoreFields(Run{}, "Pos")

func optimize(src string) ([]Run, error) {
	return CollectRuns(NewOptimizer(NewScanner(src)))
}

func TestOptimizerMergesRuns(t *testing.T) {
	tests := []struct {
		src  string
		want []Run
	}{
		{"+", []Run{{Op: IncrementByte, Arg: 1}}},
		{"+++", []Run{{Op: IncrementByte, Arg: 3}}},
		{"-----", []Run{{Op: DecrementByte, Arg: 5}}},
		{">>", []Run{{Op: IncrementPointer, Arg: 2}}},
		{"<<<<", []Run{{Op: DecrementPointer, Arg: 4}}},
		{"++--", []Run{{Op: IncrementByte, Arg: 2}, {Op: DecrementByte, Arg: 2}}},
		{"+-+", []Run{
			{Op: IncrementByte, Arg: 1},
			{Op: DecrementByte, Arg: 1},
			{Op: IncrementByte, Arg: 1},
		}},
		{"++.++", []Run{
			{Op: IncrementByte, Arg: 2},
			{Op: Output, Arg: 1},
			{Op: IncrementByte, Arg: 2},
		}},
		{"+ + comment +", []Run{{Op: IncrementByte, Arg: 3}}},
		{">><<", []Run{{Op: IncrementPointer, Arg: 2}, {Op: DecrementPointer, Arg: 2}}},
	}

	for _, tc := range tests {
		got, err := optimize(tc.src)
		if err != nil {
			t.Errorf("optimize(%q): unexpected error %v", tc.src, err)
			continue
		}
		if diff := cmp.Diff(tc.want, got, ignorePos); diff != "" {
			t.Errorf("optimize(%q) mismatch (-want +got):\n%s", tc.src, diff)
		}
	}
}

func TestOptimizerRunLengthK(t *testing.T) {
	for _, sym := range []string{">", "<", "+", "-"} {
		for k := 1; k <= 50; k++ {
			got, err := optimize(strings.Repeat(sym, k))
			if err != nil {
				t.Fatalf("optimize(%s x %d): %v", sym, k, err)
			}
			if len(got) != 1 || got[0].Arg != k {
				t.Errorf("optimize(%s x %d) = %v, want one run of %d", sym, k, got, k)
			}
		}
	}
}

func TestOptimizerNeverMergesOutput(t *testing.T) {
	got, err := optimize(".....")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d runs, want 5", len(got))
	}
	for i, r := range got {
		if r.Op != Output || r.Arg != 1 {
			t.Errorf("run[%d] = %v, want Output(1)", i, r)
		}
	}
}

func TestOptimizerNestedLabels(t *testing.T) {
	got, err := optimize("[[]]")
	if err != nil {
		t.Fatal(err)
	}
	want := []Run{
		{Op: JumpIfZero, Arg: 1},
		{Op: JumpIfZero, Arg: 2},
		{Op: JumpIfNonZero, Arg: 2},
		{Op: JumpIfNonZero, Arg: 1},
	}
	if diff := cmp.Diff(want, got, ignorePos); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestOptimizerLabelsStrictlyIncrease(t *testing.T) {
	got, err := optimize("[-[>]<][[+]][.]")
	if err != nil {
		t.Fatal(err)
	}

	last := 0
	opened := make(map[int]bool)
	opens, closes := 0, 0
	for _, r := range got {
		switch r.Op {
		case JumpIfZero:
			opens++
			if r.Arg <= last {
				t.Errorf("label %d not greater than previous %d", r.Arg, last)
			}
			if opened[r.Arg] {
				t.Errorf("label %d allocated twice", r.Arg)
			}
			opened[r.Arg] = true
			last = r.Arg
		case JumpIfNonZero:
			closes++
			if !opened[r.Arg] {
				t.Errorf("close references label %d before its open", r.Arg)
			}
		}
	}
	if opens != closes {
		t.Errorf("opens = %d, closes = %d", opens, closes)
	}
	if opens != 5 {
		t.Errorf("opens = %d, want 5", opens)
	}
}

func TestOptimizerUnbalancedBracket(t *testing.T) {
	o := NewOptimizer(NewScanner("]+++"))

	_, err := o.Next()
	if !errors.Is(err, ErrUnbalancedBracket) {
		t.Fatalf("err = %v, want ErrUnbalancedBracket", err)
	}

	var be *BracketError
	if !errors.As(err, &be) {
		t.Fatalf("err = %T, want *BracketError", err)
	}
	if be.Pos.Offset != 0 {
		t.Errorf("error offset = %d, want 0", be.Pos.Offset)
	}

	// terminal: no further runs are produced
	for i := 0; i < 3; i++ {
		if _, err := o.Next(); !errors.Is(err, ErrUnbalancedBracket) {
			t.Errorf("Next #%d after error = %v, want ErrUnbalancedBracket", i, err)
		}
	}
}

func TestOptimizerUnbalancedAfterRuns(t *testing.T) {
	runs, err := optimize("++]--")
	if !errors.Is(err, ErrUnbalancedBracket) {
		t.Fatalf("err = %v, want ErrUnbalancedBracket", err)
	}
	want := []Run{{Op: IncrementByte, Arg: 2}}
	if diff := cmp.Diff(want, runs, ignorePos); diff != "" {
		t.Errorf("runs before error (-want +got):\n%s", diff)
	}
}

func TestOptimizerUnclosedBracket(t *testing.T) {
	o := NewOptimizer(NewScanner("+[\n[]"))

	var runs []Run
	var err error
	for {
		var r Run
		r, err = o.Next()
		if err != nil {
			break
		}
		runs = append(runs, r)
	}

	if !errors.Is(err, ErrUnclosedBracket) {
		t.Fatalf("err = %v, want ErrUnclosedBracket", err)
	}
	if len(runs) != 4 {
		t.Errorf("got %d runs before error, want 4", len(runs))
	}

	var be *BracketError
	if !errors.As(err, &be) {
		t.Fatalf("err = %T, want *BracketError", err)
	}
	if be.Pos.Line != 1 || be.Pos.Column != 2 {
		t.Errorf("unclosed bracket reported at %v, want 1:2", be.Pos)
	}
	if _, again := o.Next(); !errors.Is(again, ErrUnclosedBracket) {
		t.Errorf("Next after error = %v, want ErrUnclosedBracket", again)
	}
}

func TestOptimizerSingleOpenBracket(t *testing.T) {
	runs, err := optimize("[")
	if !errors.Is(err, ErrUnclosedBracket) {
		t.Fatalf("err = %v, want ErrUnclosedBracket", err)
	}
	want := []Run{{Op: JumpIfZero, Arg: 1}}
	if diff := cmp.Diff(want, runs, ignorePos); diff != "" {
		t.Errorf("runs (-want +got):\n%s", diff)
	}
}

func TestOptimizerEOF(t *testing.T) {
	o := NewOptimizer(NewScanner("no operators here"))
	for i := 0; i < 2; i++ {
		if _, err := o.Next(); err != io.EOF {
			t.Errorf("Next #%d = %v, want io.EOF", i, err)
		}
	}
}

func TestOptimizerRunsStopsEarly(t *testing.T) {
	o := NewOptimizer(NewScanner("+.>.<"))
	n := 0
	for range o.Runs() {
		n++
		if n == 2 {
			break
		}
	}
	r, err := o.Next()
	if err != nil {
		t.Fatal(err)
	}
	if r.Op != IncrementPointer {
		t.Errorf("next run after break = %v, want IncrementPointer", r)
	}
}

func TestOptimizerDepth(t *testing.T) {
	o := NewOptimizer(NewScanner("[[[]][]]"))
	if _, err := CollectRuns(o); err != nil {
		t.Fatal(err)
	}
	if o.Depth() != 3 {
		t.Errorf("Depth = %d, want 3", o.Depth())
	}
}

func TestOptimizerRunPosition(t *testing.T) {
	runs, err := optimize("x\n  +++.")
	if err != nil {
		t.Fatal(err)
	}
	if runs[0].Pos != (Position{Offset: 4, Line: 2, Column: 3}) {
		t.Errorf("run pos = %+v", runs[0].Pos)
	}
	if runs[1].Pos.Column != 6 {
		t.Errorf("output pos column = %d, want 6", runs[1].Pos.Column)
	}
}

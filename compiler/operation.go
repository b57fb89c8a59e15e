package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Operations: the abstract actions behind each recognized source byte
// ---------------------------------------------------------------------------

// Operation is one of the seven actions a source program can express.
type Operation uint8

const (
	IncrementPointer Operation = iota // >
	DecrementPointer                  // <
	IncrementByte                     // +
	DecrementByte                     // -
	Output                            // .
	JumpIfZero                        // [
	JumpIfNonZero                     // ]

	numOperations = iota
)

var operationNames = [numOperations]string{
	IncrementPointer: "IncrementPointer",
	DecrementPointer: "DecrementPointer",
	IncrementByte:    "IncrementByte",
	DecrementByte:    "DecrementByte",
	Output:           "Output",
	JumpIfZero:       "JumpIfZero",
	JumpIfNonZero:    "JumpIfNonZero",
}

var operationSymbols = [numOperations]byte{
	IncrementPointer: '>',
	DecrementPointer: '<',
	IncrementByte:    '+',
	DecrementByte:    '-',
	Output:           '.',
	JumpIfZero:       '[',
	JumpIfNonZero:    ']',
}

func (op Operation) String() string {
	if int(op) < len(operationNames) {
		return operationNames[op]
	}
	return fmt.Sprintf("Operation(%d)", op)
}

// Symbol returns the source byte that produces op.
func (op Operation) Symbol() byte {
	if int(op) < len(operationSymbols) {
		return operationSymbols[op]
	}
	return 0
}

// Mergeable reports whether consecutive occurrences of op collapse into a
// single run with a repetition count.
func (op Operation) Mergeable() bool {
	switch op {
	case IncrementPointer, DecrementPointer, IncrementByte, DecrementByte:
		return true
	}
	return false
}

// Operations returns every operation in declaration order.
func Operations() []Operation {
	ops := make([]Operation, numOperations)
	for i := range ops {
		ops[i] = Operation(i)
	}
	return ops
}

// OperationFor maps a source byte to its operation. Any byte outside the
// operator alphabet reports false and is skipped by the scanner.
func OperationFor(b byte) (Operation, bool) {
	switch b {
	case '>':
		return IncrementPointer, true
	case '<':
		return DecrementPointer, true
	case '+':
		return IncrementByte, true
	case '-':
		return DecrementByte, true
	case '.':
		return Output, true
	case '[':
		return JumpIfZero, true
	case ']':
		return JumpIfNonZero, true
	}
	return 0, false
}

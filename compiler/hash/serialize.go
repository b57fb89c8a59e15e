package hash

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/bfqbe/compiler"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of an optimized program.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Options: TagOptions, uint64 tape size, then entry, data and putchar
//     symbols as strings
//   - Each run: operation tag + uint64 big-endian argument
//   - Last byte: TagEnd
//   - Strings: uint32 big-endian length + UTF-8 bytes
//
// Only runs are serialized, so comment bytes and source layout never affect
// the result.
// ---------------------------------------------------------------------------

var runTags = map[compiler.Operation]byte{
	compiler.IncrementPointer: TagIncrementPointer,
	compiler.DecrementPointer: TagDecrementPointer,
	compiler.IncrementByte:    TagIncrementByte,
	compiler.DecrementByte:    TagDecrementByte,
	compiler.Output:           TagOutput,
	compiler.JumpIfZero:       TagJumpIfZero,
	compiler.JumpIfNonZero:    TagJumpIfNonZero,
}

// Serialize produces a deterministic byte serialization of the program
// compiled from src with opts. Bracket errors are returned unchanged.
func Serialize(src string, opts compiler.Options) ([]byte, error) {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.writeOptions(opts.WithDefaults())

	o := compiler.NewOptimizer(compiler.NewScanner(src))
	for run, err := range o.Runs() {
		if err != nil {
			return nil, err
		}
		if err := s.writeRun(run); err != nil {
			return nil, err
		}
	}

	s.writeByte(TagEnd)
	return s.buf, nil
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	s.buf = binary.BigEndian.AppendUint32(s.buf, v)
}

func (s *serializer) writeUint64(v uint64) {
	s.buf = binary.BigEndian.AppendUint64(s.buf, v)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeOptions(opts compiler.Options) {
	s.writeByte(TagOptions)
	s.writeUint64(uint64(opts.TapeSize))
	s.writeString(opts.Entry)
	s.writeString(opts.Data)
	s.writeString(opts.PutChar)
}

func (s *serializer) writeRun(run compiler.Run) error {
	tag, ok := runTags[run.Op]
	if !ok {
		return fmt.Errorf("hash: unknown operation %s", run.Op)
	}
	s.writeByte(tag)
	s.writeUint64(uint64(run.Arg))
	return nil
}

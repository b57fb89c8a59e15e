package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the program serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// every cached artifact keyed by a previously computed hash.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Generator options
	TagOptions byte = 0x01

	// Runs, one tag per operation
	TagIncrementPointer byte = 0x10
	TagDecrementPointer byte = 0x11
	TagIncrementByte    byte = 0x12
	TagDecrementByte    byte = 0x13
	TagOutput           byte = 0x14
	TagJumpIfZero       byte = 0x15
	TagJumpIfNonZero    byte = 0x16

	// Stream terminator
	TagEnd byte = 0xFD
)

// allTags lists every assigned tag for uniqueness testing.
var allTags = []byte{
	TagOptions,
	TagIncrementPointer, TagDecrementPointer,
	TagIncrementByte, TagDecrementByte,
	TagOutput, TagJumpIfZero, TagJumpIfNonZero,
	TagEnd,
}

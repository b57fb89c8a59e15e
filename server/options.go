package server

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/chazu/bfqbe/compiler"
	"github.com/chazu/bfqbe/manifest"
)

// Request headers carrying generator options. gRPC clients send the same
// names lowercased as metadata. A missing header leaves the server's
// option in place.
const (
	TapeSizeHeader = "Bfqbe-Tape-Size"
	EntryHeader    = "Bfqbe-Entry"
	DataHeader     = "Bfqbe-Data"
	PutCharHeader  = "Bfqbe-Putchar"
)

// ErrInvalidOptions is returned when a request carries options that fail
// validation.
var ErrInvalidOptions = errors.New("invalid options")

// encodeOptions calls set for every non-zero field of opts.
func encodeOptions(opts compiler.Options, set func(key, value string)) {
	if opts.TapeSize != 0 {
		set(TapeSizeHeader, strconv.Itoa(opts.TapeSize))
	}
	if opts.Entry != "" {
		set(EntryHeader, opts.Entry)
	}
	if opts.Data != "" {
		set(DataHeader, opts.Data)
	}
	if opts.PutChar != "" {
		set(PutCharHeader, opts.PutChar)
	}
}

// decodeOptions overlays the options found through get onto base and
// validates the result.
func decodeOptions(base compiler.Options, get func(key string) string) (compiler.Options, error) {
	opts := base
	if v := get(TapeSizeHeader); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return base, fmt.Errorf("%w: %s %q", ErrInvalidOptions, TapeSizeHeader, v)
		}
		opts.TapeSize = n
	}
	if v := get(EntryHeader); v != "" {
		opts.Entry = v
	}
	if v := get(DataHeader); v != "" {
		opts.Data = v
	}
	if v := get(PutCharHeader); v != "" {
		opts.PutChar = v
	}

	if opts == base {
		return opts, nil
	}
	if err := manifest.ValidateOptions(opts); err != nil {
		return base, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return opts, nil
}

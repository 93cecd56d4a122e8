package codec

import (
	"errors"
	"fmt"
)

// ErrCodec matches every error reported by a codec, see Error.
var ErrCodec = errors.New("codec failure")

// Error describes a failed codec operation at one quality level.
type Error struct {
	// Op is the failing step: "encode", "decode", "read" or "shape"
	Op string

	// Quality is the quality parameter of the failed call
	Quality int

	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec %s failed at q=%d: %v", e.Op, e.Quality, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCodec) true for every *Error.
func (e *Error) Is(target error) bool { return target == ErrCodec }

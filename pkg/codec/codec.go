// Package codec defines the lossy codec used by the rate–distortion sweep and
// provides two implementations: BPG, backed by the external bpgenc/bpgdec
// programs, and Mock, a deterministic in-memory quantiser for tests.
package codec

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Result is the outcome of a compress/decompress round trip.
type Result struct {
	// Decoded has exactly the shape of the codec input
	Decoded *mat.Dense

	// EncodedSize is the compressed stream size in bytes
	EncodedSize int64

	// BitsPerPixel is EncodedSize*8 divided by the pixel count
	BitsPerPixel float64
}

// Codec compresses single-channel float images at an integer quality level.
// Failures are reported as *Error.
type Codec interface {
	// CompressDecompress encodes img at quality q and decodes it again.
	CompressDecompress(ctx context.Context, img mat.Matrix, q int) (*Result, error)

	// SaveToFile writes the compressed stream of img at quality q to path and
	// returns its size in bytes.
	SaveToFile(ctx context.Context, img mat.Matrix, q int, path string) (int64, error)

	// Name identifies the codec in logs and reports.
	Name() string
}

func bitsPerPixel(size int64, rows, cols int) float64 {
	return float64(size*8) / float64(rows*cols)
}

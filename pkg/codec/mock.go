package codec

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"math/bits"
	"os"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
)

// mockMagic starts every stream written by Mock.
var mockMagic = [4]byte{'V', 'Q', 'M', 'K'}

// mockHeaderSize is magic + quality + rows + cols + lo + step.
const mockHeaderSize = 4 + 2 + 4 + 4 + 8 + 8

// ErrSimulated is the cause reported by Mock for qualities listed in FailOn.
var ErrSimulated = errors.New("simulated codec failure")

// Mock is a deterministic in-memory codec. It quantises uniformly with a step
// of (max-min)*q/255, so a higher q means coarser output and a smaller stream,
// and bit-packs the level indices. It is safe for concurrent use.
type Mock struct {
	// FailOn lists the qualities that fail with ErrSimulated
	FailOn map[int]bool

	// Delay is waited before each call returns, honouring cancellation
	Delay time.Duration

	mu    sync.Mutex
	calls []int
}

// NewMock returns a mock codec failing at the given qualities.
func NewMock(failOn ...int) *Mock {
	m := &Mock{FailOn: make(map[int]bool, len(failOn))}
	for _, q := range failOn {
		m.FailOn[q] = true
	}
	return m
}

// Name implements Codec.
func (m *Mock) Name() string { return "mock" }

// Calls returns the qualities the codec was called with, in call order.
func (m *Mock) Calls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.calls))
	copy(out, m.calls)
	return out
}

// CompressDecompress implements Codec.
func (m *Mock) CompressDecompress(ctx context.Context, img mat.Matrix, q int) (*Result, error) {
	if err := m.begin(ctx, q); err != nil {
		return nil, err
	}
	rows, cols := img.Dims()
	lo, step, levels := mockQuantiser(img, q)

	decoded := mat.NewDense(rows, cols, nil)
	decoded.Apply(func(_, _ int, v float64) float64 {
		if step == 0 {
			return v
		}
		return lo + float64(mockIndex(v, lo, step, levels))*step
	}, img)

	size := mockStreamSize(rows, cols, step, levels)
	return &Result{
		Decoded:      decoded,
		EncodedSize:  size,
		BitsPerPixel: bitsPerPixel(size, rows, cols),
	}, nil
}

// SaveToFile implements Codec. The stream holds a fixed header followed by the
// bit-packed level indices; a lossless pass-through (q <= 0) stores raw float64s.
func (m *Mock) SaveToFile(ctx context.Context, img mat.Matrix, q int, path string) (int64, error) {
	if err := m.begin(ctx, q); err != nil {
		return 0, err
	}
	rows, cols := img.Dims()
	lo, step, levels := mockQuantiser(img, q)

	buf := make([]byte, 0, mockStreamSize(rows, cols, step, levels))
	buf = append(buf, mockMagic[:]...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(q))
	buf = binary.BigEndian.AppendUint32(buf, uint32(rows))
	buf = binary.BigEndian.AppendUint32(buf, uint32(cols))
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(lo))
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(step))

	if step == 0 {
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(img.At(i, j)))
			}
		}
	} else {
		w := &bitWriter{buf: buf}
		width := levelBits(levels)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				w.write(uint64(mockIndex(img.At(i, j), lo, step, levels)), width)
			}
		}
		buf = w.flush()
	}

	if err := os.WriteFile(path, buf, 0644); err != nil {
		return 0, &Error{Op: "encode", Quality: q, Err: err}
	}
	return int64(len(buf)), nil
}

func (m *Mock) begin(ctx context.Context, q int) error {
	m.mu.Lock()
	m.calls = append(m.calls, q)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return &Error{Op: "encode", Quality: q, Err: err}
	}
	if m.FailOn[q] {
		return &Error{Op: "encode", Quality: q, Err: ErrSimulated}
	}
	return nil
}

// mockQuantiser returns the quantiser origin, step and number of levels for img at q.
// A zero step means the data passes through untouched.
func mockQuantiser(img mat.Matrix, q int) (lo, step float64, levels int) {
	lo, hi := mat.Min(img), mat.Max(img)
	if q <= 0 || hi == lo {
		return lo, 0, 1
	}
	step = (hi - lo) * float64(q) / 255
	levels = int(math.Round((hi-lo)/step)) + 1
	return lo, step, levels
}

func mockIndex(v, lo, step float64, levels int) int {
	idx := int(math.Round((v - lo) / step))
	if idx < 0 {
		return 0
	}
	if idx >= levels {
		return levels - 1
	}
	return idx
}

func levelBits(levels int) int {
	if levels <= 1 {
		return 0
	}
	return bits.Len(uint(levels - 1))
}

func mockStreamSize(rows, cols int, step float64, levels int) int64 {
	n := int64(rows * cols)
	if step == 0 {
		return mockHeaderSize + n*8
	}
	return mockHeaderSize + (n*int64(levelBits(levels))+7)/8
}

// bitWriter packs values MSB first.
type bitWriter struct {
	buf   []byte
	acc   uint64
	nbits int
}

func (w *bitWriter) write(v uint64, width int) {
	for width > 0 {
		take := width
		if free := 64 - w.nbits; take > free {
			take = free
		}
		shift := width - take
		w.acc = w.acc<<uint(take) | (v>>uint(shift))&(1<<uint(take)-1)
		w.nbits += take
		width -= take
		for w.nbits >= 8 {
			w.nbits -= 8
			w.buf = append(w.buf, byte(w.acc>>uint(w.nbits)))
		}
	}
}

func (w *bitWriter) flush() []byte {
	if w.nbits > 0 {
		w.buf = append(w.buf, byte(w.acc<<uint(8-w.nbits)))
		w.nbits = 0
	}
	return w.buf
}

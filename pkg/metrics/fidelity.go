// Package metrics implements full-reference fidelity metrics for single-channel
// images: MSE, PSNR, SSIM, the DCT-domain PSNR-HVS / PSNR-HVS-M pair and a
// relative error map.
//
// All functions are pure. Reference and distorted images must have the same
// shape; a mismatch is reported as ErrShapeMismatch and never truncated.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MaxPSNR is reported by every PSNR-family metric when the mean squared error is zero.
const MaxPSNR = 100.0

// checkShapes verifies that a and b have the same non-empty shape.
func checkShapes(a, b mat.Matrix) (rows, cols int, err error) {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra != rb || ca != cb {
		return 0, 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, ra, ca, rb, cb)
	}
	if ra == 0 || ca == 0 {
		return 0, 0, fmt.Errorf("%w: empty image", ErrMetric)
	}
	return ra, ca, nil
}

// values returns the samples of m in row-major order. Dense matrices with a
// packed layout are returned without copying and must not be modified.
func values(m mat.Matrix) []float64 {
	if d, ok := m.(*mat.Dense); ok {
		raw := d.RawMatrix()
		if raw.Stride == raw.Cols {
			return raw.Data[:raw.Rows*raw.Cols]
		}
	}
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

// DataRange returns dataRange when positive, otherwise max(ref) - min(ref).
func DataRange(ref mat.Matrix, dataRange float64) float64 {
	if dataRange > 0 {
		return dataRange
	}
	v := values(ref)
	return floats.Max(v) - floats.Min(v)
}

// MSE returns the mean squared error between a and b.
func MSE(a, b mat.Matrix) (float64, error) {
	if _, _, err := checkShapes(a, b); err != nil {
		return 0, err
	}
	av, bv := values(a), values(b)
	sum := 0.0
	for i := range av {
		d := av[i] - bv[i]
		sum += d * d
	}
	return sum / float64(len(av)), nil
}

// psnrFromMSE converts a mean squared error to decibels for the given peak.
func psnrFromMSE(mse, peak float64) float64 {
	if mse == 0 {
		return MaxPSNR
	}
	return 10 * math.Log10(peak*peak/mse)
}

// PSNR returns the peak signal-to-noise ratio of dist against ref in dB.
// A non-positive dataRange defaults to the reference's dynamic range.
// Identical images report MaxPSNR.
func PSNR(ref, dist mat.Matrix, dataRange float64) (float64, error) {
	mse, err := MSE(ref, dist)
	if err != nil {
		return 0, err
	}
	if mse == 0 {
		return MaxPSNR, nil
	}
	peak := DataRange(ref, dataRange)
	if peak <= 0 {
		return 0, fmt.Errorf("%w: psnr needs a positive data range", ErrMetric)
	}
	return psnrFromMSE(mse, peak), nil
}

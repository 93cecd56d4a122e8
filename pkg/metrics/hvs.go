package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// BlockSize is the edge length of the DCT blocks used by PSNR-HVS.
const BlockSize = 8

// DefaultMaskingK is the empirical contrast masking gain of PSNR-HVS-M.
const DefaultMaskingK = 0.2

// csfTable weights DCT coefficients by visual contrast sensitivity.
// Rows are vertical frequency, columns horizontal frequency.
var csfTable = [BlockSize][BlockSize]float64{
	{1.62, 2.72, 2.37, 1.48, 0.99, 0.70, 0.52, 0.40},
	{2.65, 3.42, 2.68, 1.57, 1.05, 0.73, 0.54, 0.41},
	{2.31, 2.76, 2.08, 1.25, 0.84, 0.59, 0.44, 0.33},
	{1.48, 1.63, 1.25, 0.78, 0.53, 0.38, 0.29, 0.22},
	{0.98, 1.05, 0.81, 0.52, 0.36, 0.26, 0.20, 0.15},
	{0.69, 0.72, 0.56, 0.37, 0.26, 0.19, 0.14, 0.11},
	{0.51, 0.54, 0.42, 0.28, 0.20, 0.14, 0.11, 0.08},
	{0.39, 0.41, 0.32, 0.21, 0.15, 0.11, 0.08, 0.06},
}

// dctBasis is the orthonormal DCT-II matrix C, so that C*B*C^T is the 2-D DCT of block B.
var dctBasis = newDCTBasis(BlockSize)

func newDCTBasis(n int) *mat.Dense {
	c := mat.NewDense(n, n, nil)
	scale0 := math.Sqrt(1.0 / float64(n))
	scaleK := math.Sqrt(2.0 / float64(n))
	for k := 0; k < n; k++ {
		scale := scaleK
		if k == 0 {
			scale = scale0
		}
		for i := 0; i < n; i++ {
			c.Set(k, i, scale*math.Cos(math.Pi*float64(k)*float64(2*i+1)/(2.0*float64(n))))
		}
	}
	return c
}

// CSF returns a copy of the 8x8 contrast sensitivity weighting table.
func CSF() *mat.Dense {
	m := mat.NewDense(BlockSize, BlockSize, nil)
	for u := 0; u < BlockSize; u++ {
		for v := 0; v < BlockSize; v++ {
			m.Set(u, v, csfTable[u][v])
		}
	}
	return m
}

// BlockDCT returns the orthonormal 2-D type-II DCT of an 8x8 block.
func BlockDCT(block mat.Matrix) *mat.Dense {
	var tmp, out mat.Dense
	blockDCTInto(&out, &tmp, block)
	return &out
}

// blockDCTInto stores the 2-D DCT of block in dst, using tmp as scratch.
func blockDCTInto(dst, tmp *mat.Dense, block mat.Matrix) {
	tmp.Reset()
	tmp.Mul(dctBasis, block)
	dst.Reset()
	dst.Mul(tmp, dctBasis.T())
}

// PSNRHVS returns PSNR-HVS and PSNR-HVS-M of dist against ref.
//
// Both images are normalised to [0,1] with the reference minimum and
// dataRange (non-positive means the reference's dynamic range), cropped from
// the top-left to a multiple of 8 in each dimension and split into 8x8 blocks.
// The CSF-weighted DCT coefficient differences give PSNR-HVS; dividing them by
// 1 + maskK*|CSF-weighted reference coefficient| first gives PSNR-HVS-M.
// Peak is 1 and a zero error reports MaxPSNR.
func PSNRHVS(ref, dist mat.Matrix, dataRange, maskK float64) (hvs, hvsm float64, err error) {
	rows, cols, err := checkShapes(ref, dist)
	if err != nil {
		return 0, 0, err
	}
	peak := DataRange(ref, dataRange)
	if peak <= 0 {
		return 0, 0, fmt.Errorf("%w: psnr-hvs needs a positive data range", ErrMetric)
	}
	h := rows / BlockSize * BlockSize
	w := cols / BlockSize * BlockSize
	if h == 0 || w == 0 {
		return 0, 0, fmt.Errorf("%w: psnr-hvs needs at least %dx%d pixels, got %dx%d",
			ErrMetric, BlockSize, BlockSize, rows, cols)
	}

	lo := mat.Min(ref)
	blockA := mat.NewDense(BlockSize, BlockSize, nil)
	blockB := mat.NewDense(BlockSize, BlockSize, nil)
	var tmp, coefA, coefB mat.Dense

	var sum, sumMasked float64
	for by := 0; by < h; by += BlockSize {
		for bx := 0; bx < w; bx += BlockSize {
			for i := 0; i < BlockSize; i++ {
				for j := 0; j < BlockSize; j++ {
					blockA.Set(i, j, (ref.At(by+i, bx+j)-lo)/peak)
					blockB.Set(i, j, (dist.At(by+i, bx+j)-lo)/peak)
				}
			}
			blockDCTInto(&coefA, &tmp, blockA)
			blockDCTInto(&coefB, &tmp, blockB)

			for u := 0; u < BlockSize; u++ {
				for v := 0; v < BlockSize; v++ {
					wa := coefA.At(u, v) * csfTable[u][v]
					wb := coefB.At(u, v) * csfTable[u][v]
					d := wa - wb
					sum += d * d

					dm := d / (1 + maskK*math.Abs(wa))
					sumMasked += dm * dm
				}
			}
		}
	}

	n := float64(h * w)
	return psnrFromMSE(sum/n, 1), psnrFromMSE(sumMasked/n, 1), nil
}

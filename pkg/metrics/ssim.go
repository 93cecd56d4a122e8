package metrics

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// SSIM constants. The window is a uniform 7x7 box and local variances use the
// sample (N-1) normalisation.
const (
	SSIMWindow = 7
	ssimK1     = 0.01
	ssimK2     = 0.03
)

// SSIM returns the mean structural similarity index of dist against ref.
// Only pixels whose window lies entirely inside the image contribute.
// A non-positive dataRange defaults to the reference's dynamic range.
// Identical images report 1, even when constant.
func SSIM(ref, dist mat.Matrix, dataRange float64) (float64, error) {
	rows, cols, err := checkShapes(ref, dist)
	if err != nil {
		return 0, err
	}
	if rows < SSIMWindow || cols < SSIMWindow {
		return 0, fmt.Errorf("%w: ssim needs at least %dx%d pixels, got %dx%d",
			ErrMetric, SSIMWindow, SSIMWindow, rows, cols)
	}
	x, y := values(ref), values(dist)
	if floats.Equal(x, y) {
		return 1, nil
	}
	peak := DataRange(ref, dataRange)
	if peak <= 0 {
		return 0, fmt.Errorf("%w: ssim needs a positive data range", ErrMetric)
	}

	n := len(x)
	xx := make([]float64, n)
	yy := make([]float64, n)
	xy := make([]float64, n)
	for i := 0; i < n; i++ {
		xx[i] = x[i] * x[i]
		yy[i] = y[i] * y[i]
		xy[i] = x[i] * y[i]
	}

	ux := boxMean(x, rows, cols)
	uy := boxMean(y, rows, cols)
	uxx := boxMean(xx, rows, cols)
	uyy := boxMean(yy, rows, cols)
	uxy := boxMean(xy, rows, cols)

	np := float64(SSIMWindow * SSIMWindow)
	covNorm := np / (np - 1)
	c1 := (ssimK1 * peak) * (ssimK1 * peak)
	c2 := (ssimK2 * peak) * (ssimK2 * peak)

	s := make([]float64, len(ux))
	for i := range s {
		vx := covNorm * (uxx[i] - ux[i]*ux[i])
		vy := covNorm * (uyy[i] - uy[i]*uy[i])
		vxy := covNorm * (uxy[i] - ux[i]*uy[i])

		num := (2*ux[i]*uy[i] + c1) * (2*vxy + c2)
		den := (ux[i]*ux[i] + uy[i]*uy[i] + c1) * (vx + vy + c2)
		s[i] = num / den
	}
	return stat.Mean(s, nil), nil
}

// boxMean returns the SSIMWindow x SSIMWindow mean of data around every pixel
// whose window fits in the image, in row-major order over the valid region.
// The filter is applied separably: rows first, then columns.
func boxMean(data []float64, rows, cols int) []float64 {
	w := SSIMWindow
	outR, outC := rows-w+1, cols-w+1

	horiz := make([]float64, rows*outC)
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		sum := 0.0
		for j := 0; j < w; j++ {
			sum += row[j]
		}
		horiz[i*outC] = sum
		for j := 1; j < outC; j++ {
			sum += row[j+w-1] - row[j-1]
			horiz[i*outC+j] = sum
		}
	}

	area := float64(w * w)
	out := make([]float64, outR*outC)
	for j := 0; j < outC; j++ {
		for i := 0; i < outR; i++ {
			sum := 0.0
			for k := 0; k < w; k++ {
				sum += horiz[(i+k)*outC+j]
			}
			out[i*outC+j] = sum / area
		}
	}
	return out
}

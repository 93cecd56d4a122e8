// Package noise estimates the standard deviation of the (approximately
// additive) noise left in a log-domain image after the variance-stabilizing
// transform.
package noise

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrTooSmall is returned for images without enough pixels to estimate from.
var ErrTooSmall = errors.New("image too small for noise estimation")

// ExactSigma returns the population standard deviation of logNoised - logClean.
// It needs the clean reference and is exact up to the estimator's bias.
func ExactSigma(logNoised, logClean mat.Matrix) (float64, error) {
	rn, cn := logNoised.Dims()
	rc, cc := logClean.Dims()
	if rn != rc || cn != cc {
		return 0, fmt.Errorf("noise: shapes differ: %dx%d vs %dx%d", rn, cn, rc, cc)
	}
	if rn*cn == 0 {
		return 0, ErrTooSmall
	}
	diff := make([]float64, 0, rn*cn)
	for i := 0; i < rn; i++ {
		for j := 0; j < cn; j++ {
			diff = append(diff, logNoised.At(i, j)-logClean.At(i, j))
		}
	}
	_, std := stat.PopMeanStdDev(diff, nil)
	return std, nil
}

// laplacian isolates high-frequency content (noise plus edges).
var laplacian = [3][3]float64{
	{0, -1, 0},
	{-1, 4, -1},
	{0, -1, 0},
}

// Estimator estimates noise without a reference, from the median absolute
// deviation of the Laplacian response. The constants are empirical.
type Estimator struct {
	// MADScale converts a MAD to a Gaussian standard deviation
	MADScale float64

	// KernelDivisor is the Laplacian gain correction; the MAD is divided by its square root
	KernelDivisor float64

	// Calibration rescales the estimate to the log-domain VST output
	Calibration float64
}

// DefaultEstimator returns the estimator with its tuned constants.
func DefaultEstimator() Estimator {
	return Estimator{MADScale: 1.4826, KernelDivisor: 20, Calibration: 4.5}
}

// BlindSigma estimates the noise standard deviation of logImg.
func (e Estimator) BlindSigma(logImg mat.Matrix) (float64, error) {
	rows, cols := logImg.Dims()
	if rows < 2 || cols < 2 {
		return 0, ErrTooSmall
	}
	if e.KernelDivisor <= 0 {
		return 0, fmt.Errorf("noise: kernel divisor must be positive, got %v", e.KernelDivisor)
	}

	high := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			sum := 0.0
			for di := -1; di <= 1; di++ {
				for dj := -1; dj <= 1; dj++ {
					k := laplacian[di+1][dj+1]
					if k == 0 {
						continue
					}
					sum += k * logImg.At(reflect(i-di, rows), reflect(j-dj, cols))
				}
			}
			high = append(high, sum)
		}
	}

	med := median(high)
	dev := make([]float64, len(high))
	for i, v := range high {
		dev[i] = math.Abs(v - med)
	}
	mad := median(dev)

	return e.MADScale * mad / math.Sqrt(e.KernelDivisor) * e.Calibration, nil
}

// reflect maps an out-of-range index back into [0, n) by mirroring about the
// edge, repeating the edge sample (d c b a | a b c d).
func reflect(i, n int) int {
	if i < 0 {
		return -i - 1
	}
	if i >= n {
		return 2*n - i - 1
	}
	return i
}

// median calculates the median value of a slice of float64 values
func median(values []float64) float64 {
	valuesCopy := make([]float64, len(values))
	copy(valuesCopy, values)
	sort.Float64s(valuesCopy)

	n := len(valuesCopy)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (valuesCopy[n/2-1] + valuesCopy[n/2]) / 2
	}
	return valuesCopy[n/2]
}

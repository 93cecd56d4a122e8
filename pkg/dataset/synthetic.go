package dataset

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Synthetic pattern geometry in normalised [0,1] coordinates.
const (
	discCentre   = 0.6
	discRadiusSq = 0.05
	discBoost    = 150.0
	shadowCentre = 0.3
	shadowHalf   = 0.1
	shadowLevel  = 1.0
)

// Synthetic returns a clean test pattern and a copy corrupted by
// multiplicative gamma speckle with unit mean and relative standard deviation
// noiseLevel. The pattern is a diagonal gradient 100(x+y)+50 with a bright
// disc and a near-black square. noiseLevel <= 0 gives no speckle.
func Synthetic(noiseLevel float64, rows, cols int, seed uint64) (clean, noised *mat.Dense, err error) {
	if rows < 2 || cols < 2 {
		return nil, nil, fmt.Errorf("%w: synthetic image must be at least 2x2, got %dx%d", ErrData, rows, cols)
	}
	if math.IsNaN(noiseLevel) || math.IsInf(noiseLevel, 0) {
		return nil, nil, fmt.Errorf("%w: noise level must be finite", ErrData)
	}

	clean = mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		y := float64(i) / float64(rows-1)
		for j := 0; j < cols; j++ {
			x := float64(j) / float64(cols-1)
			v := 100*(x+y) + 50
			if (x-discCentre)*(x-discCentre)+(y-discCentre)*(y-discCentre) < discRadiusSq {
				v += discBoost
			}
			if math.Abs(x-shadowCentre) < shadowHalf && math.Abs(y-shadowCentre) < shadowHalf {
				v = shadowLevel
			}
			clean.Set(i, j, v)
		}
	}

	noised = mat.DenseCopyOf(clean)
	if noiseLevel <= 0 {
		return clean, noised, nil
	}

	k := 1 / (noiseLevel * noiseLevel)
	speckle := distuv.Gamma{Alpha: k, Beta: k, Src: rand.NewSource(seed)}
	noised.Apply(func(_, _ int, v float64) float64 {
		return v * speckle.Rand()
	}, noised)
	return clean, noised, nil
}

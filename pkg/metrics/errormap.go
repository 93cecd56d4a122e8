package metrics

import (
	"gonum.org/v1/gonum/mat"
)

// RelativeErrorEpsilon replaces exact-zero reference pixels in RelativeErrorMap.
const RelativeErrorEpsilon = 1e-6

// RelativeErrorMap returns the per-pixel relative error of dist against ref
// mapped to [0,255]:
//
//	clip(128 + 128*(dist-ref)/ref, 0, 255)
//
// 128 means no error, higher values an excess and lower values a deficit.
func RelativeErrorMap(ref, dist mat.Matrix) (*mat.Dense, error) {
	rows, cols, err := checkShapes(ref, dist)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(i, j int, v float64) float64 {
		r := ref.At(i, j)
		if r == 0 {
			r = RelativeErrorEpsilon
		}
		delta := 128 + 128*(v-ref.At(i, j))/r
		switch {
		case delta < 0:
			return 0
		case delta > 255:
			return 255
		}
		return delta
	}, dist)
	return out, nil
}

// Package vst implements the logarithmic variance-stabilizing transform applied
// to multiplicative-noise intensity images before compression.
//
// The forward mapping is
//
//	y = a * log_b(max(x, epsilon))
//
// and the inverse is x = b^(y/a). Inputs below epsilon are clamped before the
// logarithm, so they are not invertible: a clamped pixel comes back as epsilon.
package vst

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidParams is returned when VST parameters do not define a usable mapping.
var ErrInvalidParams = errors.New("invalid VST parameters")

// Default parameters, tuned for radar intensity data.
const (
	DefaultA       = 8.39
	DefaultB       = 1.2
	DefaultEpsilon = 1.0
)

// Params are the immutable parameters of the transform.
type Params struct {
	a       float64
	b       float64
	epsilon float64
	lnB     float64
}

// NewParams validates and returns transform parameters.
// a must be positive, b greater than one and epsilon positive.
func NewParams(a, b, epsilon float64) (Params, error) {
	for _, v := range []float64{a, b, epsilon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Params{}, fmt.Errorf("%w: non-finite value in (a=%v, b=%v, epsilon=%v)", ErrInvalidParams, a, b, epsilon)
		}
	}
	if a <= 0 {
		return Params{}, fmt.Errorf("%w: a must be positive, got %v", ErrInvalidParams, a)
	}
	if b <= 1 {
		return Params{}, fmt.Errorf("%w: b must be greater than 1, got %v", ErrInvalidParams, b)
	}
	if epsilon <= 0 {
		return Params{}, fmt.Errorf("%w: epsilon must be positive, got %v", ErrInvalidParams, epsilon)
	}
	return Params{a: a, b: b, epsilon: epsilon, lnB: math.Log(b)}, nil
}

// DefaultParams returns the default parameters (a=8.39, b=1.2, epsilon=1).
func DefaultParams() Params {
	p, _ := NewParams(DefaultA, DefaultB, DefaultEpsilon)
	return p
}

// A returns the scale factor.
func (p Params) A() float64 { return p.a }

// B returns the logarithm base.
func (p Params) B() float64 { return p.b }

// Epsilon returns the clamp threshold.
func (p Params) Epsilon() float64 { return p.epsilon }

// Validate reports whether p was built through NewParams.
func (p Params) Validate() error {
	if p.lnB == 0 {
		return fmt.Errorf("%w: zero-value parameters", ErrInvalidParams)
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("VST(a=%g, b=%g, epsilon=%g)", p.a, p.b, p.epsilon)
}

// ForwardValue maps one intensity to the log domain.
func (p Params) ForwardValue(x float64) float64 {
	if x < p.epsilon || math.IsNaN(x) {
		x = p.epsilon
	}
	return p.a * (math.Log(x) / p.lnB)
}

// InverseValue maps one log-domain value back to intensity.
func (p Params) InverseValue(y float64) float64 {
	return math.Pow(p.b, y/p.a)
}

// Forward returns the transformed copy of img. img is not modified.
func Forward(img mat.Matrix, p Params) *mat.Dense {
	r, c := img.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		return p.ForwardValue(v)
	}, img)
	return out
}

// Inverse returns the intensity-domain copy of a transformed image.
func Inverse(img mat.Matrix, p Params) *mat.Dense {
	r, c := img.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		return p.InverseValue(v)
	}, img)
	return out
}

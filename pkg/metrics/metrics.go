package metrics

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Kind identifies one metric of the suite.
type Kind string

const (
	KindPSNR     Kind = "psnr"
	KindSSIM     Kind = "ssim"
	KindPSNRHVS  Kind = "psnr_hvs"
	KindPSNRHVSM Kind = "psnr_hvsm"
	KindMSE      Kind = "mse"
)

// AllKinds lists every supported metric in reporting order.
var AllKinds = []Kind{KindPSNR, KindSSIM, KindPSNRHVS, KindPSNRHVSM, KindMSE}

func (k Kind) String() string { return string(k) }

// HigherIsBetter reports whether larger values of the metric mean better fidelity.
func (k Kind) HigherIsBetter() bool {
	return k != KindMSE
}

// ParseKind maps a metric name to its Kind.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := dispatch[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	return k, nil
}

// ParseKinds maps metric names to Kinds, dropping duplicates but keeping order.
func ParseKinds(names []string) ([]Kind, error) {
	seen := make(map[Kind]bool, len(names))
	kinds := make([]Kind, 0, len(names))
	for _, name := range names {
		k, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// Tunables are the empirically tuned constants of the suite.
type Tunables struct {
	// MaskingK is the contrast masking gain of PSNR-HVS-M
	MaskingK float64

	// DataRange overrides the reference dynamic range when positive
	DataRange float64
}

// DefaultTunables returns the suite defaults.
func DefaultTunables() Tunables {
	return Tunables{MaskingK: DefaultMaskingK}
}

// evaluation carries the inputs of one Compute call so that the HVS pair is
// computed at most once.
type evaluation struct {
	ref, dist mat.Matrix
	tunables  Tunables

	hvsDone   bool
	hvs, hvsm float64
	hvsErr    error
}

func (e *evaluation) hvsPair() (float64, float64, error) {
	if !e.hvsDone {
		e.hvs, e.hvsm, e.hvsErr = PSNRHVS(e.ref, e.dist, e.tunables.DataRange, e.tunables.MaskingK)
		e.hvsDone = true
	}
	return e.hvs, e.hvsm, e.hvsErr
}

type evalFunc func(e *evaluation) (float64, error)

// dispatch is the fixed table from metric kind to implementation.
var dispatch = map[Kind]evalFunc{
	KindPSNR: func(e *evaluation) (float64, error) {
		return PSNR(e.ref, e.dist, e.tunables.DataRange)
	},
	KindSSIM: func(e *evaluation) (float64, error) {
		return SSIM(e.ref, e.dist, e.tunables.DataRange)
	},
	KindPSNRHVS: func(e *evaluation) (float64, error) {
		hvs, _, err := e.hvsPair()
		return hvs, err
	},
	KindPSNRHVSM: func(e *evaluation) (float64, error) {
		_, hvsm, err := e.hvsPair()
		return hvsm, err
	},
	KindMSE: func(e *evaluation) (float64, error) {
		return MSE(e.ref, e.dist)
	},
}

// Suite evaluates a set of metrics with fixed tunables.
type Suite struct {
	tunables Tunables
}

// NewSuite returns a suite using the given tunables.
func NewSuite(t Tunables) *Suite {
	return &Suite{tunables: t}
}

// Tunables returns the suite's constants.
func (s *Suite) Tunables() Tunables {
	return s.tunables
}

// Result holds the outcome of Suite.Compute. Values only contains metrics
// that were computed; the others are listed in Errors.
type Result struct {
	Values map[Kind]float64
	Errors map[Kind]error
}

// Compute evaluates the requested metrics of dist against ref. A failing metric
// does not prevent the others from being computed.
func (s *Suite) Compute(ref, dist mat.Matrix, kinds []Kind) Result {
	res := Result{
		Values: make(map[Kind]float64, len(kinds)),
		Errors: make(map[Kind]error),
	}
	e := &evaluation{ref: ref, dist: dist, tunables: s.tunables}
	for _, k := range kinds {
		fn, ok := dispatch[k]
		if !ok {
			res.Errors[k] = fmt.Errorf("%w: %q", ErrUnknownMetric, k)
			continue
		}
		v, err := fn(e)
		if err != nil {
			res.Errors[k] = err
			continue
		}
		res.Values[k] = v
	}
	return res
}

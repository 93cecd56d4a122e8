package metrics

import "errors"

var (
	// ErrMetric is returned when a metric cannot be computed for its inputs
	// (degenerate data range, image too small for the window, ...).
	ErrMetric = errors.New("metric computation failed")

	// ErrShapeMismatch is returned when reference and distorted images differ in shape.
	// Callers are expected to align shapes before computing metrics.
	ErrShapeMismatch = errors.New("reference and distorted image shapes differ")

	// ErrUnknownMetric is returned by ParseKind for names outside the supported set
	ErrUnknownMetric = errors.New("unknown metric")
)

package models

import (
	"fmt"
	"math"
)

// Mode selects the domain in which the codec sees the image during a sweep.
type Mode string

const (
	// TransformDomain compresses the log-domain (VST) image and restores it with the inverse transform.
	TransformDomain Mode = "vst"

	// DirectDomain compresses the input image as-is.
	DirectDomain Mode = "linear"
)

// Modes lists the sweep modes in the order they are run and reported.
var Modes = []Mode{DirectDomain, TransformDomain}

// Label returns the human readable method name used in summaries.
func (m Mode) Label() string {
	switch m {
	case TransformDomain:
		return "Proposed (VST)"
	case DirectDomain:
		return "Standard"
	default:
		return string(m)
	}
}

// QualityRecord is a single evaluated point of a rate–distortion sweep.
type QualityRecord struct {
	// Q is the codec quality parameter this record was produced with
	Q int

	// BitsPerPixel is the compressed stream size normalised by the pixel count
	BitsPerPixel float64

	// EncodedSize is the compressed stream size in bytes
	EncodedSize int64

	// CompressionRatio is (height*width) / EncodedSize, one byte per pixel being the baseline
	CompressionRatio float64

	// CodecMSE is the mean squared error between the codec input and its decoded output,
	// measured before any inverse transform
	CodecMSE float64

	// Metrics holds the requested fidelity metrics keyed by metric name.
	// A metric that could not be computed is absent.
	Metrics map[string]float64
}

// Metric returns the value of the named metric and whether it was recorded.
func (r QualityRecord) Metric(name string) (float64, bool) {
	v, ok := r.Metrics[name]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Curve is a rate–distortion curve: records ordered by strictly ascending Q.
type Curve struct {
	Mode    Mode
	records []QualityRecord
}

// NewCurve returns an empty curve for the given mode.
func NewCurve(mode Mode) *Curve {
	return &Curve{Mode: mode}
}

// Append adds a record to the end of the curve. Q must be greater than every Q already held.
func (c *Curve) Append(rec QualityRecord) error {
	if n := len(c.records); n > 0 && rec.Q <= c.records[n-1].Q {
		return fmt.Errorf("quality %d does not follow %d", rec.Q, c.records[n-1].Q)
	}
	c.records = append(c.records, rec)
	return nil
}

// Len returns the number of records.
func (c *Curve) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Record returns the i-th record.
func (c *Curve) Record(i int) QualityRecord {
	return c.records[i]
}

// Records returns a copy of the records in ascending Q order.
func (c *Curve) Records() []QualityRecord {
	if c == nil {
		return nil
	}
	out := make([]QualityRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Qualities returns the Q values of the curve in order.
func (c *Curve) Qualities() []int {
	qs := make([]int, c.Len())
	for i := range qs {
		qs[i] = c.records[i].Q
	}
	return qs
}

// OperatingPoint is the record judged best on a curve for one metric.
type OperatingPoint struct {
	Record QualityRecord

	// Index is the position of Record in the curve, -1 when no point was found
	Index int

	// Metric is the metric the point was selected by (after any fallback)
	Metric string
}

// NoOperatingPoint is returned when a curve has nothing to select from.
var NoOperatingPoint = OperatingPoint{Index: -1}

// Found reports whether the operating point refers to a record.
func (p OperatingPoint) Found() bool {
	return p.Index >= 0
}

// Q returns the quality level of the operating point, or -1 when absent.
func (p OperatingPoint) Q() int {
	if !p.Found() {
		return -1
	}
	return p.Record.Q
}

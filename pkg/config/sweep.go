package config

import (
	"fmt"

	"vstrd/pkg/metrics"
)

// Sweep is an ascending range of codec quality levels.
type Sweep struct {
	start, end, step int
}

// NewSweep validates a sweep from start to end inclusive. step must be
// positive and end must not be below start.
func NewSweep(start, end, step int) (Sweep, error) {
	if step == 0 {
		return Sweep{}, fmt.Errorf("%w: quality step must be nonzero", ErrConfig)
	}
	if step < 0 {
		return Sweep{}, fmt.Errorf("%w: quality step must be positive for an ascending sweep, got %d", ErrConfig, step)
	}
	if end < start {
		return Sweep{}, fmt.Errorf("%w: quality end %d is below start %d", ErrConfig, end, start)
	}
	return Sweep{start: start, end: end, step: step}, nil
}

// Levels returns start, start+step, ... up to and including end when reached.
func (s Sweep) Levels() []int {
	if s.step <= 0 {
		return nil
	}
	levels := make([]int, 0, (s.end-s.start)/s.step+1)
	for q := s.start; q <= s.end; q += s.step {
		levels = append(levels, q)
	}
	return levels
}

func (s Sweep) String() string {
	return fmt.Sprintf("q=%d..%d step %d", s.start, s.end, s.step)
}

// Selection is the validated metric configuration.
type Selection struct {
	// Metrics are evaluated at every quality level
	Metrics []metrics.Kind

	// OperatingPoint picks the best quality level; it is always part of Metrics
	OperatingPoint metrics.Kind

	Tunables metrics.Tunables
}

// MetricSelection returns the validated metric configuration.
func (c *Config) MetricSelection() (Selection, error) {
	kinds, err := metrics.ParseKinds(c.Metrics.Compute)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	name := c.Metrics.OperatingPoint
	if name == "" {
		name = string(metrics.KindPSNR)
	}
	oop, err := metrics.ParseKind(name)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: operating point: %v", ErrConfig, err)
	}
	if c.Metrics.MaskingK < 0 {
		return Selection{}, fmt.Errorf("%w: masking gain must not be negative", ErrConfig)
	}

	found := false
	for _, k := range kinds {
		if k == oop {
			found = true
			break
		}
	}
	if !found {
		kinds = append(kinds, oop)
	}
	return Selection{
		Metrics:        kinds,
		OperatingPoint: oop,
		Tunables: metrics.Tunables{
			MaskingK:  c.Metrics.MaskingK,
			DataRange: c.Metrics.DataRange,
		},
	}, nil
}

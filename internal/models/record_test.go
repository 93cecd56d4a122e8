package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeLabel(t *testing.T) {
	assert.Equal(t, "Proposed (VST)", TransformDomain.Label())
	assert.Equal(t, "Standard", DirectDomain.Label())
	assert.Equal(t, "other", Mode("other").Label())
}

func TestQualityRecordMetric(t *testing.T) {
	rec := QualityRecord{Metrics: map[string]float64{"psnr": 31, "ssim": math.NaN()}}

	v, ok := rec.Metric("psnr")
	assert.True(t, ok)
	assert.Equal(t, 31.0, v)

	_, ok = rec.Metric("ssim")
	assert.False(t, ok)
	_, ok = rec.Metric("psnr_hvsm")
	assert.False(t, ok)
	_, ok = QualityRecord{}.Metric("psnr")
	assert.False(t, ok)
}

func TestCurveAppendOrdering(t *testing.T) {
	c := NewCurve(TransformDomain)
	require.NoError(t, c.Append(QualityRecord{Q: 20}))
	require.NoError(t, c.Append(QualityRecord{Q: 25}))
	assert.Error(t, c.Append(QualityRecord{Q: 25}))
	assert.Error(t, c.Append(QualityRecord{Q: 10}))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []int{20, 25}, c.Qualities())
	assert.Equal(t, 25, c.Record(1).Q)
}

func TestCurveRecordsIsCopy(t *testing.T) {
	c := NewCurve(DirectDomain)
	require.NoError(t, c.Append(QualityRecord{Q: 1}))
	recs := c.Records()
	recs[0].Q = 99
	assert.Equal(t, 1, c.Record(0).Q)
}

func TestNilCurve(t *testing.T) {
	var c *Curve
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Records())
	assert.Empty(t, c.Qualities())
}

func TestOperatingPoint(t *testing.T) {
	assert.False(t, NoOperatingPoint.Found())
	assert.Equal(t, -1, NoOperatingPoint.Q())

	p := OperatingPoint{Record: QualityRecord{Q: 30}, Index: 0, Metric: "psnr"}
	assert.True(t, p.Found())
	assert.Equal(t, 30, p.Q())
}

package experiment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vstrd/internal/models"
	"vstrd/pkg/metrics"
)

func curveOf(t *testing.T, points map[int]map[string]float64, qs ...int) *models.Curve {
	t.Helper()
	c := models.NewCurve(models.TransformDomain)
	for _, q := range qs {
		require.NoError(t, c.Append(models.QualityRecord{Q: q, Metrics: points[q]}))
	}
	return c
}

func TestFindOperatingPointUniqueMaximum(t *testing.T) {
	c := curveOf(t, map[int]map[string]float64{
		20: {"psnr": 30},
		25: {"psnr": 32},
		30: {"psnr": 31},
	}, 20, 25, 30)

	p := FindOperatingPoint(c, metrics.KindPSNR)
	require.True(t, p.Found())
	assert.Equal(t, 25, p.Q())
	assert.Equal(t, 1, p.Index)
	assert.Equal(t, "psnr", p.Metric)
}

func TestFindOperatingPointTieTakesLowestQuality(t *testing.T) {
	c := curveOf(t, map[int]map[string]float64{
		20: {"ssim": 0.8},
		25: {"ssim": 0.9},
		30: {"ssim": 0.9},
	}, 20, 25, 30)

	assert.Equal(t, 25, FindOperatingPoint(c, metrics.KindSSIM).Q())
}

func TestFindOperatingPointSkipsMissingValues(t *testing.T) {
	c := curveOf(t, map[int]map[string]float64{
		20: {"psnr": 30},
		25: {"psnr": 31, "psnr_hvsm": math.NaN()},
		30: {"psnr": 29, "psnr_hvsm": 40},
	}, 20, 25, 30)

	p := FindOperatingPoint(c, metrics.KindPSNRHVSM)
	assert.Equal(t, 30, p.Q())
	assert.Equal(t, "psnr_hvsm", p.Metric)
}

func TestFindOperatingPointFallsBackToPSNR(t *testing.T) {
	c := curveOf(t, map[int]map[string]float64{
		20: {"psnr": 30},
		25: {"psnr": 35},
	}, 20, 25)

	p := FindOperatingPoint(c, metrics.KindSSIM)
	require.True(t, p.Found())
	assert.Equal(t, 25, p.Q())
	assert.Equal(t, "psnr", p.Metric)
}

func TestFindOperatingPointLowerIsBetter(t *testing.T) {
	c := curveOf(t, map[int]map[string]float64{
		20: {"mse": 4},
		25: {"mse": 2},
		30: {"mse": 9},
	}, 20, 25, 30)

	assert.Equal(t, 25, FindOperatingPoint(c, metrics.KindMSE).Q())
}

func TestFindOperatingPointAbsent(t *testing.T) {
	p := FindOperatingPoint(models.NewCurve(models.DirectDomain), metrics.KindPSNR)
	assert.False(t, p.Found())
	assert.Equal(t, -1, p.Index)
	assert.Equal(t, -1, p.Q())

	assert.False(t, FindOperatingPoint(nil, metrics.KindPSNR).Found())

	c := curveOf(t, map[int]map[string]float64{20: {}}, 20)
	assert.False(t, FindOperatingPoint(c, metrics.KindSSIM).Found())
}

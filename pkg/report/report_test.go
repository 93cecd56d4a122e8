package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vstrd/internal/models"
	"vstrd/pkg/analysis"
	"vstrd/pkg/vst"
)

func testResult(t *testing.T) *analysis.Result {
	t.Helper()
	direct := models.NewCurve(models.DirectDomain)
	require.NoError(t, direct.Append(models.QualityRecord{Q: 20, BitsPerPixel: 2, EncodedSize: 64, CompressionRatio: 4,
		Metrics: map[string]float64{"psnr": 30, "psnr_hvsm": 35}}))
	require.NoError(t, direct.Append(models.QualityRecord{Q: 30, BitsPerPixel: 1, EncodedSize: 32, CompressionRatio: 8,
		Metrics: map[string]float64{"psnr": 28}}))

	transform := models.NewCurve(models.TransformDomain)
	require.NoError(t, transform.Append(models.QualityRecord{Q: 20, BitsPerPixel: 1.5, EncodedSize: 48, CompressionRatio: 5.33,
		Metrics: map[string]float64{"psnr": 31.5, "psnr_hvsm": 36.25, "ssim": 0.9}}))

	return &analysis.Result{
		VST:   vst.DefaultParams(),
		Modes: models.Modes,
		Curves: map[models.Mode]*models.Curve{
			models.DirectDomain:    direct,
			models.TransformDomain: transform,
		},
		OperatingPoints: map[models.Mode]models.OperatingPoint{
			models.DirectDomain:    {Record: direct.Record(0), Index: 0, Metric: "psnr"},
			models.TransformDomain: models.NoOperatingPoint,
		},
	}
}

func TestSummary(t *testing.T) {
	rows := Summary(testResult(t))
	require.Len(t, rows, 2)

	assert.Equal(t, "Standard", rows[0].Method)
	assert.Equal(t, 20, rows[0].Q)
	assert.Equal(t, 30.0, rows[0].PSNR)
	assert.Equal(t, 35.0, rows[0].PSNRHVSM)
	assert.Equal(t, 4.0, rows[0].CompressionRatio)

	assert.Equal(t, "Proposed (VST)", rows[1].Method)
	assert.Equal(t, -1, rows[1].Q)
	assert.True(t, math.IsNaN(rows[1].PSNR))
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, Summary(testResult(t))))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"Method", "Q(OOP)", "PSNR", "HVS-M", "CR"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"Standard", "20", "30.00", "35.00", "4.00"}, strings.Fields(lines[1]))
	assert.Contains(t, lines[2], "n/a")
}

func TestWriteCurvesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCurvesCSV(&buf, testResult(t)))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, []string{"method", "mode", "q", "bpp", "encoded_bytes", "cr", "codec_mse", "psnr", "ssim", "psnr_hvsm"}, records[0])
	assert.Equal(t, []string{"Standard", "linear", "20", "2", "64", "4", "0", "30", "", "35"}, records[1])
	assert.Equal(t, []string{"Standard", "linear", "30", "1", "32", "8", "0", "28", "", ""}, records[2])
	assert.Equal(t, "vst", records[3][1])
	assert.Equal(t, "0.9", records[3][8])
}

func TestSeries(t *testing.T) {
	res := testResult(t)
	s := Series(res.Curves[models.DirectDomain])

	assert.Equal(t, []float64{20, 30}, s["q"])
	assert.Equal(t, []float64{2, 1}, s["bpp"])
	assert.Equal(t, []float64{4, 8}, s["cr"])
	assert.Equal(t, []float64{30, 28}, s["psnr"])
	require.Len(t, s["psnr_hvsm"], 2)
	assert.Equal(t, 35.0, s["psnr_hvsm"][0])
	assert.True(t, math.IsNaN(s["psnr_hvsm"][1]))
	assert.NotContains(t, s, "ssim")

	empty := Series(models.NewCurve(models.DirectDomain))
	assert.Empty(t, empty["q"])
}

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	cb := ProgressBar(&buf, "vst")
	cb(1, 4)
	cb(4, 4)

	out := buf.String()
	assert.Contains(t, out, "vst [")
	assert.Contains(t, out, "25.0% (1/4)")
	assert.Contains(t, out, "100.0% (4/4)")
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

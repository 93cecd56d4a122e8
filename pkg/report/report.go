// Package report turns analysis results into tables, CSV files and per-metric
// series.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"text/tabwriter"

	"vstrd/internal/models"
	"vstrd/pkg/analysis"
	"vstrd/pkg/metrics"
)

// Row is one line of the summary table.
type Row struct {
	Method           string
	Mode             models.Mode
	Q                int
	PSNR             float64
	PSNRHVSM         float64
	CompressionRatio float64
}

// Summary returns one row per mode describing its optimal operating point.
// Modes without an operating point get Q = -1 and NaN values.
func Summary(res *analysis.Result) []Row {
	rows := make([]Row, 0, len(res.Modes))
	for _, mode := range res.Modes {
		row := Row{
			Method:           mode.Label(),
			Mode:             mode,
			Q:                -1,
			PSNR:             math.NaN(),
			PSNRHVSM:         math.NaN(),
			CompressionRatio: math.NaN(),
		}
		if op, ok := res.OperatingPoints[mode]; ok && op.Found() {
			row.Q = op.Q()
			row.CompressionRatio = op.Record.CompressionRatio
			if v, ok := op.Record.Metric(metrics.KindPSNR.String()); ok {
				row.PSNR = v
			}
			if v, ok := op.Record.Metric(metrics.KindPSNRHVSM.String()); ok {
				row.PSNRHVSM = v
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func formatValue(v float64, prec int) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// WriteSummary prints the summary rows as an aligned table.
func WriteSummary(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Method\tQ(OOP)\tPSNR\tHVS-M\tCR")
	for _, r := range rows {
		q := "n/a"
		if r.Q >= 0 {
			q = strconv.Itoa(r.Q)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Method, q, formatValue(r.PSNR, 2), formatValue(r.PSNRHVSM, 2), formatValue(r.CompressionRatio, 2))
	}
	return tw.Flush()
}

// metricColumns returns the metric names recorded on any curve, known kinds
// first in their canonical order and unknown names sorted after them.
func metricColumns(curves []*models.Curve) []string {
	seen := make(map[string]bool)
	for _, c := range curves {
		for _, rec := range c.Records() {
			for name := range rec.Metrics {
				seen[name] = true
			}
		}
	}

	cols := make([]string, 0, len(seen))
	for _, k := range metrics.AllKinds {
		if seen[k.String()] {
			cols = append(cols, k.String())
			delete(seen, k.String())
		}
	}
	extra := make([]string, 0, len(seen))
	for name := range seen {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	return append(cols, extra...)
}

// WriteCurvesCSV writes one row per mode and quality level with every
// recorded metric. Absent metrics are left empty.
func WriteCurvesCSV(w io.Writer, res *analysis.Result) error {
	curves := make([]*models.Curve, 0, len(res.Modes))
	for _, mode := range res.Modes {
		if c, ok := res.Curves[mode]; ok {
			curves = append(curves, c)
		}
	}
	cols := metricColumns(curves)

	cw := csv.NewWriter(w)
	header := append([]string{"method", "mode", "q", "bpp", "encoded_bytes", "cr", "codec_mse"}, cols...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range curves {
		for _, rec := range c.Records() {
			line := []string{
				c.Mode.Label(),
				string(c.Mode),
				strconv.Itoa(rec.Q),
				strconv.FormatFloat(rec.BitsPerPixel, 'g', -1, 64),
				strconv.FormatInt(rec.EncodedSize, 10),
				strconv.FormatFloat(rec.CompressionRatio, 'g', -1, 64),
				strconv.FormatFloat(rec.CodecMSE, 'g', -1, 64),
			}
			for _, name := range cols {
				if v, ok := rec.Metric(name); ok {
					line = append(line, strconv.FormatFloat(v, 'g', -1, 64))
				} else {
					line = append(line, "")
				}
			}
			if err := cw.Write(line); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Series maps "q", "bpp", "cr" and every recorded metric name to a value list
// aligned with the curve's quality levels. Absent metric values are NaN.
func Series(curve *models.Curve) map[string][]float64 {
	records := curve.Records()
	out := map[string][]float64{
		"q":   make([]float64, len(records)),
		"bpp": make([]float64, len(records)),
		"cr":  make([]float64, len(records)),
	}
	for _, name := range metricColumns([]*models.Curve{curve}) {
		out[name] = make([]float64, len(records))
	}

	for i, rec := range records {
		out["q"][i] = float64(rec.Q)
		out["bpp"][i] = rec.BitsPerPixel
		out["cr"][i] = rec.CompressionRatio
		for name, values := range out {
			switch name {
			case "q", "bpp", "cr":
				continue
			}
			if v, ok := rec.Metric(name); ok {
				values[i] = v
			} else {
				values[i] = math.NaN()
			}
		}
	}
	return out
}

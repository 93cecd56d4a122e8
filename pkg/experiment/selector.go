package experiment

import (
	log "github.com/sirupsen/logrus"

	"vstrd/internal/models"
	"vstrd/pkg/metrics"
)

// FindOperatingPoint returns the record of curve with the best value of metric.
// Ties go to the lowest quality level. Records without the metric are skipped;
// when no record carries it the selection falls back to PSNR. An empty curve,
// or one where neither metric was recorded, yields models.NoOperatingPoint.
func FindOperatingPoint(curve *models.Curve, metric metrics.Kind) models.OperatingPoint {
	if curve.Len() == 0 {
		return models.NoOperatingPoint
	}
	if p, ok := best(curve, metric); ok {
		return p
	}
	if metric != metrics.KindPSNR {
		if p, ok := best(curve, metrics.KindPSNR); ok {
			log.WithFields(log.Fields{"mode": curve.Mode, "metric": metric}).
				Warn("metric not recorded on curve, selecting operating point by psnr")
			return p
		}
	}
	return models.NoOperatingPoint
}

// best scans the curve in ascending q order and keeps the first strict improvement.
func best(curve *models.Curve, metric metrics.Kind) (models.OperatingPoint, bool) {
	name := metric.String()
	better := func(v, cur float64) bool { return v > cur }
	if !metric.HigherIsBetter() {
		better = func(v, cur float64) bool { return v < cur }
	}

	idx := -1
	var cur float64
	for i := 0; i < curve.Len(); i++ {
		v, ok := curve.Record(i).Metric(name)
		if !ok {
			continue
		}
		if idx < 0 || better(v, cur) {
			idx, cur = i, v
		}
	}
	if idx < 0 {
		return models.OperatingPoint{}, false
	}
	return models.OperatingPoint{Record: curve.Record(idx), Index: idx, Metric: name}, true
}

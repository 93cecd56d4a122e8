// Package analysis compares rate–distortion behaviour of a codec with and
// without a log-domain variance-stabilising transform.
//
// The analysis consists of several steps:
// 1. Estimating the noise level of the input in the log domain
// 2. Sweeping the codec over the quality range for every mode
// 3. Selecting an optimal operating point per mode
//
// SaveOperatingPoint then exports the artefacts of a selected point.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"vstrd/internal/models"
	"vstrd/pkg/codec"
	"vstrd/pkg/dataset"
	"vstrd/pkg/experiment"
	"vstrd/pkg/metrics"
	"vstrd/pkg/noise"
	"vstrd/pkg/visualization"
	"vstrd/pkg/vst"
)

// Noise estimation methods reported in Result.NoiseMethod.
const (
	NoiseExact       = "exact"
	NoiseBlind       = "blind"
	NoiseUnavailable = "unavailable"
)

// Params holds the inputs of one analysis.
type Params struct {
	// Noised is the image under study.
	Noised *mat.Dense

	// Original is the clean reference. When nil the noised image is its own
	// reference and the noise level is estimated blindly.
	Original *mat.Dense

	// VST holds the transform parameters used in TransformDomain mode.
	VST vst.Params

	// Levels are the codec quality levels, strictly ascending.
	Levels []int

	// Metrics are evaluated at every quality level.
	Metrics []metrics.Kind

	// OperatingPoint is the metric used to select the optimal operating point.
	OperatingPoint metrics.Kind

	// Modes lists the sweeps to run. Empty means models.Modes.
	Modes []models.Mode

	// Progress, when set, returns the progress callback for a mode's sweep.
	Progress func(mode models.Mode) experiment.ProgressCallback
}

// Result holds everything produced by Analyzer.Run.
type Result struct {
	// VST is the transform parameter set the sweeps were run with
	VST vst.Params

	Noised   *mat.Dense
	Original *mat.Dense

	// NoiseSigma is the standard deviation of the noise in the log domain
	NoiseSigma  float64
	NoiseMethod string

	OperatingPointMetric metrics.Kind
	Modes                []models.Mode
	Curves               map[models.Mode]*models.Curve
	OperatingPoints      map[models.Mode]models.OperatingPoint
	Elapsed              time.Duration
}

// Reference returns the image the metrics were computed against.
func (r *Result) Reference() *mat.Dense {
	if r.Original != nil {
		return r.Original
	}
	return r.Noised
}

// Analyzer runs the comparison for one codec.
type Analyzer struct {
	codec     codec.Codec
	runner    *experiment.Runner
	estimator noise.Estimator
}

// NewAnalyzer creates an analyzer sweeping c and scoring with suite.
func NewAnalyzer(c codec.Codec, suite *metrics.Suite, estimator noise.Estimator, opts experiment.Options) *Analyzer {
	return &Analyzer{
		codec:     c,
		runner:    experiment.NewRunner(c, suite, opts),
		estimator: estimator,
	}
}

// Run executes the complete analysis. A cancelled context stops the current
// sweep; the partial result is returned together with the context error.
func (a *Analyzer) Run(ctx context.Context, p Params) (*Result, error) {
	if p.Noised == nil || p.Noised.IsEmpty() {
		return nil, fmt.Errorf("%w: no noised image", dataset.ErrData)
	}
	modes := p.Modes
	if len(modes) == 0 {
		modes = models.Modes
	}

	start := time.Now()
	res := &Result{
		VST:                  p.VST,
		Noised:               p.Noised,
		Original:             p.Original,
		OperatingPointMetric: p.OperatingPoint,
		Modes:                modes,
		Curves:               make(map[models.Mode]*models.Curve, len(modes)),
		OperatingPoints:      make(map[models.Mode]models.OperatingPoint, len(modes)),
	}

	log.Info("Step 1: Estimating log-domain noise level...")
	res.NoiseSigma, res.NoiseMethod = a.estimateNoise(p)
	log.WithFields(log.Fields{"sigma": res.NoiseSigma, "method": res.NoiseMethod}).Info("noise level estimated")

	log.WithField("levels", len(p.Levels)).Info("Step 2: Running rate-distortion sweeps...")
	for _, mode := range modes {
		req := experiment.Request{
			Reference: p.Original,
			Input:     p.Noised,
			Params:    p.VST,
			Levels:    p.Levels,
			Mode:      mode,
			Metrics:   p.Metrics,
		}
		if p.Progress != nil {
			req.Progress = p.Progress(mode)
		}

		curve, err := a.runner.RunCurve(ctx, req)
		if curve != nil {
			res.Curves[mode] = curve
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				a.selectOperatingPoints(res)
				res.Elapsed = time.Since(start)
				return res, err
			}
			return nil, fmt.Errorf("%s sweep: %w", mode, err)
		}
	}

	log.WithField("metric", p.OperatingPoint).Info("Step 3: Selecting optimal operating points...")
	a.selectOperatingPoints(res)
	res.Elapsed = time.Since(start)
	return res, nil
}

func (a *Analyzer) selectOperatingPoints(res *Result) {
	for mode, curve := range res.Curves {
		op := experiment.FindOperatingPoint(curve, res.OperatingPointMetric)
		res.OperatingPoints[mode] = op
		if !op.Found() {
			log.WithField("mode", mode).Warn("no operating point found")
			continue
		}
		log.WithFields(log.Fields{"mode": mode, "q": op.Q(), "metric": op.Metric}).Debug("operating point selected")
	}
}

// estimateNoise measures the log-domain noise level exactly when a reference
// is available and blindly otherwise.
func (a *Analyzer) estimateNoise(p Params) (float64, string) {
	params := p.VST
	if params.Validate() != nil {
		params = vst.DefaultParams()
	}
	logNoised := vst.Forward(p.Noised, params)

	if p.Original != nil {
		sigma, err := noise.ExactSigma(logNoised, vst.Forward(p.Original, params))
		if err == nil {
			return sigma, NoiseExact
		}
		log.WithError(err).Warn("exact noise estimation failed, falling back to blind estimation")
	}
	sigma, err := a.estimator.BlindSigma(logNoised)
	if err != nil {
		log.WithError(err).Warn("blind noise estimation failed")
		return math.NaN(), NoiseUnavailable
	}
	return sigma, NoiseBlind
}

// Artifacts lists the files written by SaveOperatingPoint.
type Artifacts struct {
	Stream     string
	StreamSize int64
	Restored   string
	ErrorMap   string

	// Zoom is the centre half of the restored image, empty for images too
	// small to crop
	Zoom string
}

// SaveOperatingPoint re-encodes the input of mode at its operating point and
// writes the compressed stream, the restored image, its relative error map and
// a zoom on the centre of the restored image to dir.
func (a *Analyzer) SaveOperatingPoint(ctx context.Context, res *Result, mode models.Mode, dir string) (*Artifacts, error) {
	op, ok := res.OperatingPoints[mode]
	if !ok || !op.Found() {
		return nil, fmt.Errorf("no operating point for mode %s", mode)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var input mat.Matrix = res.Noised
	if mode == models.TransformDomain {
		input = vst.Forward(res.Noised, res.VST)
	}

	q := op.Q()
	base := fmt.Sprintf("oop_%s_q%d", mode, q)
	streamPath := filepath.Join(dir, base+"."+a.codec.Name())
	size, err := a.codec.SaveToFile(ctx, input, q, streamPath)
	if err != nil {
		return nil, fmt.Errorf("failed to save compressed stream: %w", err)
	}

	decoded, err := a.codec.CompressDecompress(ctx, input, q)
	if err != nil {
		return nil, fmt.Errorf("failed to restore operating point: %w", err)
	}
	restored := decoded.Decoded
	if mode == models.TransformDomain {
		restored = vst.Inverse(decoded.Decoded, res.VST)
	}

	errMap, err := metrics.RelativeErrorMap(res.Reference(), restored)
	if err != nil {
		return nil, fmt.Errorf("failed to compute error map: %w", err)
	}

	viewer := visualization.NewViewer()
	viewer.AddImage(base+"_restored", restored)
	viewer.AddErrorMap(base+"_error_map", errMap)
	rows, cols := restored.Dims()
	zoomed := false
	if rows >= 4 && cols >= 4 {
		zoom, err := visualization.ExtractRegion(restored, rows/4, cols/4, rows/2, cols/2)
		if err != nil {
			return nil, fmt.Errorf("failed to crop zoom region: %w", err)
		}
		viewer.AddImage(base+"_zoom", zoom)
		zoomed = true
	}
	paths, err := viewer.SaveAll(dir, ".png")
	if err != nil {
		return nil, fmt.Errorf("failed to save images: %w", err)
	}

	log.WithFields(log.Fields{"mode": mode, "q": q, "bytes": size}).Info("operating point saved")
	art := &Artifacts{
		Stream:     streamPath,
		StreamSize: size,
		Restored:   paths[0],
		ErrorMap:   paths[1],
	}
	if zoomed {
		art.Zoom = paths[2]
	}
	return art, nil
}

// Package experiment runs rate–distortion sweeps and selects operating points
// on the resulting curves.
package experiment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"vstrd/internal/models"
	"vstrd/pkg/codec"
	"vstrd/pkg/config"
	"vstrd/pkg/dataset"
	"vstrd/pkg/metrics"
	"vstrd/pkg/vst"
)

// ProgressCallback reports how many of the total quality levels have been attempted.
type ProgressCallback func(completed, total int)

// Options control how a Runner schedules codec calls.
type Options struct {
	// Workers is the number of quality levels evaluated concurrently.
	// Values below 2 run the sweep sequentially.
	Workers int

	// CodecTimeout bounds each codec call; an expired call counts as a codec
	// failure. Zero disables the timeout.
	CodecTimeout time.Duration
}

// Request describes one sweep.
type Request struct {
	// Reference is the clean image metrics are computed against.
	// When nil the input itself is used.
	Reference *mat.Dense

	// Input is the (noisy) image handed to the codec, after the forward
	// transform in TransformDomain mode.
	Input *mat.Dense

	Params   vst.Params
	Levels   []int
	Mode     models.Mode
	Metrics  []metrics.Kind
	Progress ProgressCallback
}

// Runner evaluates a codec over a range of quality levels.
type Runner struct {
	codec codec.Codec
	suite *metrics.Suite
	opts  Options
}

// NewRunner returns a runner using the given codec and metric suite.
func NewRunner(c codec.Codec, suite *metrics.Suite, opts Options) *Runner {
	return &Runner{codec: c, suite: suite, opts: opts}
}

// validate reports fatal request problems: bad data (dataset.ErrData) and bad
// parameters (config.ErrConfig).
func (req *Request) validate() error {
	if req.Input == nil || req.Input.IsEmpty() {
		return fmt.Errorf("%w: no input image", dataset.ErrData)
	}
	if req.Reference != nil {
		if req.Reference.IsEmpty() {
			return fmt.Errorf("%w: empty reference image", dataset.ErrData)
		}
		ri, ci := req.Input.Dims()
		rr, cr := req.Reference.Dims()
		if ri != rr || ci != cr {
			return fmt.Errorf("%w: reference is %dx%d but input is %dx%d", dataset.ErrData, rr, cr, ri, ci)
		}
	}
	switch req.Mode {
	case models.TransformDomain:
		if err := req.Params.Validate(); err != nil {
			return fmt.Errorf("%w: %v", config.ErrConfig, err)
		}
	case models.DirectDomain:
	default:
		return fmt.Errorf("%w: unknown sweep mode %q", config.ErrConfig, req.Mode)
	}
	for i := 1; i < len(req.Levels); i++ {
		if req.Levels[i] <= req.Levels[i-1] {
			return fmt.Errorf("%w: quality levels must be strictly ascending, got %d after %d",
				config.ErrConfig, req.Levels[i], req.Levels[i-1])
		}
	}
	for _, k := range req.Metrics {
		if _, err := metrics.ParseKind(string(k)); err != nil {
			return fmt.Errorf("%w: %v", config.ErrConfig, err)
		}
	}
	return nil
}

// RunCurve runs the sweep described by req and returns its curve.
//
// Quality levels whose codec call fails are logged and left out; they never
// abort the sweep. If ctx is cancelled the records collected so far are
// returned together with the context error. Invalid requests fail before any
// codec call with an error wrapping dataset.ErrData or config.ErrConfig.
func (r *Runner) RunCurve(ctx context.Context, req Request) (*models.Curve, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	curve := models.NewCurve(req.Mode)
	if len(req.Levels) == 0 {
		return curve, nil
	}

	prepared := req.Input
	if req.Mode == models.TransformDomain {
		prepared = vst.Forward(req.Input, req.Params)
	}
	reference := req.Reference
	if reference == nil {
		reference = req.Input
	}

	logger := log.WithFields(log.Fields{"mode": req.Mode, "codec": r.codec.Name()})
	logger.WithField("levels", len(req.Levels)).Info("starting rate-distortion sweep")
	start := time.Now()

	var err error
	if r.opts.Workers > 1 {
		err = r.runParallel(ctx, req, prepared, reference, curve, logger)
	} else {
		err = r.runSequential(ctx, req, prepared, reference, curve, logger)
	}

	logger.WithFields(log.Fields{
		"records": curve.Len(),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("rate-distortion sweep finished")
	return curve, err
}

func (r *Runner) runSequential(ctx context.Context, req Request, prepared, reference *mat.Dense, curve *models.Curve, logger *log.Entry) error {
	total := len(req.Levels)
	for i, q := range req.Levels {
		if err := ctx.Err(); err != nil {
			logger.WithField("q", q).Warn("sweep cancelled")
			return err
		}
		rec, err := r.evaluate(ctx, req, prepared, reference, q, logger)
		if err != nil {
			logger.WithField("q", q).WithError(err).Warn("skipping quality level")
		} else if err := curve.Append(rec); err != nil {
			return err
		}
		if req.Progress != nil {
			req.Progress(i+1, total)
		}
	}
	return nil
}

// runParallel evaluates quality levels on a pool of workers. Results are
// collected on the calling goroutine, which alone reports progress, and are
// sorted by quality before being appended to the curve.
func (r *Runner) runParallel(ctx context.Context, req Request, prepared, reference *mat.Dense, curve *models.Curve, logger *log.Entry) error {
	type outcome struct {
		q   int
		rec models.QualityRecord
		err error
	}

	jobs := make(chan int)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for w := 0; w < r.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range jobs {
				rec, err := r.evaluate(ctx, req, prepared, reference, q, logger)
				results <- outcome{q: q, rec: rec, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, q := range req.Levels {
			if ctx.Err() != nil {
				return
			}
			select {
			case jobs <- q:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	total := len(req.Levels)
	completed := 0
	collected := make([]models.QualityRecord, 0, total)
	for res := range results {
		completed++
		if res.err != nil {
			logger.WithField("q", res.q).WithError(res.err).Warn("skipping quality level")
		} else {
			collected = append(collected, res.rec)
		}
		if req.Progress != nil {
			req.Progress(completed, total)
		}
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].Q < collected[j].Q })
	for _, rec := range collected {
		if err := curve.Append(rec); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		logger.WithField("attempted", completed).Warn("sweep cancelled")
		return err
	}
	return nil
}

// evaluate runs the codec at q and scores the restored image. Only codec
// failures are returned; metric failures leave the metric out of the record.
func (r *Runner) evaluate(ctx context.Context, req Request, prepared, reference *mat.Dense, q int, logger *log.Entry) (models.QualityRecord, error) {
	callCtx := ctx
	if r.opts.CodecTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.opts.CodecTimeout)
		defer cancel()
	}

	res, err := r.codec.CompressDecompress(callCtx, prepared, q)
	if err != nil {
		return models.QualityRecord{}, err
	}
	if res == nil || res.Decoded == nil {
		return models.QualityRecord{}, &codec.Error{Op: "read", Quality: q, Err: fmt.Errorf("no decoded image")}
	}

	rows, cols := prepared.Dims()
	if dr, dc := res.Decoded.Dims(); dr != rows || dc != cols {
		return models.QualityRecord{}, &codec.Error{Op: "shape", Quality: q,
			Err: fmt.Errorf("decoded %dx%d, expected %dx%d", dr, dc, rows, cols)}
	}

	codecMSE, err := metrics.MSE(prepared, res.Decoded)
	if err != nil {
		return models.QualityRecord{}, &codec.Error{Op: "shape", Quality: q, Err: err}
	}

	restored := res.Decoded
	if req.Mode == models.TransformDomain {
		restored = vst.Inverse(res.Decoded, req.Params)
	}

	scores := r.suite.Compute(reference, restored, req.Metrics)
	for k, merr := range scores.Errors {
		logger.WithFields(log.Fields{"q": q, "metric": k}).WithError(merr).Warn("metric unavailable")
	}
	values := make(map[string]float64, len(scores.Values))
	for k, v := range scores.Values {
		values[k.String()] = v
	}

	var ratio float64
	if res.EncodedSize > 0 {
		ratio = float64(rows*cols) / float64(res.EncodedSize)
	} else {
		logger.WithField("q", q).Warn("codec reported an empty stream")
	}

	return models.QualityRecord{
		Q:                q,
		BitsPerPixel:     res.BitsPerPixel,
		EncodedSize:      res.EncodedSize,
		CompressionRatio: ratio,
		CodecMSE:         codecMSE,
		Metrics:          values,
	}, nil
}

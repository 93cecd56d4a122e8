package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"vstrd/internal/models"
	"vstrd/pkg/analysis"
	"vstrd/pkg/codec"
	"vstrd/pkg/config"
	"vstrd/pkg/dataset"
	"vstrd/pkg/experiment"
	"vstrd/pkg/metrics"
	"vstrd/pkg/report"
	"vstrd/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "config.yaml", "YAML configuration file (defaults are used when missing)")
	initConfig := flag.Bool("init-config", false, "Write a default configuration to -config and exit")
	noisedPath := flag.String("noised", "", "Noisy intensity image to compress (TIFF, PNG or JPEG)")
	originalPath := flag.String("original", "", "Optional clean reference image")
	synthetic := flag.Bool("synthetic", false, "Use the synthetic speckle test pattern")
	noiseLevel := flag.Float64("noise", 0.25, "Speckle level of the synthetic pattern")
	size := flag.Int("size", 400, "Edge length of the synthetic pattern")
	seed := flag.Uint64("seed", 1, "Seed of the synthetic speckle")
	codecName := flag.String("codec", "bpg", "Codec to sweep: bpg or mock")
	workers := flag.Int("workers", 1, "Number of quality levels evaluated concurrently")
	outDir := flag.String("out", "results", "Directory for CSV and operating point exports")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags given explicitly override the configuration file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "noised":
			cfg.Data.Source = "file"
			cfg.Data.NoisedPath = *noisedPath
		case "original":
			cfg.Data.OriginalPath = *originalPath
		case "synthetic":
			if *synthetic {
				cfg.Data.Source = "gen"
			}
		case "noise":
			cfg.Data.NoiseLevel = *noiseLevel
		case "size":
			cfg.Data.Size = *size
		case "seed":
			cfg.Data.Seed = *seed
		case "codec":
			cfg.Codec.Name = *codecName
		case "workers":
			cfg.Runtime.Workers = *workers
		case "out":
			cfg.Export.ResultsDir = *outDir
		case "verbose":
			cfg.Runtime.Verbose = *verbose
		}
	})

	if cfg.Runtime.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	params, _ := cfg.VSTParams()
	sweep, _ := cfg.SweepRange()
	selection, _ := cfg.MetricSelection()

	fmt.Println("================================")
	fmt.Println("RATE-DISTORTION ANALYSIS OF A LOG-DOMAIN VST BEFORE LOSSY COMPRESSION")
	fmt.Println("================================")

	noised, original, err := loadInput(cfg)
	if err != nil {
		log.Fatalf("Failed to load input: %v", err)
	}
	rows, cols := noised.Dims()
	fmt.Printf("Input: %dx%d, transform %s, sweep %s, codec %s\n", rows, cols, params, sweep, cfg.Codec.Name)

	c := newCodec(cfg)
	analyzer := analysis.NewAnalyzer(c, metrics.NewSuite(selection.Tunables), cfg.NoiseEstimator(), experiment.Options{
		Workers:      cfg.Runtime.Workers,
		CodecTimeout: time.Duration(cfg.Codec.TimeoutSeconds * float64(time.Second)),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startTime := time.Now()
	res, err := analyzer.Run(ctx, analysis.Params{
		Noised:         noised,
		Original:       original,
		VST:            params,
		Levels:         sweep.Levels(),
		Metrics:        selection.Metrics,
		OperatingPoint: selection.OperatingPoint,
		Progress: func(mode models.Mode) experiment.ProgressCallback {
			return report.ProgressBar(os.Stdout, fmt.Sprintf("%-8s", mode))
		},
	})
	if err != nil {
		if res == nil || !(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			log.Fatalf("Analysis failed: %v", err)
		}
		log.WithError(err).Warn("analysis interrupted, reporting partial results")
	}

	fmt.Printf("\nAnalysis completed in %.2f seconds\n", time.Since(startTime).Seconds())
	fmt.Printf("Log-domain noise sigma (%s): %.4f\n\n", res.NoiseMethod, res.NoiseSigma)
	fmt.Printf("Optimal operating points (by %s):\n", selection.OperatingPoint)
	if err := report.WriteSummary(os.Stdout, report.Summary(res)); err != nil {
		log.Fatalf("Failed to print summary: %v", err)
	}

	if err := export(ctx, cfg, analyzer, res); err != nil {
		log.Fatalf("Export failed: %v", err)
	}
}

// loadInput returns the noised image and the optional clean reference.
func loadInput(cfg *config.Config) (noised, original *mat.Dense, err error) {
	switch cfg.Data.Source {
	case "gen":
		clean, noisy, err := dataset.Synthetic(cfg.Data.NoiseLevel, cfg.Data.Size, cfg.Data.Size, cfg.Data.Seed)
		return noisy, clean, err
	case "file":
		if cfg.Data.NoisedPath == "" {
			return nil, nil, fmt.Errorf("%w: no noised image path", dataset.ErrData)
		}
		noised, err = dataset.LoadFile(cfg.Data.NoisedPath)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Data.OriginalPath != "" {
			original, err = dataset.LoadFile(cfg.Data.OriginalPath)
			if err != nil {
				return nil, nil, err
			}
		}
		return noised, original, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown data source %q", config.ErrConfig, cfg.Data.Source)
	}
}

func newCodec(cfg *config.Config) codec.Codec {
	if cfg.Codec.Name == "mock" {
		return codec.NewMock()
	}
	return codec.NewBPG(codec.BPGConfig{
		Dir:      cfg.Codec.BPGDir,
		TempDir:  cfg.Codec.TempDir,
		BitDepth: cfg.Codec.BitDepth,
	})
}

// export writes the CSV curves and the operating point artefacts.
func export(ctx context.Context, cfg *config.Config, analyzer *analysis.Analyzer, res *analysis.Result) error {
	if !cfg.Export.SaveCSV && !cfg.Export.SaveOOPImages {
		return nil
	}
	dir := cfg.Export.ResultsDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if cfg.Export.SaveCSV {
		path := filepath.Join(dir, "rd_curves.csv")
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := report.WriteCurvesCSV(f, res); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("\nCurves saved to: %s\n", path)
	}

	if cfg.Export.SaveOOPImages {
		viewer := visualization.NewViewer()
		viewer.AddImage("noised", res.Noised)
		if res.Original != nil {
			viewer.AddImage("original", res.Original)
		}
		if _, err := viewer.SaveAll(dir, ".png"); err != nil {
			return err
		}

		for _, mode := range res.Modes {
			art, err := analyzer.SaveOperatingPoint(ctx, res, mode, dir)
			if err != nil {
				log.WithField("mode", mode).WithError(err).Warn("Failed to save operating point")
				continue
			}
			fmt.Printf("%s: %s (%d bytes), %s, %s\n", mode.Label(), art.Stream, art.StreamSize, art.Restored, art.ErrorMap)
			if art.Zoom != "" {
				fmt.Printf("%s zoom: %s\n", mode.Label(), art.Zoom)
			}
		}
	}
	return nil
}

// Package config provides configuration loading and management for vstrd.
// It handles loading configuration from YAML files, provides default values
// and turns the raw file sections into validated, immutable settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"vstrd/pkg/metrics"
	"vstrd/pkg/noise"
	"vstrd/pkg/vst"
)

// ErrConfig marks invalid configuration. It is fatal before any sweep starts.
var ErrConfig = errors.New("invalid configuration")

// Config represents the application configuration loaded from YAML
type Config struct {
	// Variance-stabilizing transform parameters
	VST struct {
		// A scales the log-domain output
		A float64 `yaml:"a"`

		// B is the logarithm base and must be greater than 1
		B float64 `yaml:"b"`

		// Epsilon is the clamp applied before the logarithm
		Epsilon float64 `yaml:"epsilon"`
	} `yaml:"vst"`

	// Quality sweep
	Sweep struct {
		QStart int `yaml:"qStart"`
		QEnd   int `yaml:"qEnd"`
		QStep  int `yaml:"qStep"`
	} `yaml:"sweep"`

	// Metric selection and tunables
	Metrics struct {
		// Compute lists the metric names evaluated at every quality level
		Compute []string `yaml:"compute"`

		// OperatingPoint is the metric used to pick the best quality level
		OperatingPoint string `yaml:"operatingPoint"`

		// MaskingK is the PSNR-HVS-M contrast masking gain
		MaskingK float64 `yaml:"maskingK"`

		// DataRange overrides the reference dynamic range when positive
		DataRange float64 `yaml:"dataRange"`
	} `yaml:"metrics"`

	// Blind noise estimation constants
	Noise struct {
		MADScale      float64 `yaml:"madScale"`
		KernelDivisor float64 `yaml:"kernelDivisor"`
		Calibration   float64 `yaml:"calibration"`
	} `yaml:"noise"`

	// Codec parameters
	Codec struct {
		// Name selects the codec: "bpg" or "mock"
		Name string `yaml:"name"`

		// BPGDir holds bpgenc and bpgdec; empty means PATH
		BPGDir string `yaml:"bpgDir"`

		// TempDir is where per-call working directories are created
		TempDir string `yaml:"tempDir"`

		// BitDepth is passed to the encoder
		BitDepth int `yaml:"bitDepth"`

		// TimeoutSeconds bounds each codec call; 0 disables the timeout
		TimeoutSeconds float64 `yaml:"timeoutSeconds"`
	} `yaml:"codec"`

	// Input data
	Data struct {
		// Source is "gen" for the synthetic pattern or "file"
		Source string `yaml:"source"`

		// NoiseLevel is the speckle level of the synthetic pattern
		NoiseLevel float64 `yaml:"noiseLevel"`

		// Size is the edge length of the synthetic pattern
		Size int `yaml:"size"`

		// Seed drives the synthetic speckle
		Seed uint64 `yaml:"seed"`

		// NoisedPath is the image to compress when Source is "file"
		NoisedPath string `yaml:"noisedPath"`

		// OriginalPath is the optional clean reference
		OriginalPath string `yaml:"originalPath"`
	} `yaml:"data"`

	// Export parameters
	Export struct {
		ResultsDir    string `yaml:"resultsDir"`
		SaveCSV       bool   `yaml:"saveCSV"`
		SaveOOPImages bool   `yaml:"saveOOPImages"`
	} `yaml:"export"`

	// Runtime parameters
	Runtime struct {
		// Workers is the number of quality levels evaluated concurrently; 1 is sequential
		Workers int `yaml:"workers"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"runtime"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.VST.A = vst.DefaultA
	cfg.VST.B = vst.DefaultB
	cfg.VST.Epsilon = vst.DefaultEpsilon

	cfg.Sweep.QStart = 20
	cfg.Sweep.QEnd = 45
	cfg.Sweep.QStep = 1

	cfg.Metrics.Compute = []string{"psnr", "ssim", "psnr_hvs", "psnr_hvsm"}
	cfg.Metrics.OperatingPoint = "psnr"
	cfg.Metrics.MaskingK = metrics.DefaultMaskingK

	def := noise.DefaultEstimator()
	cfg.Noise.MADScale = def.MADScale
	cfg.Noise.KernelDivisor = def.KernelDivisor
	cfg.Noise.Calibration = def.Calibration

	cfg.Codec.Name = "bpg"
	cfg.Codec.BitDepth = 8

	cfg.Data.Source = "gen"
	cfg.Data.NoiseLevel = 0.25
	cfg.Data.Size = 400
	cfg.Data.Seed = 1

	cfg.Export.ResultsDir = "results"
	cfg.Export.SaveCSV = true

	cfg.Runtime.Workers = 1

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: error parsing config file: %v", ErrConfig, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks every section that has a validated view.
func (c *Config) Validate() error {
	if _, err := c.VSTParams(); err != nil {
		return err
	}
	if _, err := c.SweepRange(); err != nil {
		return err
	}
	if _, err := c.MetricSelection(); err != nil {
		return err
	}
	switch c.Codec.Name {
	case "bpg", "mock":
	default:
		return fmt.Errorf("%w: unknown codec %q", ErrConfig, c.Codec.Name)
	}
	if c.Codec.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: codec timeout must not be negative", ErrConfig)
	}
	if c.Runtime.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrConfig, c.Runtime.Workers)
	}
	return nil
}

// VSTParams returns the validated transform parameters.
func (c *Config) VSTParams() (vst.Params, error) {
	p, err := vst.NewParams(c.VST.A, c.VST.B, c.VST.Epsilon)
	if err != nil {
		return vst.Params{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return p, nil
}

// SweepRange returns the validated quality sweep.
func (c *Config) SweepRange() (Sweep, error) {
	return NewSweep(c.Sweep.QStart, c.Sweep.QEnd, c.Sweep.QStep)
}

// NoiseEstimator returns the blind noise estimator built from the noise section.
func (c *Config) NoiseEstimator() noise.Estimator {
	return noise.Estimator{
		MADScale:      c.Noise.MADScale,
		KernelDivisor: c.Noise.KernelDivisor,
		Calibration:   c.Noise.Calibration,
	}
}

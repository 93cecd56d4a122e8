package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vstrd/pkg/metrics"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	p, err := cfg.VSTParams()
	require.NoError(t, err)
	assert.Equal(t, 8.39, p.A())
	assert.Equal(t, 1.2, p.B())
	assert.Equal(t, 1.0, p.Epsilon())

	sel, err := cfg.MetricSelection()
	require.NoError(t, err)
	assert.Equal(t, metrics.KindPSNR, sel.OperatingPoint)
	assert.Equal(t, 0.2, sel.Tunables.MaskingK)
}

func TestLoadConfigMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vstrd.yaml")
	cfg := DefaultConfig()
	cfg.VST.A = 10
	cfg.Sweep.QStart = 25
	cfg.Metrics.Compute = []string{"ssim"}
	cfg.Metrics.OperatingPoint = "psnr_hvsm"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vstrd.yaml")
	yaml := "vst:\n  b: 1.5\nsweep:\n  qStart: 30\n  qEnd: 34\n  qStep: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8.39, cfg.VST.A)
	assert.Equal(t, 1.5, cfg.VST.B)

	sweep, err := cfg.SweepRange()
	require.NoError(t, err)
	assert.Equal(t, []int{30, 32, 34}, sweep.Levels())
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vstrd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vst: [1, 2"), 0644))
	_, err := LoadConfig(path)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestNewSweep(t *testing.T) {
	tests := []struct {
		name             string
		start, end, step int
		want             []int
		shouldFail       bool
	}{
		{"single", 30, 30, 1, []int{30}, false},
		{"stepped", 20, 30, 5, []int{20, 25, 30}, false},
		{"end not on step", 20, 29, 5, []int{20, 25}, false},
		{"zero step", 20, 30, 0, nil, true},
		{"negative step", 30, 20, -5, nil, true},
		{"end below start", 30, 20, 1, nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewSweep(tc.start, tc.end, tc.step)
			if tc.shouldFail {
				assert.True(t, errors.Is(err, ErrConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, s.Levels())
		})
	}
}

func TestInvalidSections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"b not above one", func(c *Config) { c.VST.B = 1 }},
		{"zero epsilon", func(c *Config) { c.VST.Epsilon = 0 }},
		{"zero step", func(c *Config) { c.Sweep.QStep = 0 }},
		{"unknown metric", func(c *Config) { c.Metrics.Compute = []string{"psnr", "vmaf"} }},
		{"unknown oop metric", func(c *Config) { c.Metrics.OperatingPoint = "bpp" }},
		{"negative masking", func(c *Config) { c.Metrics.MaskingK = -1 }},
		{"unknown codec", func(c *Config) { c.Codec.Name = "jpeg" }},
		{"no workers", func(c *Config) { c.Runtime.Workers = 0 }},
		{"negative timeout", func(c *Config) { c.Codec.TimeoutSeconds = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.True(t, errors.Is(cfg.Validate(), ErrConfig))
		})
	}
}

func TestMetricSelectionAddsOperatingPointMetric(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics.Compute = []string{"ssim"}
	cfg.Metrics.OperatingPoint = "psnr_hvsm"

	sel, err := cfg.MetricSelection()
	require.NoError(t, err)
	assert.Equal(t, []metrics.Kind{metrics.KindSSIM, metrics.KindPSNRHVSM}, sel.Metrics)
}

func TestNoiseEstimatorFromConfig(t *testing.T) {
	est := DefaultConfig().NoiseEstimator()
	assert.Equal(t, 1.4826, est.MADScale)
	assert.Equal(t, 20.0, est.KernelDivisor)
	assert.Equal(t, 4.5, est.Calibration)
}

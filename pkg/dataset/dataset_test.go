package dataset

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestQuantizeRoundTrip(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{10, 20, 30, 40, 50, 60})
	gray, lo, hi := Quantize8(m)
	assert.Equal(t, 10.0, lo)
	assert.Equal(t, 60.0, hi)
	assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), gray.GrayAt(2, 1).Y)

	back := FirstChannel(gray)
	Dequantize8(back, lo, hi)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, m.At(i, j), back.At(i, j), (hi-lo)/255+1e-9)
		}
	}
}

func TestQuantizeConstant(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{7, 7, 7, 7})
	gray, lo, hi := Quantize8(m)
	for _, p := range gray.Pix {
		assert.Equal(t, uint8(0), p)
	}
	back := FirstChannel(gray)
	Dequantize8(back, lo, hi)
	assert.Equal(t, 7.0, mat.Max(back))
}

func TestFirstChannelRGB(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 12, G: 200, B: 3, A: 255})
	img.Set(1, 0, color.RGBA{R: 250, G: 1, B: 2, A: 255})
	m := FirstChannel(img)
	assert.Equal(t, []float64{12, 250}, m.RawRowView(0))
}

func TestFromImage(t *testing.T) {
	g16 := image.NewGray16(image.Rect(0, 0, 2, 1))
	g16.SetGray16(0, 0, color.Gray16{Y: 4000})
	g16.SetGray16(1, 0, color.Gray16{Y: 65535})
	assert.Equal(t, []float64{4000, 65535}, FromImage(g16).RawRowView(0))

	rgb := image.NewRGBA(image.Rect(0, 0, 1, 1))
	rgb.Set(0, 0, color.RGBA{R: 30, G: 60, B: 90, A: 255})
	assert.Equal(t, 60.0, FromImage(rgb).At(0, 0))
}

func TestCrop(t *testing.T) {
	m := mat.NewDense(3, 4, []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
	})
	c, ok := Crop(m, 2, 3)
	require.True(t, ok)
	assert.True(t, mat.Equal(c, mat.NewDense(2, 3, []float64{1, 2, 3, 5, 6, 7})))

	_, ok = Crop(m, 4, 1)
	assert.False(t, ok)
}

func TestLoadFilePNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slice.png")

	img := image.NewGray(image.Rect(0, 0, 4, 3))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 10)
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	m, err := LoadFile(path)
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 4, c)
	assert.Equal(t, 110.0, m.At(2, 3))
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.tif"))
	assert.True(t, errors.Is(err, ErrData))

	path := filepath.Join(t.TempDir(), "garbage.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))
	_, err = LoadFile(path)
	assert.True(t, errors.Is(err, ErrData))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".tif", Extension("/data/SAR.TIF"))
	assert.Equal(t, ".png", Extension("noext"))
}

func TestSyntheticPattern(t *testing.T) {
	clean, noised, err := Synthetic(0, 101, 101, 1)
	require.NoError(t, err)
	assert.True(t, mat.Equal(clean, noised))

	// corner (0,0) is the gradient minimum
	assert.Equal(t, 50.0, clean.At(0, 0))
	// bright disc centre at (0.6, 0.6)
	assert.InDelta(t, 100*1.2+50+150, clean.At(60, 60), 1e-9)
	// dark square centre at (0.3, 0.3)
	assert.Equal(t, 1.0, clean.At(30, 30))
}

func TestSyntheticSpeckleStatistics(t *testing.T) {
	clean, noised, err := Synthetic(0.25, 128, 128, 42)
	require.NoError(t, err)

	ratio := make([]float64, 0, 128*128)
	for i := 0; i < 128; i++ {
		for j := 0; j < 128; j++ {
			ratio = append(ratio, noised.At(i, j)/clean.At(i, j))
		}
	}
	mean, std := stat.PopMeanStdDev(ratio, nil)
	assert.InDelta(t, 1.0, mean, 0.02)
	assert.InDelta(t, 0.25, std, 0.02)
	assert.Greater(t, mat.Min(noised), 0.0)

	// Same seed, same speckle.
	_, again, err := Synthetic(0.25, 128, 128, 42)
	require.NoError(t, err)
	assert.True(t, mat.Equal(noised, again))
}

func TestSyntheticRejectsBadShape(t *testing.T) {
	_, _, err := Synthetic(0.1, 1, 10, 1)
	assert.True(t, errors.Is(err, ErrData))
}

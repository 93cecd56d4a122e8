package dataset

import (
	"image"
	"image/color"

	"gonum.org/v1/gonum/mat"
)

// Quantize8 maps img linearly onto 0..255 using its own minimum and maximum,
// truncating toward zero. A constant image maps to all zeros.
// The returned lo and hi undo the mapping with Dequantize8.
func Quantize8(img mat.Matrix) (gray *image.Gray, lo, hi float64) {
	rows, cols := img.Dims()
	gray = image.NewGray(image.Rect(0, 0, cols, rows))
	lo, hi = mat.Min(img), mat.Max(img)
	if hi == lo {
		return gray, lo, hi
	}
	span := hi - lo
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := (img.At(y, x) - lo) / span * 255
			if v > 255 {
				v = 255
			}
			gray.Pix[y*gray.Stride+x] = uint8(v)
		}
	}
	return gray, lo, hi
}

// Dequantize8 maps 8-bit samples back onto [lo, hi] in place.
func Dequantize8(m *mat.Dense, lo, hi float64) {
	m.Apply(func(_, _ int, v float64) float64 {
		return v/255.0*(hi-lo) + lo
	}, m)
}

// FirstChannel returns the first channel of img as an 8-bit valued matrix.
// Grayscale images give their luma, colour images their red channel, which is
// what a decoder emits when it expands a grayscale stream to RGB.
func FirstChannel(img image.Image) *mat.Dense {
	b := img.Bounds()
	out := mat.NewDense(b.Dy(), b.Dx(), nil)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v uint8
			switch c := img.At(x, y).(type) {
			case color.Gray:
				v = c.Y
			default:
				r, _, _, _ := c.RGBA()
				v = uint8(r >> 8)
			}
			out.Set(y-b.Min.Y, x-b.Min.X, float64(v))
		}
	}
	return out
}

// FromImage converts a decoded image to intensities. 8- and 16-bit grayscale
// images keep their raw sample values; colour images are averaged over R, G
// and B at 8-bit precision.
func FromImage(img image.Image) *mat.Dense {
	b := img.Bounds()
	out := mat.NewDense(b.Dy(), b.Dx(), nil)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v float64
			switch c := img.At(x, y).(type) {
			case color.Gray:
				v = float64(c.Y)
			case color.Gray16:
				v = float64(c.Y)
			default:
				r, g, bl, _ := c.RGBA()
				v = (float64(r>>8) + float64(g>>8) + float64(bl>>8)) / 3
			}
			out.Set(y-b.Min.Y, x-b.Min.X, v)
		}
	}
	return out
}

// Crop returns the top-left rows x cols region of m as a new matrix.
// It reports false if m is smaller than the requested region.
func Crop(m mat.Matrix, rows, cols int) (*mat.Dense, bool) {
	r, c := m.Dims()
	if r < rows || c < cols {
		return nil, false
	}
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(i, j))
		}
	}
	return out, true
}

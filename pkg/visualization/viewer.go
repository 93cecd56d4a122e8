// Package visualization renders images and error maps produced by an analysis
// and writes them to disk.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"vstrd/pkg/dataset"
)

// Gray renders img as 8-bit grayscale, mapping its [min, max] range onto [0, 255].
func Gray(img mat.Matrix) *image.Gray {
	g, _, _ := dataset.Quantize8(img)
	return g
}

// ErrorMapImage renders a relative error map. Values are already grey levels
// centred on 128 and are only rounded and clipped.
func ErrorMapImage(errMap mat.Matrix) *image.Gray {
	rows, cols := errMap.Dims()
	g := image.NewGray(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := math.Round(errMap.At(y, x))
			g.SetGray(x, y, color.Gray{Y: uint8(math.Max(0, math.Min(255, v)))})
		}
	}
	return g
}

// Save writes img to filename, as JPEG for .jpg/.jpeg and as PNG otherwise.
func Save(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch dataset.Extension(filename) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(file, img)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filename, err)
	}
	return file.Close()
}

// panel is a named image queued for export.
type panel struct {
	Name  string
	Image image.Image
}

// Viewer collects the panels of one result so they can be saved together.
type Viewer struct {
	panels []panel
}

// NewViewer creates an empty viewer.
func NewViewer() *Viewer {
	return &Viewer{}
}

// AddImage renders img with Gray and queues it under name.
func (v *Viewer) AddImage(name string, img mat.Matrix) {
	v.panels = append(v.panels, panel{Name: name, Image: Gray(img)})
}

// AddErrorMap queues a relative error map under name.
func (v *Viewer) AddErrorMap(name string, errMap mat.Matrix) {
	v.panels = append(v.panels, panel{Name: name, Image: ErrorMapImage(errMap)})
}

// ExtractRegion returns a copy of the rows x cols region of img starting at (row, col).
func ExtractRegion(img mat.Matrix, row, col, rows, cols int) (*mat.Dense, error) {
	if row < 0 || col < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("region size must be positive")
	}
	r, c := img.Dims()
	if row+rows > r || col+cols > c {
		return nil, fmt.Errorf("region extends beyond the %dx%d image", r, c)
	}
	region := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			region.Set(i, j, img.At(row+i, col+j))
		}
	}
	return region, nil
}

// SaveAll writes every panel to outputDir as <name><ext> and returns the
// written paths. ext selects the format as in Save and defaults to ".png".
func (v *Viewer) SaveAll(outputDir, ext string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}
	if ext == "" {
		ext = ".png"
	}

	paths := make([]string, 0, len(v.panels))
	for _, p := range v.panels {
		filename := filepath.Join(outputDir, p.Name+ext)
		if err := Save(p.Image, filename); err != nil {
			return paths, err
		}
		paths = append(paths, filename)
	}
	return paths, nil
}

// Package dataset provides the images an analysis runs on: files loaded from
// disk (TIFF, PNG, JPEG) and a synthetic speckled test pattern, plus the
// conversions between float images and 8-bit rasters used around the codec.
package dataset

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/tiff"
	"gonum.org/v1/gonum/mat"
)

// LoadFile reads a single-channel intensity image from path.
// Missing files and undecodable content are reported as ErrData.
func LoadFile(path string) (*mat.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrData, err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrData, path, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: %s has no pixels", ErrData, path)
	}

	log.WithFields(log.Fields{
		"path":   path,
		"format": format,
		"width":  b.Dx(),
		"height": b.Dy(),
	}).Debug("loaded image")
	return FromImage(img), nil
}

// Extension returns the lower-case extension of path, defaulting to ".png".
func Extension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return ".png"
	}
	return ext
}

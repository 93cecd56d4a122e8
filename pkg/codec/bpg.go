package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"vstrd/pkg/dataset"
)

// BPGConfig locates the BPG command line tools.
type BPGConfig struct {
	// Dir holds bpgenc and bpgdec. Ignored for tools given with an explicit path.
	Dir string

	// Encoder and Decoder override the tool paths
	Encoder string
	Decoder string

	// TempDir is where per-call working directories are created (os.TempDir when empty)
	TempDir string

	// BitDepth is passed to bpgenc -b
	BitDepth int
}

// BPG runs the external bpgenc/bpgdec programs. Every call works in its own
// temporary directory, so one BPG value can serve concurrent sweeps.
type BPG struct {
	encoder  string
	decoder  string
	tempDir  string
	bitDepth int
}

// NewBPG returns a BPG codec. Missing executables are only warned about here;
// calls will then fail with a codec error.
func NewBPG(cfg BPGConfig) *BPG {
	b := &BPG{
		encoder:  toolPath(cfg.Dir, cfg.Encoder, "bpgenc"),
		decoder:  toolPath(cfg.Dir, cfg.Decoder, "bpgdec"),
		tempDir:  cfg.TempDir,
		bitDepth: cfg.BitDepth,
	}
	if b.bitDepth <= 0 {
		b.bitDepth = 8
	}
	for _, tool := range []string{b.encoder, b.decoder} {
		if _, err := exec.LookPath(tool); err != nil {
			log.WithField("tool", tool).Warn("BPG tool not found")
		}
	}
	return b
}

func toolPath(dir, explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// Name implements Codec.
func (b *BPG) Name() string { return "bpg" }

// CompressDecompress implements Codec. The image is min–max normalised to 8
// bits, written as PNG, encoded, decoded and mapped back to its original range.
func (b *BPG) CompressDecompress(ctx context.Context, img mat.Matrix, q int) (*Result, error) {
	rows, cols := img.Dims()
	work, err := os.MkdirTemp(b.tempDir, "bpg-*")
	if err != nil {
		return nil, &Error{Op: "encode", Quality: q, Err: err}
	}
	defer os.RemoveAll(work)

	gray, lo, hi := dataset.Quantize8(img)
	input := filepath.Join(work, "input.png")
	stream := filepath.Join(work, "output.bpg")
	decodedPath := filepath.Join(work, "decoded.png")

	if err := writePNG(input, gray); err != nil {
		return nil, &Error{Op: "encode", Quality: q, Err: err}
	}
	size, err := b.encode(ctx, input, stream, q)
	if err != nil {
		return nil, err
	}
	if err := b.run(ctx, "decode", q, b.decoder, "-o", decodedPath, stream); err != nil {
		return nil, err
	}

	decoded, err := readPNG(decodedPath)
	if err != nil {
		return nil, &Error{Op: "read", Quality: q, Err: err}
	}
	plane, ok := dataset.Crop(dataset.FirstChannel(decoded), rows, cols)
	if !ok {
		bounds := decoded.Bounds()
		return nil, &Error{Op: "shape", Quality: q,
			Err: fmt.Errorf("decoded %dx%d is smaller than input %dx%d", bounds.Dy(), bounds.Dx(), rows, cols)}
	}
	dataset.Dequantize8(plane, lo, hi)

	return &Result{
		Decoded:      plane,
		EncodedSize:  size,
		BitsPerPixel: bitsPerPixel(size, rows, cols),
	}, nil
}

// SaveToFile implements Codec.
func (b *BPG) SaveToFile(ctx context.Context, img mat.Matrix, q int, path string) (int64, error) {
	work, err := os.MkdirTemp(b.tempDir, "bpg-*")
	if err != nil {
		return 0, &Error{Op: "encode", Quality: q, Err: err}
	}
	defer os.RemoveAll(work)

	gray, _, _ := dataset.Quantize8(img)
	input := filepath.Join(work, "input.png")
	if err := writePNG(input, gray); err != nil {
		return 0, &Error{Op: "encode", Quality: q, Err: err}
	}
	return b.encode(ctx, input, path, q)
}

// encode runs bpgenc and returns the size of the produced stream.
func (b *BPG) encode(ctx context.Context, input, output string, q int) (int64, error) {
	err := b.run(ctx, "encode", q, b.encoder,
		"-q", strconv.Itoa(q), "-b", strconv.Itoa(b.bitDepth), "-o", output, input)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(output)
	if err != nil {
		return 0, &Error{Op: "encode", Quality: q, Err: errors.New("encoder did not produce an output file")}
	}
	return info.Size(), nil
}

func (b *BPG) run(ctx context.Context, op string, q int, tool string, args ...string) error {
	cmd := exec.CommandContext(ctx, tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.WithField("cmd", tool+" "+strings.Join(args, " ")).Debug("running BPG tool")
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &Error{Op: op, Quality: q, Err: err}
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func readPNG(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return png.Decode(file)
}

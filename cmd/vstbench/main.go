package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"vstrd/pkg/codec"
	"vstrd/pkg/config"
	"vstrd/pkg/dataset"
	"vstrd/pkg/vst"
)

func main() {
	configPath := flag.String("config", "config.yaml", "YAML configuration file (defaults are used when missing)")
	input := flag.String("input", "", "Image to benchmark with; a random image is used when empty or unreadable")
	size := flag.Int("size", 512, "Edge length of the random image")
	iterations := flag.Int("iterations", 100, "Timed iterations")
	warmup := flag.Int("warmup", 5, "Untimed warmup iterations")
	quality := flag.Int("q", 30, "Codec quality level")
	codecName := flag.String("codec", "", "Codec to time: bpg or mock (overrides the configuration)")
	cpuProfile := flag.Bool("cpuprofile", false, "Write a CPU profile to the working directory")
	memProfile := flag.Bool("memprofile", false, "Write a heap profile to the working directory")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *codecName != "" {
		cfg.Codec.Name = *codecName
	}
	params, err := cfg.VSTParams()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	var c codec.Codec
	switch cfg.Codec.Name {
	case "mock":
		c = codec.NewMock()
	case "bpg":
		c = codec.NewBPG(codec.BPGConfig{Dir: cfg.Codec.BPGDir, TempDir: cfg.Codec.TempDir, BitDepth: cfg.Codec.BitDepth})
	default:
		log.Fatalf("Unknown codec %q", cfg.Codec.Name)
	}

	image := loadOrGenerate(*input, *size)
	rows, cols := image.Dims()
	fmt.Printf("Image shape: %dx%d\n", rows, cols)

	// stopProfile must run before any exit so the profile is flushed.
	stopProfile := startProfile(*cpuProfile, *memProfile, ".")
	defer stopProfile()

	forwardTimes := make([]float64, 0, *iterations)
	codecTimes := make([]float64, 0, *iterations)
	inverseTimes := make([]float64, 0, *iterations)

	fmt.Printf("Starting benchmark (%d iterations)...\n", *iterations)
	ctx := context.Background()
	total := *iterations + *warmup
	for i := 0; i < total; i++ {
		t0 := time.Now()
		transformed := vst.Forward(image, params)
		forward := time.Since(t0)

		t1 := time.Now()
		res, err := c.CompressDecompress(ctx, transformed, *quality)
		if err != nil {
			stopProfile()
			log.Fatalf("Codec failed: %v", err)
		}
		coding := time.Since(t1)

		t2 := time.Now()
		vst.Inverse(res.Decoded, params)
		inverse := time.Since(t2)

		if i >= *warmup {
			forwardTimes = append(forwardTimes, milliseconds(forward))
			codecTimes = append(codecTimes, milliseconds(coding))
			inverseTimes = append(inverseTimes, milliseconds(inverse))
		}
		if (i+1)%10 == 0 {
			fmt.Printf("Iteration %d/%d\n", i+1, total)
		}
	}
	if len(forwardTimes) == 0 {
		return
	}

	fmt.Println("\nBenchmark Results (Avg ± Std Dev):")
	fmt.Println(strings.Repeat("-", 40))
	fMean := printTiming("Forward VST", forwardTimes)
	cMean := printTiming(fmt.Sprintf("%s codec", strings.ToUpper(c.Name())), codecTimes)
	iMean := printTiming("Inverse VST", inverseTimes)
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("%-12s: %.4f ms\n", "Total Loop", fMean+cMean+iMean)
}

// startProfile starts a CPU or heap profile writing to dir and returns the
// function stopping it. With neither enabled the returned function does nothing.
func startProfile(cpu, mem bool, dir string) func() {
	switch {
	case cpu:
		return profile.Start(profile.CPUProfile, profile.ProfilePath(dir), profile.NoShutdownHook, profile.Quiet).Stop
	case mem:
		return profile.Start(profile.MemProfileHeap, profile.ProfilePath(dir), profile.NoShutdownHook, profile.Quiet).Stop
	}
	return func() {}
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func printTiming(label string, samples []float64) float64 {
	mean, std := stat.PopMeanStdDev(samples, nil)
	fmt.Printf("%-12s: %.4f ms ± %.4f ms\n", label, mean, std)
	return mean
}

// loadOrGenerate loads path, or returns a size x size image of uniform
// values in [0, 1) when path is empty or cannot be read.
func loadOrGenerate(path string, size int) *mat.Dense {
	if path != "" {
		img, err := dataset.LoadFile(path)
		if err == nil {
			return img
		}
		log.WithError(err).Warn("Could not load image, generating a random one")
	}
	rng := rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	data := make([]float64, size*size)
	for i := range data {
		data[i] = rng.Float64()
	}
	return mat.NewDense(size, size, data)
}

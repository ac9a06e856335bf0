// Package anim assembles rendered frames into a looping GIF.
package anim

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/ericpauley/go-quantize/quantize"
)

// Assembler encodes ordered PNG frames into one animated GIF with a uniform
// frame delay and an infinite loop.
type Assembler struct {
	delay  time.Duration
	logger *slog.Logger
}

// NewAssembler builds an assembler with the given per-frame display duration.
func NewAssembler(delay time.Duration, logger *slog.Logger) *Assembler {
	return &Assembler{delay: delay, logger: logger}
}

// Assemble reads the frames in order and writes the GIF to outPath. The
// frame order of the output equals the input order.
func (a *Assembler) Assemble(framePaths []string, outPath string) error {
	if len(framePaths) == 0 {
		return fmt.Errorf("no frames to assemble")
	}

	// GIF delays are in hundredths of a second.
	delayCS := int(a.delay / (10 * time.Millisecond))
	if delayCS < 1 {
		delayCS = 1
	}

	out := &gif.GIF{LoopCount: 0} // 0 = loop forever
	quantizer := quantize.MedianCutQuantizer{}

	for _, path := range framePaths {
		frame, err := loadFrame(path)
		if err != nil {
			return err
		}

		palette := quantizer.Quantize(make([]color.Color, 0, 256), frame)
		paletted := image.NewPaletted(frame.Bounds(), palette)
		draw.FloydSteinberg.Draw(paletted, frame.Bounds(), frame, frame.Bounds().Min)

		out.Image = append(out.Image, paletted)
		out.Delay = append(out.Delay, delayCS)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create animation file: %w", err)
	}
	err = gif.EncodeAll(f, out)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("encode animation: %w", err)
	}

	a.logger.Info("animation assembled", "path", outPath,
		"frames", len(framePaths), "delay", a.delay)
	return nil
}

func loadFrame(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	return img, nil
}

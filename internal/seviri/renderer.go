package seviri

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/fbattini/meteosat-europe-bot/internal/domain"
)

// DefaultResolution is the plate-carree grid spacing in degrees per pixel.
const DefaultResolution = 0.05

// Renderer turns native raw files into natural-colour PNG frames over a
// fixed area of interest.
type Renderer struct {
	bbox       domain.BoundingBox
	resolution float64
	frameWidth int
	logger     *slog.Logger
}

// NewRenderer builds a renderer for the given extent. frameWidth is the
// output frame width in pixels; height follows the extent's aspect ratio.
func NewRenderer(bbox domain.BoundingBox, frameWidth int, logger *slog.Logger) *Renderer {
	return &Renderer{
		bbox:       bbox,
		resolution: DefaultResolution,
		frameWidth: frameWidth,
		logger:     logger,
	}
}

// Render decodes natPath, renders the composite, scales it to the frame
// size, and writes it as PNG to outPath. The returned warnings are the
// decode-time warnings of the scene; a raised quality flag shows up there,
// not as an error.
func (r *Renderer) Render(natPath, outPath string) ([]string, error) {
	scene, err := DecodeFile(natPath)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", natPath, err)
	}

	full, err := scene.NaturalColor(r.bbox, r.resolution)
	if err != nil {
		return scene.Warnings, err
	}

	frame := r.scaleToFrame(full)

	f, err := os.Create(outPath)
	if err != nil {
		return scene.Warnings, fmt.Errorf("create frame file: %w", err)
	}
	err = png.Encode(f, frame)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return scene.Warnings, fmt.Errorf("write frame %s: %w", outPath, err)
	}

	r.logger.Debug("frame rendered", "raw", natPath, "frame", outPath,
		"warnings", len(scene.Warnings))
	return scene.Warnings, nil
}

func (r *Renderer) scaleToFrame(src *image.RGBA) *image.RGBA {
	sb := src.Bounds()
	if sb.Dx() == r.frameWidth {
		return src
	}
	height := sb.Dy() * r.frameWidth / sb.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, r.frameWidth, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)
	return dst
}

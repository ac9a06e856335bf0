package seviri

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fbattini/meteosat-europe-bot/internal/domain"
)

// naturalColorBands maps composite channels to SEVIRI bands: red from the
// 1.6 um near-infrared, green from 0.8 um, blue from 0.6 um.
var naturalColorBands = [3]string{IR016, VIS008, VIS006}

// NaturalColor renders the scene as a natural-colour composite on a
// plate-carree grid covering bbox at the given resolution (degrees per
// pixel). Pixels outside the visible disc come out black.
func (s *Scene) NaturalColor(bbox domain.BoundingBox, resolution float64) (*image.RGBA, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("resolution must be positive, got %g", resolution)
	}
	for _, band := range naturalColorBands {
		if _, ok := s.Grids[band]; !ok {
			return nil, fmt.Errorf("natural colour needs band %s, not in scene", band)
		}
	}

	width := int((bbox.East-bbox.West)/resolution + 0.5)
	height := int((bbox.North-bbox.South)/resolution + 0.5)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("empty target grid for bbox %s", bbox)
	}

	grid := newGeosGrid(s.Header.SubLon, s.Header.Columns, s.Header.Lines)
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for py := 0; py < height; py++ {
		lat := bbox.North - (float64(py)+0.5)*resolution
		for px := 0; px < width; px++ {
			lon := bbox.West + (float64(px)+0.5)*resolution

			col, line, ok := grid.pixel(lat, lon)
			if !ok {
				img.SetRGBA(px, py, color.RGBA{A: 0xFF})
				continue
			}
			// Nearest neighbour: SEVIRI sampling is finer than the target
			// grid over Europe, so interpolation buys little.
			c := int(col + 0.5)
			l := int(line + 0.5)

			var rgb [3]uint8
			for i, band := range naturalColorBands {
				rgb[i] = s.reflectanceByte(band, c, l)
			}
			img.SetRGBA(px, py, color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xFF})
		}
	}
	return img, nil
}

// reflectanceByte calibrates one count to percent reflectance and scales it
// to 0-255. Bands without calibration coefficients fall back to a linear
// stretch of the 10-bit range.
func (s *Scene) reflectanceByte(band string, col, line int) uint8 {
	count := float64(s.Grids[band].At(col, line))

	var refl float64
	if cal, ok := s.Header.Calibration[band]; ok {
		refl = cal.Slope*count + cal.Offset
	} else {
		refl = count / 1023 * 100
	}

	v := refl * 255 / 100
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

// Command genscene writes synthetic native-format scenes for exercising the
// decoder, renderer, and pipeline without EUMETSAT credentials. It uses the
// actual encoder subset so the fixtures match real decode behavior.
//
// Usage:
//
//	go run ./cmd/genscene -out testdata/scenes -frames 4
//	go run ./cmd/genscene -out /tmp/fixture -frames 8 -archive product.zip
package main

import (
	"archive/zip"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/fbattini/meteosat-europe-bot/internal/seviri"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "directory to write .nat scene files into")
	frames := flag.Int("frames", 4, "number of scenes to generate")
	size := flag.Int("size", 1856, "grid lines and columns per scene")
	subLon := flag.Float64("sublon", 0.0, "sub-satellite longitude in degrees")
	archive := flag.String("archive", "", "also bundle the scenes into this zip file inside -out")
	flagLines := flag.Bool("flag-quality", false, "set the quality flag on a band of the last scene")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *frames < 1 || *size < 2 {
		return fmt.Errorf("need at least 1 frame and a 2x2 grid")
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var paths []string
	for i := 0; i < *frames; i++ {
		scene := buildScene(*size, *subLon, i, *frames)

		var flagged func(band string, line int) bool
		if *flagLines && i == *frames-1 {
			flagged = func(band string, line int) bool {
				return band == seviri.VIS006 && line%97 == 0
			}
		}

		path := filepath.Join(*outDir, fmt.Sprintf("scene_%03d.nat", i))
		if err := writeScene(path, scene, flagged); err != nil {
			return err
		}
		paths = append(paths, path)
		log.Printf("wrote %s (%dx%d, %d bands)", path, *size, *size, len(scene.Header.SelectedBands))
	}

	if *archive != "" {
		archivePath := filepath.Join(*outDir, *archive)
		if err := writeArchive(archivePath, paths); err != nil {
			return err
		}
		log.Printf("wrote archive: %s", archivePath)
	}
	return nil
}

// buildScene fills the three natural-colour bands with a disc-shaped
// gradient plus a drifting wave pattern, so consecutive frames animate.
func buildScene(size int, subLon float64, frame, totalFrames int) *seviri.Scene {
	bands := []string{seviri.VIS006, seviri.VIS008, seviri.IR016}

	header := seviri.Header{
		Satellite:     "MSG4",
		Lines:         size,
		Columns:       size,
		SelectedBands: bands,
		SubLon:        subLon,
		Calibration:   map[string]seviri.Calibration{},
	}
	for _, band := range bands {
		header.Calibration[band] = seviri.Calibration{Slope: 100.0 / 1023.0, Offset: 0}
	}

	phase := 2 * math.Pi * float64(frame) / float64(totalFrames)
	center := float64(size-1) / 2
	maxR := center

	scene := &seviri.Scene{Header: header, Grids: map[string]*seviri.Grid{}}
	for b, band := range bands {
		samples := make([]uint16, size*size)
		for line := 0; line < size; line++ {
			for col := 0; col < size; col++ {
				dx := (float64(col) - center) / maxR
				dy := (float64(line) - center) / maxR
				r := math.Sqrt(dx*dx + dy*dy)
				if r > 1 {
					continue // off-disc space stays zero
				}

				// Limb darkening plus a band-shifted travelling wave.
				base := (1 - 0.6*r) * 700
				wave := 150 * math.Sin(8*dx+phase+float64(b)) * math.Cos(6*dy+phase)
				v := base + wave
				if v < 0 {
					v = 0
				}
				if v > 1023 {
					v = 1023
				}
				samples[line*size+col] = uint16(v)
			}
		}
		scene.Grids[band] = &seviri.Grid{Columns: size, Lines: size, Samples: samples}
	}
	return scene
}

func writeScene(path string, scene *seviri.Scene, flagged func(band string, line int) bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create scene file: %w", err)
	}
	err = seviri.Encode(f, scene, flagged)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

func writeArchive(archivePath string, scenePaths []string) error {
	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, path := range scenePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read scene: %w", err)
		}
		entry, err := w.Create(filepath.Base(path))
		if err != nil {
			return fmt.Errorf("create archive entry: %w", err)
		}
		if _, err := entry.Write(data); err != nil {
			return fmt.Errorf("write archive entry: %w", err)
		}
	}
	return w.Close()
}

package seviri

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Encode writes a scene in the native subset layout. It exists for the
// fixture generator (cmd/genscene) and for decoder tests; production runs
// only ever decode.
//
// flagged, when non-nil, selects the line records that get the quality flag
// byte set.
func Encode(w io.Writer, scene *Scene, flagged func(band string, line int) bool) error {
	bw := bufio.NewWriter(w)
	h := scene.Header

	if err := encodeHeader(bw, h); err != nil {
		return err
	}

	recordHdr := make([]byte, 4)
	for line := 0; line < h.Lines; line++ {
		for _, band := range h.SelectedBands {
			grid, ok := scene.Grids[band]
			if !ok {
				return fmt.Errorf("scene has no grid for selected band %s", band)
			}

			recordHdr[0] = byte(bandIndex(band))
			recordHdr[1] = 0
			if flagged != nil && flagged(band, line) {
				recordHdr[1] = lineFlagQuality
			}
			binary.BigEndian.PutUint16(recordHdr[2:4], uint16(line))

			if _, err := bw.Write(recordHdr); err != nil {
				return fmt.Errorf("write line record: %w", err)
			}
			if _, err := bw.Write(pack10(grid.Samples[line*h.Columns : (line+1)*h.Columns])); err != nil {
				return fmt.Errorf("write line data: %w", err)
			}
		}
	}
	return bw.Flush()
}

func encodeHeader(bw *bufio.Writer, h Header) error {
	writeKV := func(key, value string) {
		fmt.Fprintf(bw, "%s : %s\n", key, value)
	}

	writeKV("FormatName", "NATIVE")
	if h.Satellite != "" {
		writeKV("SatelliteId", h.Satellite)
	}
	writeKV("NumberLinesVISIR", fmt.Sprint(h.Lines))
	writeKV("NumberColumnsVISIR", fmt.Sprint(h.Columns))
	writeKV("SubLon", fmt.Sprintf("%g", h.SubLon))
	writeKV("SelectedBandIDs", bandMask(h.SelectedBands))

	bands := make([]string, 0, len(h.Calibration))
	for band := range h.Calibration {
		bands = append(bands, band)
	}
	sort.Strings(bands)
	for _, band := range bands {
		cal := h.Calibration[band]
		writeKV("CalSlope_"+band, fmt.Sprintf("%g", cal.Slope))
		writeKV("CalOffset_"+band, fmt.Sprintf("%g", cal.Offset))
	}

	if _, err := bw.WriteString(headerEndMarker + "\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func bandMask(selected []string) string {
	var sb strings.Builder
	for _, band := range bandOrder {
		if containsBand(selected, band) {
			sb.WriteByte('X')
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

func containsBand(bands []string, band string) bool {
	for _, b := range bands {
		if b == band {
			return true
		}
	}
	return false
}

func bandIndex(band string) int {
	for i, b := range bandOrder {
		if b == band {
			return i
		}
	}
	return -1
}

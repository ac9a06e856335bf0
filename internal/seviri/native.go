package seviri

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SEVIRI band names in instrument order. The natural-colour recipe needs the
// first three.
const (
	VIS006 = "VIS006"
	VIS008 = "VIS008"
	IR016  = "IR_016"
)

// bandOrder lists all twelve SEVIRI bands in the order the selected-band
// mask and the line records use.
var bandOrder = []string{
	VIS006, VIS008, IR016, "IR_039", "WV_062", "WV_073",
	"IR_087", "IR_097", "IR_108", "IR_120", "IR_134", "HRV",
}

// headerEndMarker terminates the ASCII preamble.
const headerEndMarker = "DataSetStart"

// lineFlagQuality marks a scan line that failed the on-board quality check.
const lineFlagQuality = 0x01

// Calibration holds the linear count-to-reflectance coefficients of one band.
type Calibration struct {
	Slope  float64
	Offset float64
}

// Header is the decoded ASCII preamble.
type Header struct {
	Satellite     string
	Lines         int
	Columns       int
	SelectedBands []string
	SubLon        float64
	Calibration   map[string]Calibration
}

// Grid is one band's counts, row-major with line 0 the southernmost.
type Grid struct {
	Columns int
	Lines   int
	Samples []uint16
}

// At returns the count at (col, line).
func (g *Grid) At(col, line int) uint16 {
	return g.Samples[line*g.Columns+col]
}

// Scene is one decoded raw file: per-band grids plus any decode-time
// warnings. Warnings never abort a decode; callers decide whether a warning
// (such as a raised quality flag) disqualifies the scene.
type Scene struct {
	Header   Header
	Grids    map[string]*Grid
	Warnings []string
}

// DecodeFile decodes a native file from disk.
func DecodeFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open native file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode decodes a native file from a reader.
func Decode(r io.Reader) (*Scene, error) {
	br := bufio.NewReader(r)

	header, err := decodeHeader(br)
	if err != nil {
		return nil, err
	}

	scene := &Scene{
		Header: header,
		Grids:  make(map[string]*Grid, len(header.SelectedBands)),
	}
	for _, band := range header.SelectedBands {
		scene.Grids[band] = &Grid{
			Columns: header.Columns,
			Lines:   header.Lines,
			Samples: make([]uint16, header.Columns*header.Lines),
		}
	}

	if err := decodePayload(br, scene); err != nil {
		return nil, err
	}
	return scene, nil
}

func decodeHeader(br *bufio.Reader) (Header, error) {
	h := Header{Calibration: make(map[string]Calibration)}
	slopes := make(map[string]float64)
	offsets := make(map[string]float64)

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return Header{}, fmt.Errorf("read header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == headerEndMarker {
			break
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return Header{}, fmt.Errorf("malformed header line %q", line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case key == "SatelliteId":
			h.Satellite = value
		case key == "NumberLinesVISIR":
			if h.Lines, err = strconv.Atoi(value); err != nil {
				return Header{}, fmt.Errorf("invalid NumberLinesVISIR %q", value)
			}
		case key == "NumberColumnsVISIR":
			if h.Columns, err = strconv.Atoi(value); err != nil {
				return Header{}, fmt.Errorf("invalid NumberColumnsVISIR %q", value)
			}
		case key == "SubLon":
			if h.SubLon, err = strconv.ParseFloat(value, 64); err != nil {
				return Header{}, fmt.Errorf("invalid SubLon %q", value)
			}
		case key == "SelectedBandIDs":
			if h.SelectedBands, err = parseBandMask(value); err != nil {
				return Header{}, err
			}
		case strings.HasPrefix(key, "CalSlope_"):
			band := strings.TrimPrefix(key, "CalSlope_")
			if slopes[band], err = strconv.ParseFloat(value, 64); err != nil {
				return Header{}, fmt.Errorf("invalid %s %q", key, value)
			}
		case strings.HasPrefix(key, "CalOffset_"):
			band := strings.TrimPrefix(key, "CalOffset_")
			if offsets[band], err = strconv.ParseFloat(value, 64); err != nil {
				return Header{}, fmt.Errorf("invalid %s %q", key, value)
			}
		}
		// Unknown keys are carried by real files and skipped here.
	}

	if h.Lines <= 0 || h.Columns <= 0 {
		return Header{}, fmt.Errorf("missing or invalid VISIR grid dimensions (%dx%d)", h.Columns, h.Lines)
	}
	if len(h.SelectedBands) == 0 {
		return Header{}, fmt.Errorf("no bands selected")
	}
	for band, slope := range slopes {
		h.Calibration[band] = Calibration{Slope: slope, Offset: offsets[band]}
	}
	return h, nil
}

func parseBandMask(mask string) ([]string, error) {
	if len(mask) != len(bandOrder) {
		return nil, fmt.Errorf("invalid SelectedBandIDs %q: want %d positions", mask, len(bandOrder))
	}
	var selected []string
	for i, c := range mask {
		switch c {
		case 'X':
			selected = append(selected, bandOrder[i])
		case '-':
		default:
			return nil, fmt.Errorf("invalid SelectedBandIDs %q: unexpected %q", mask, c)
		}
	}
	return selected, nil
}

func decodePayload(br *bufio.Reader, scene *Scene) error {
	h := scene.Header
	packedLen := packedSize(h.Columns)
	recordHdr := make([]byte, 4)
	packed := make([]byte, packedLen)
	flagged := make(map[string]bool)

	for line := 0; line < h.Lines; line++ {
		for _, band := range h.SelectedBands {
			if _, err := io.ReadFull(br, recordHdr); err != nil {
				return fmt.Errorf("read line record %d/%s: %w", line, band, err)
			}
			bandIdx := int(recordHdr[0])
			flags := recordHdr[1]
			lineNo := int(binary.BigEndian.Uint16(recordHdr[2:4]))

			if bandIdx >= len(bandOrder) || bandOrder[bandIdx] != band {
				return fmt.Errorf("corrupt line record: want band %s at line %d, got index %d", band, line, bandIdx)
			}
			if lineNo != line {
				return fmt.Errorf("corrupt line record: want line %d for band %s, got %d", line, band, lineNo)
			}

			if flags&lineFlagQuality != 0 && !flagged[band] {
				flagged[band] = true
				scene.Warnings = append(scene.Warnings,
					fmt.Sprintf("quality flag set for band %s (first at line %d)", band, line))
			}

			if _, err := io.ReadFull(br, packed); err != nil {
				return fmt.Errorf("read line data %d/%s: %w", line, band, err)
			}
			unpack10(packed, scene.Grids[band].Samples[line*h.Columns:(line+1)*h.Columns])
		}
	}
	return nil
}

// packedSize is the byte length of one line of 10-bit samples.
func packedSize(columns int) int {
	return (columns*10 + 7) / 8
}

// unpack10 expands big-endian 10-bit packed samples into dst.
func unpack10(src []byte, dst []uint16) {
	bit := 0
	for i := range dst {
		byteIdx := bit >> 3
		shift := bit & 7
		// A 10-bit sample spans two or three bytes depending on alignment.
		v := uint32(src[byteIdx]) << 16
		v |= uint32(src[byteIdx+1]) << 8
		if byteIdx+2 < len(src) {
			v |= uint32(src[byteIdx+2])
		}
		dst[i] = uint16(v >> (14 - shift) & 0x3FF)
		bit += 10
	}
}

// pack10 appends samples as big-endian 10-bit packed bytes. Used by Encode.
func pack10(samples []uint16) []byte {
	out := make([]byte, packedSize(len(samples)))
	bit := 0
	for _, s := range samples {
		v := uint32(s&0x3FF) << (14 - (bit & 7))
		byteIdx := bit >> 3
		out[byteIdx] |= byte(v >> 16)
		out[byteIdx+1] |= byte(v >> 8)
		if byteIdx+2 < len(out) {
			out[byteIdx+2] |= byte(v)
		}
		bit += 10
	}
	return out
}

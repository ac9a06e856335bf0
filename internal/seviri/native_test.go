package seviri

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testScene builds a small synthetic scene with the three solar bands.
func testScene(t *testing.T, columns, lines int) *Scene {
	t.Helper()
	scene := &Scene{
		Header: Header{
			Satellite:     "MSG4",
			Lines:         lines,
			Columns:       columns,
			SelectedBands: []string{VIS006, VIS008, IR016},
			SubLon:        0,
			Calibration: map[string]Calibration{
				VIS006: {Slope: 100.0 / 1023, Offset: 0},
				VIS008: {Slope: 100.0 / 1023, Offset: 0},
				IR016:  {Slope: 100.0 / 1023, Offset: 0},
			},
		},
		Grids: make(map[string]*Grid),
	}
	for bi, band := range scene.Header.SelectedBands {
		g := &Grid{Columns: columns, Lines: lines, Samples: make([]uint16, columns*lines)}
		for i := range g.Samples {
			// Distinct per-band values, full 10-bit range.
			g.Samples[i] = uint16((i*7 + bi*311) % 1024)
		}
		scene.Grids[band] = g
	}
	return scene
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	scene := testScene(t, 37, 11) // odd sizes exercise 10-bit packing alignment

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, scene, nil))

	decoded, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, scene.Header.Lines, decoded.Header.Lines)
	assert.Equal(t, scene.Header.Columns, decoded.Header.Columns)
	assert.Equal(t, scene.Header.SelectedBands, decoded.Header.SelectedBands)
	assert.Equal(t, scene.Header.Calibration, decoded.Header.Calibration)
	assert.Empty(t, decoded.Warnings)

	for _, band := range scene.Header.SelectedBands {
		if diff := cmp.Diff(scene.Grids[band].Samples, decoded.Grids[band].Samples); diff != "" {
			t.Errorf("band %s samples mismatch (-want +got):\n%s", band, diff)
		}
	}
}

func TestDecode_QualityFlagWarning(t *testing.T) {
	scene := testScene(t, 16, 8)

	var buf bytes.Buffer
	flagged := func(band string, line int) bool {
		return band == VIS008 && line >= 3
	}
	require.NoError(t, Encode(&buf, scene, flagged))

	decoded, err := Decode(&buf)
	require.NoError(t, err, "a quality flag is a warning, not a decode error")

	require.Len(t, decoded.Warnings, 1, "repeated flags on one band collapse to one warning")
	assert.Contains(t, strings.ToLower(decoded.Warnings[0]), "quality flag")
	assert.Contains(t, decoded.Warnings[0], VIS008)
}

func TestDecode_TruncatedPayload(t *testing.T) {
	scene := testScene(t, 16, 8)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, scene, nil))

	truncated := buf.Bytes()[:buf.Len()-20]
	_, err := Decode(bytes.NewReader(truncated))
	require.Error(t, err)
}

func TestDecode_CorruptLineRecord(t *testing.T) {
	scene := testScene(t, 16, 4)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, scene, nil))

	// Flip the band index of the first line record, right after the header.
	raw := buf.Bytes()
	hdrEnd := bytes.Index(raw, []byte(headerEndMarker)) + len(headerEndMarker) + 1
	raw[hdrEnd] = 0x0B // HRV index where VIS006 is expected

	_, err := Decode(bytes.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt line record")
}

func TestDecode_MissingDimensions(t *testing.T) {
	input := "FormatName : NATIVE\nSelectedBandIDs : XXX---------\n" + headerEndMarker + "\n"
	_, err := Decode(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid dimensions")
}

func TestDecode_UnknownHeaderKeysIgnored(t *testing.T) {
	scene := testScene(t, 8, 4)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, scene, nil))

	// Splice an unknown key into the header.
	raw := buf.String()
	raw = strings.Replace(raw, "FormatName : NATIVE\n",
		"FormatName : NATIVE\nPlannedAcquisitionTime : 2026-03-14\n", 1)

	decoded, err := Decode(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Header.Columns)
}

func TestParseBandMask(t *testing.T) {
	bands, err := parseBandMask("XXX---------")
	require.NoError(t, err)
	assert.Equal(t, []string{VIS006, VIS008, IR016}, bands)

	_, err = parseBandMask("XXX")
	require.Error(t, err)

	_, err = parseBandMask("XXZ---------")
	require.Error(t, err)
}

func TestPack10_Alignment(t *testing.T) {
	// Worst case for packing: max values at every alignment phase.
	samples := []uint16{1023, 0, 1023, 512, 1, 2, 3, 1023, 0}
	dst := make([]uint16, len(samples))
	unpack10(pack10(samples), dst)
	assert.Equal(t, samples, dst)
}

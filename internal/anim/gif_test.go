package anim

import (
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeSolidFrame writes a 20x10 PNG of one colour and returns its path.
func writeSolidFrame(t *testing.T, dir, name string, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestAssemble_OrderDelayAndLoop(t *testing.T) {
	dir := t.TempDir()
	frames := []string{
		writeSolidFrame(t, dir, "f1.png", color.RGBA{R: 255, A: 255}),
		writeSolidFrame(t, dir, "f2.png", color.RGBA{G: 255, A: 255}),
		writeSolidFrame(t, dir, "f3.png", color.RGBA{B: 255, A: 255}),
	}
	out := filepath.Join(dir, "anim.gif")

	a := NewAssembler(250*time.Millisecond, discardLogger())
	require.NoError(t, a.Assemble(frames, out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	g, err := gif.DecodeAll(f)
	require.NoError(t, err)

	require.Len(t, g.Image, 3)
	assert.Equal(t, 0, g.LoopCount, "animation must loop forever")
	for _, d := range g.Delay {
		assert.Equal(t, 25, d, "250ms is 25 hundredths")
	}

	// Frame order must match input order: red, green, blue.
	wantDominant := []color.RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
	}
	for i, frame := range g.Image {
		r, gr, b, _ := frame.At(10, 5).RGBA()
		want := wantDominant[i]
		assert.Equal(t, uint32(want.R)*0x101, r, "frame %d red", i)
		assert.Equal(t, uint32(want.G)*0x101, gr, "frame %d green", i)
		assert.Equal(t, uint32(want.B)*0x101, b, "frame %d blue", i)
	}
}

func TestAssemble_NoFrames(t *testing.T) {
	a := NewAssembler(250*time.Millisecond, discardLogger())
	err := a.Assemble(nil, filepath.Join(t.TempDir(), "anim.gif"))
	require.Error(t, err)
}

func TestAssemble_MinimumDelay(t *testing.T) {
	dir := t.TempDir()
	frame := writeSolidFrame(t, dir, "f.png", color.RGBA{R: 10, G: 20, B: 30, A: 255})
	out := filepath.Join(dir, "anim.gif")

	a := NewAssembler(time.Millisecond, discardLogger())
	require.NoError(t, a.Assemble([]string{frame}, out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Delay[0], "delay is clamped to one hundredth")
}

package domain

import (
	"fmt"
	"time"
)

// BoundingBox is a geographic west/south/east/north extent in degrees.
type BoundingBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// EuropeBBox is the broad Europe region the bot always searches.
var EuropeBBox = BoundingBox{West: -25.0, South: 33.0, East: 45.0, North: 72.0}

// String renders the box in the W,S,E,N order the Data Store expects.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%.1f,%.1f,%.1f,%.1f", b.West, b.South, b.East, b.North)
}

// SearchWindow is a closed time range plus a bounding box, the unit of one
// catalog search attempt.
type SearchWindow struct {
	Start time.Time
	End   time.Time
	BBox  BoundingBox
}

// YesterdayWindow returns the 24-hour window covering the UTC day before now,
// over the given box.
func YesterdayWindow(now time.Time, bbox BoundingBox) SearchWindow {
	y := now.UTC().AddDate(0, 0, -1)
	start := time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)
	return SearchWindow{
		Start: start,
		End:   start.Add(24 * time.Hour),
		BBox:  bbox,
	}
}

// Shifted returns a copy of the window with both bounds moved the given
// number of hours earlier. The span is unchanged.
func (w SearchWindow) Shifted(hoursBack int) SearchWindow {
	d := time.Duration(hoursBack) * time.Hour
	return SearchWindow{
		Start: w.Start.Add(-d),
		End:   w.End.Add(-d),
		BBox:  w.BBox,
	}
}

// Span is the window length.
func (w SearchWindow) Span() time.Duration {
	return w.End.Sub(w.Start)
}

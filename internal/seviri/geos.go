package seviri

import "math"

// MSG earth model and viewing geometry, from the CGMS LRIT/HRIT global
// specification.
const (
	satHeightKm   = 42164.0   // distance from earth centre, km
	eqRadiusKm    = 6378.169  // equatorial radius, km
	polRadiusKm   = 6356.5838 // polar radius, km
	fullDiscSpanD = 17.832    // angular span of the VISIR grid, degrees

	// Derived: (rpol/req)^2 and (req^2-rpol^2)/req^2.
	radiusRatioSq = (polRadiusKm * polRadiusKm) / (eqRadiusKm * eqRadiusKm)
	eccentricity  = 1 - radiusRatioSq
)

// geosGrid maps geographic coordinates to fractional pixel positions on a
// geostationary full-disc grid. Line 0 / column 0 is the south-east corner,
// matching the scan order of the native payload.
type geosGrid struct {
	subLon  float64 // sub-satellite longitude, degrees
	columns int
	lines   int
	stepRad float64 // scan angle per pixel, radians
}

func newGeosGrid(subLon float64, columns, lines int) geosGrid {
	return geosGrid{
		subLon:  subLon,
		columns: columns,
		lines:   lines,
		stepRad: fullDiscSpanD / float64(columns) * math.Pi / 180,
	}
}

// pixel projects lat/lon (degrees) to a fractional (column, line). ok is
// false when the point is not visible from the satellite.
func (g geosGrid) pixel(lat, lon float64) (col, line float64, ok bool) {
	latR := lat * math.Pi / 180
	lonR := (lon - g.subLon) * math.Pi / 180

	// Geocentric latitude on the ellipsoid.
	cLat := math.Atan(radiusRatioSq * math.Tan(latR))
	cosC := math.Cos(cLat)
	sinC := math.Sin(cLat)

	// Local earth radius at that latitude.
	rl := polRadiusKm / math.Sqrt(1-eccentricity*cosC*cosC)

	// Horizon check: the point must face the satellite.
	if cosC*math.Cos(lonR) < rl/satHeightKm {
		return 0, 0, false
	}

	r1 := satHeightKm - rl*cosC*math.Cos(lonR)
	r2 := -rl * cosC * math.Sin(lonR)
	r3 := rl * sinC
	rn := math.Sqrt(r1*r1 + r2*r2 + r3*r3)

	// Normalized geostationary scan angles.
	x := math.Atan2(-r2, r1)
	y := math.Asin(-r3 / rn)

	// East of the sub-satellite point means decreasing column, north means
	// decreasing y; line 0 is south, so both axes flip here.
	col = (float64(g.columns)-1)/2 - x/g.stepRad
	line = (float64(g.lines)-1)/2 - y/g.stepRad

	if col < 0 || col > float64(g.columns-1) || line < 0 || line > float64(g.lines-1) {
		return 0, 0, false
	}
	return col, line, true
}

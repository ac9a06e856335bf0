// Package seviri decodes the subset of the MSG SEVIRI Level 1.5 native
// format (.nat) needed for the natural-colour recipe, and renders composites
// onto a plate-carree lat/lon grid.
//
// # Format subset
//
// Only the uncompressed VISIR layout is handled:
//
//   - An ASCII preamble of "Key : Value" lines, terminated by the marker
//     line "DataSetStart". The keys used here are the grid dimensions
//     (NumberLinesVISIR, NumberColumnsVISIR), the selected-band mask
//     (SelectedBandIDs, one X or - per band in instrument order), the
//     sub-satellite longitude (SubLon), and per-band linear calibration
//     coefficients (CalSlope_<band>, CalOffset_<band>).
//   - An image payload of fixed-size line records: for each scan line,
//     south to north, one record per selected band in instrument order.
//     A record is a 4-byte header (band index, flag byte, big-endian line
//     number) followed by the line's 10-bit detector counts packed
//     big-endian, most significant bits first.
//
// A set flag byte marks a line that failed the on-board quality check; the
// decoder surfaces it as a "quality flag" warning on the scene rather than
// an error, mirroring how the run treats degraded data as a skip, not a
// failure. HRV and compressed payloads are out of scope: the natural-colour
// recipe only needs the three solar channels.
//
// # Geolocation
//
// Pixel geolocation follows the normalized geostationary projection of the
// CGMS LRIT/HRIT global specification, with the MSG earth model
// (equatorial radius 6378.169 km, polar radius 6356.5838 km, satellite
// height 42164 km from earth centre).
package seviri

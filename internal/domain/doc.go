// Package domain models one run of the Meteosat Europe bot.
//
// # Data source
//
// Imagery comes from the EUMETSAT Data Store, collection
// EO:EUM:DAT:MSG:HRSEVIRI (Meteosat Second Generation, SEVIRI Level 1.5).
// Each discoverable product covers one repeat cycle (15 minutes of full-disc
// scanning) and is delivered as a zip archive containing one or more native
// format (.nat) raw sensor files.
//
// # Search window
//
// A run targets "yesterday, UTC, 00:00-24:00" over a fixed Europe bounding
// box. When the catalog returns nothing, the window is shifted backwards by
// one hour per retry (span held at 24 hours) before the run gives up and
// signals [ErrNoData].
//
// # Run report
//
// Every candidate product yields exactly one tagged [Outcome]: rendered into
// a frame, skipped with a reason, or failed with an error. The outcomes are
// collected into a [Report], and the run-level decisions (no-data fallback,
// empty-output failure) are derived from the report rather than from control
// flow, so they can be tested without real I/O.
package domain

package domain

import "time"

// ProductRef is one discoverable unit of satellite data as returned by a
// catalog search. It is an opaque handle: the archive bytes are fetched
// separately through the catalog adapter.
type ProductRef struct {
	ID         string
	Collection string
	SensedAt   time.Time
	SizeBytes  int64

	// Quality is the catalog-side quality indicator, when the search
	// response carried one. Empty means "no statement", not "nominal".
	Quality string
}

// QualityDegraded reports whether the product-level metadata flags the data
// as degraded. This is one of two independent quality gates; the other is
// the decode-time warning check in the renderer.
func (p ProductRef) QualityDegraded() bool {
	return p.Quality != "" && p.Quality != "NOMINAL"
}

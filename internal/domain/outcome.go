package domain

import (
	"errors"
	"time"
)

// Run-level conditions derived from the report.
var (
	// ErrNoData marks the expected "catalog had nothing" condition. It
	// routes the run to the fallback post and exit code 0.
	ErrNoData = errors.New("no products available for any search attempt")

	// ErrNoFrames marks total exhaustion: candidates existed but every one
	// was skipped or failed. Unlike ErrNoData this is a hard failure.
	ErrNoFrames = errors.New("no frames rendered from any candidate product")
)

// OutcomeStatus tags what happened to one candidate product (or raw file).
type OutcomeStatus string

const (
	StatusOK      OutcomeStatus = "ok"
	StatusSkipped OutcomeStatus = "skipped"
	StatusFailed  OutcomeStatus = "failed"
)

// Skip reasons used across the pipeline.
const (
	ReasonSampledOut      = "sampled out by stride"
	ReasonOutOfRange      = "outside debug index range"
	ReasonNoRawFiles      = "archive contains no raw sensor files"
	ReasonQualityMetadata = "product metadata flags degraded quality"
	ReasonQualityWarning  = "decoder raised a quality flag warning"
)

// Outcome records the fate of one candidate. Exactly one of Reason and Err
// is meaningful for non-OK statuses: Skipped carries a reason, Failed an
// error.
type Outcome struct {
	Index   int // 1-based catalog position
	Product ProductRef
	Status  OutcomeStatus
	Reason  string
	Err     error
	Frames  int // rendered frames contributed by this product
}

// Ok builds a successful outcome.
func Ok(index int, p ProductRef, frames int) Outcome {
	return Outcome{Index: index, Product: p, Status: StatusOK, Frames: frames}
}

// Skip builds a skipped outcome.
func Skip(index int, p ProductRef, reason string) Outcome {
	return Outcome{Index: index, Product: p, Status: StatusSkipped, Reason: reason}
}

// Fail builds a failed outcome.
func Fail(index int, p ProductRef, err error) Outcome {
	return Outcome{Index: index, Product: p, Status: StatusFailed, Err: err}
}

// Report aggregates one run: the window that produced results, how many
// products the catalog offered, and the per-product outcomes in catalog
// order.
type Report struct {
	Window        SearchWindow
	Attempts      int // search attempts taken, including the successful one
	TotalProducts int
	Outcomes      []Outcome
	GeneratedAt   time.Time
}

// NewReport stamps a report with the package clock.
func NewReport(window SearchWindow, attempts, total int) *Report {
	return &Report{
		Window:        window,
		Attempts:      attempts,
		TotalProducts: total,
		GeneratedAt:   clock.Now().UTC(),
	}
}

// Add appends one outcome.
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// FrameCount is the total number of frames rendered across all products.
func (r *Report) FrameCount() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Frames
	}
	return n
}

// Counts returns how many outcomes landed in each status.
func (r *Report) Counts() (ok, skipped, failed int) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusOK:
			ok++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	return ok, skipped, failed
}

// Err derives the run-level condition from the collected outcomes: nil when
// at least one frame was rendered, ErrNoData when the catalog offered no
// candidates at all, ErrNoFrames when candidates existed but none survived.
func (r *Report) Err() error {
	if r.FrameCount() > 0 {
		return nil
	}
	if r.TotalProducts == 0 {
		return ErrNoData
	}
	return ErrNoFrames
}

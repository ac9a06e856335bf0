package domain

import "time"

// Run outcome labels used in summaries and metrics.
const (
	RunOutcomeImagery  = "imagery"
	RunOutcomeFallback = "fallback"
	RunOutcomeFailure  = "failure"
)

// RunSummary is the flattened, serializable record of one run, published to
// the optional report sink.
type RunSummary struct {
	GeneratedAt   time.Time `json:"generated_at"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	Attempts      int       `json:"attempts"`
	TotalProducts int       `json:"total_products"`
	OK            int       `json:"ok"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	Frames        int       `json:"frames"`
	Outcome       string    `json:"outcome"` // imagery | fallback | failure
	PostID        string    `json:"post_id,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Summarize flattens a report plus the publication result into a RunSummary.
func Summarize(r *Report, outcome, postID string, runErr error) RunSummary {
	s := RunSummary{
		Outcome: outcome,
		PostID:  postID,
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	if r != nil {
		ok, skipped, failed := r.Counts()
		s.GeneratedAt = r.GeneratedAt
		s.WindowStart = r.Window.Start
		s.WindowEnd = r.Window.End
		s.Attempts = r.Attempts
		s.TotalProducts = r.TotalProducts
		s.OK = ok
		s.Skipped = skipped
		s.Failed = failed
		s.Frames = r.FrameCount()
	}
	return s
}

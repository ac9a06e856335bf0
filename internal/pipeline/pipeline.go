// Package pipeline orchestrates one bot run: discovery with window widening,
// the per-product retrieval and decode loop, animation assembly, and
// publication with the no-data fallback.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fbattini/meteosat-europe-bot/internal/caption"
	"github.com/fbattini/meteosat-europe-bot/internal/domain"
	"github.com/fbattini/meteosat-europe-bot/internal/observability"
)

// animationFileName is the GIF written into the scratch root.
const animationFileName = "meteosat_europe.gif"

// Catalog discovers products and fetches their archives.
type Catalog interface {
	Search(ctx context.Context, window domain.SearchWindow) ([]domain.ProductRef, error)
	Download(ctx context.Context, product domain.ProductRef, destPath string) error
}

// Renderer decodes one raw sensor file into a composite frame on disk and
// reports decode-time warnings.
type Renderer interface {
	Render(natPath, outPath string) (warnings []string, err error)
}

// Assembler encodes ordered frames into the output animation.
type Assembler interface {
	Assemble(framePaths []string, outPath string) error
}

// Publisher publishes one post, optionally with an attached media file.
type Publisher interface {
	Publish(ctx context.Context, text, mediaPath string) (postID string, err error)
}

// ReportSink receives the run summary after each run. Optional.
type ReportSink interface {
	Publish(ctx context.Context, summary domain.RunSummary) error
}

// Options are the run parameters, passed in explicitly so tests can exercise
// different windows and strides without touching the environment.
type Options struct {
	BBox              domain.BoundingBox
	SampleStride      int // process every Nth product; 1 = all
	RangeFrom         int // 1-based debug sub-range; 0 = unset
	RangeTo           int
	MaxSearchAttempts int
	ScratchRoot       string // empty = fresh temp dir per run
}

// Deps are the pipeline collaborators.
type Deps struct {
	Catalog   Catalog
	Renderer  Renderer
	Assembler Assembler
	Publisher Publisher
	Captions  *caption.Generator
	Reports   ReportSink // may be nil
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Pipeline runs the four stages sequentially. One instance may be reused
// across schedule ticks; runs never overlap.
type Pipeline struct {
	deps  Deps
	opts  Options
	ready atomic.Bool
}

// New creates a Pipeline.
func New(deps Deps, opts Options) *Pipeline {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{deps: deps, opts: opts}
}

// CheckReadiness returns nil once at least one run has completed gracefully
// (imagery or fallback). Used by the health endpoint in schedule mode.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no run has completed yet")
	}
	return nil
}

// Run executes one complete run. A nil error means exactly one post was
// published: the imagery post, or the fallback post when the catalog had no
// data. Any other condition (including zero frames from a non-empty
// catalog) returns an error and publishes nothing.
//
// The scratch directory tree is removed on every exit path; a removal
// failure is logged and does not affect the outcome.
func (p *Pipeline) Run(ctx context.Context) (report *domain.Report, err error) {
	log := p.deps.Logger
	start := time.Now()
	defer func() {
		p.deps.Metrics.RunDuration.Observe(time.Since(start).Seconds())
	}()

	scratch, err := p.makeScratch()
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			log.Warn("failed to remove scratch directory", "path", scratch, "error", rmErr)
		} else {
			log.Info("removed scratch directory", "path", scratch)
		}
	}()

	var postID string
	defer func() {
		p.emitSummary(report, postID, err)
	}()

	window, attempts, products, err := p.discover(ctx)
	if err != nil {
		p.deps.Metrics.RunOutcome.Set(-1)
		return nil, err
	}

	report = domain.NewReport(window, attempts, len(products))

	if len(products) == 0 {
		log.Warn("no data available, publishing fallback post")
		postID, err = p.deps.Publisher.Publish(ctx, caption.Fallback, "")
		if err != nil {
			p.deps.Metrics.RunOutcome.Set(-1)
			return report, fmt.Errorf("publish fallback post: %w", err)
		}
		p.deps.Metrics.PostsPublished.WithLabelValues("fallback").Inc()
		p.deps.Metrics.RunOutcome.Set(0)
		p.ready.Store(true)
		return report, nil
	}

	p.deps.Metrics.ProductsFound.Add(float64(len(products)))

	framePaths, err := p.process(ctx, products, scratch, report)
	if err != nil {
		p.deps.Metrics.RunOutcome.Set(-1)
		return report, err
	}

	if err = report.Err(); err != nil {
		p.deps.Metrics.RunOutcome.Set(-1)
		return report, err
	}

	gifPath, err := p.assemble(framePaths, scratch, report)
	if err != nil {
		p.deps.Metrics.RunOutcome.Set(-1)
		return report, err
	}

	text := p.deps.Captions.Imagery(window.Start)
	postID, err = p.deps.Publisher.Publish(ctx, text, gifPath)
	if err != nil {
		p.deps.Metrics.RunOutcome.Set(-1)
		return report, fmt.Errorf("publish imagery post: %w", err)
	}
	p.deps.Metrics.PostsPublished.WithLabelValues("imagery").Inc()
	p.deps.Metrics.RunOutcome.Set(1)
	p.ready.Store(true)

	log.Info("run complete", "frames", report.FrameCount(),
		"products", report.TotalProducts, "post_id", postID)
	return report, nil
}

// discover searches the catalog with the widening retry policy: each attempt
// shifts the 24-hour window one hour further back. The first non-empty
// result wins; an exhausted retry budget yields an empty product list, not
// an error. Search transport or auth failures are fatal.
func (p *Pipeline) discover(ctx context.Context) (domain.SearchWindow, int, []domain.ProductRef, error) {
	base := domain.YesterdayWindow(p.deps.Clock.Now(), p.opts.BBox)

	var window domain.SearchWindow
	for attempt := 0; attempt < p.opts.MaxSearchAttempts; attempt++ {
		window = base.Shifted(attempt)
		p.deps.Metrics.SearchAttempts.Inc()
		p.deps.Logger.Info("searching products",
			"start", window.Start, "end", window.End, "bbox", window.BBox.String())

		products, err := p.deps.Catalog.Search(ctx, window)
		if err != nil {
			return window, attempt + 1, nil, fmt.Errorf("catalog search: %w", err)
		}
		if len(products) > 0 {
			p.deps.Logger.Info("using products from window",
				"count", len(products), "start", window.Start, "end", window.End)
			return window, attempt + 1, products, nil
		}
		p.deps.Logger.Warn("no products found, widening window by one hour",
			"start", window.Start, "end", window.End)
	}
	return window, p.opts.MaxSearchAttempts, nil, nil
}

// assemble encodes the collected frames into the output animation.
func (p *Pipeline) assemble(framePaths []string, scratch string, report *domain.Report) (string, error) {
	gifPath := filepath.Join(scratch, animationFileName)
	if err := p.deps.Assembler.Assemble(framePaths, gifPath); err != nil {
		return "", fmt.Errorf("assemble animation: %w", err)
	}
	p.deps.Logger.Info("animation ready", "path", gifPath,
		"frames", report.FrameCount(), "products", report.TotalProducts)
	return gifPath, nil
}

func (p *Pipeline) makeScratch() (string, error) {
	if p.opts.ScratchRoot != "" {
		if err := os.MkdirAll(p.opts.ScratchRoot, 0o755); err != nil {
			return "", fmt.Errorf("create scratch root: %w", err)
		}
		return p.opts.ScratchRoot, nil
	}
	dir, err := os.MkdirTemp("", "meteobot-*")
	if err != nil {
		return "", fmt.Errorf("create scratch root: %w", err)
	}
	return dir, nil
}

// emitSummary publishes the run summary to the optional sink. Best effort:
// a sink failure is logged, never escalated.
func (p *Pipeline) emitSummary(report *domain.Report, postID string, runErr error) {
	if p.deps.Reports == nil {
		return
	}

	outcome := domain.RunOutcomeImagery
	switch {
	case runErr != nil:
		outcome = domain.RunOutcomeFailure
	case report != nil && report.TotalProducts == 0:
		outcome = domain.RunOutcomeFallback
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	summary := domain.Summarize(report, outcome, postID, runErr)
	if err := p.deps.Reports.Publish(ctx, summary); err != nil {
		p.deps.Logger.Warn("failed to publish run summary", "error", err)
	}
}

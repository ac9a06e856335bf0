package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the Prometheus instruments for one bot process. They are
// registered on a private registry so a one-shot run can push them to a
// Pushgateway and schedule mode can expose them over /metrics, without
// touching the default registry.
type Metrics struct {
	SearchAttempts   prometheus.Counter
	ProductsFound    prometheus.Counter
	ProductOutcomes  *prometheus.CounterVec // labels: status={ok,skipped,failed}
	FramesRendered   prometheus.Counter
	PostsPublished   *prometheus.CounterVec // labels: kind={imagery,fallback}
	RunOutcome       prometheus.Gauge       // 1 success, 0 fallback, -1 failure
	DownloadDuration prometheus.Histogram
	DecodeDuration   prometheus.Histogram
	RunDuration      prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates and registers all bot metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SearchAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meteobot",
			Name:      "search_attempts_total",
			Help:      "Catalog search attempts, including widening retries.",
		}),
		ProductsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meteobot",
			Name:      "products_found_total",
			Help:      "Products returned by the first non-empty search.",
		}),
		ProductOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meteobot",
			Name:      "product_outcomes_total",
			Help:      "Per-product processing outcomes by status.",
		}, []string{"status"}),
		FramesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meteobot",
			Name:      "frames_rendered_total",
			Help:      "Natural-colour frames rendered.",
		}),
		PostsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meteobot",
			Name:      "posts_published_total",
			Help:      "Posts published, split by imagery vs fallback.",
		}, []string{"kind"}),
		RunOutcome: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meteobot",
			Name:      "run_outcome",
			Help:      "Outcome of the last run: 1 imagery posted, 0 fallback, -1 failure.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "meteobot",
			Name:      "download_duration_seconds",
			Help:      "Duration of one product archive download.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		DecodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "meteobot",
			Name:      "decode_duration_seconds",
			Help:      "Duration of one raw file decode and composite render.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "meteobot",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete run.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.SearchAttempts,
		m.ProductsFound,
		m.ProductOutcomes,
		m.FramesRendered,
		m.PostsPublished,
		m.RunOutcome,
		m.DownloadDuration,
		m.DecodeDuration,
		m.RunDuration,
	)

	return m
}

// Registry exposes the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Push sends the current metric state to a Pushgateway. Intended for
// one-shot runs where no scrape target outlives the process.
func (m *Metrics) Push(gatewayURL string) error {
	if err := push.New(gatewayURL, "meteobot").Gatherer(m.registry).Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// NewMetricsForTesting is an alias kept so tests read naturally; the private
// registry already prevents cross-test registration panics.
func NewMetricsForTesting() *Metrics {
	return NewMetrics()
}

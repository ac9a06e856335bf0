package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fbattini/meteosat-europe-bot/internal/domain"
)

// Config holds all bot settings, populated from environment variables.
// Credentials are validated up front so a misconfigured run fails before the
// first network call.
type Config struct {
	// EUMETSAT Data Store credentials and collection.
	EumetsatKey    string
	EumetsatSecret string
	Collection     string

	// X (Twitter) OAuth 1.0a credentials.
	XConsumerKey    string
	XConsumerSecret string
	XAccessToken    string
	XAccessSecret   string

	// Area of interest and product selection.
	BBox         domain.BoundingBox
	SampleStride int // process every Nth product; 1 = all
	RangeFrom    int // debug aid: restrict to a 1-based index sub-range, 0 = unset
	RangeTo      int

	// Search widening.
	MaxSearchAttempts int

	// Rendering and assembly.
	FrameDelay time.Duration
	FrameWidth int // output GIF width in pixels; height follows the extent

	// Scratch area. Empty means a fresh os.MkdirTemp directory per run.
	ScratchRoot string

	HTTPTimeout time.Duration

	// Observability.
	LogLevel       string
	LogFormat      string
	PushgatewayURL string
	HTTPAddr       string // metrics/health server in schedule mode

	// Optional run-report sink.
	KafkaBrokers     []string
	KafkaReportTopic string
}

// Load reads configuration from environment variables, applying defaults
// where unset. All six platform credentials are required.
func Load() (*Config, error) {
	stride, err := envInt("SAMPLE_STRIDE", 1)
	if err != nil {
		return nil, err
	}
	rangeFrom, err := envInt("DEBUG_RANGE_FROM", 0)
	if err != nil {
		return nil, err
	}
	rangeTo, err := envInt("DEBUG_RANGE_TO", 0)
	if err != nil {
		return nil, err
	}
	attempts, err := envInt("MAX_SEARCH_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	frameWidth, err := envInt("FRAME_WIDTH", 700)
	if err != nil {
		return nil, err
	}
	frameDelay, err := envDuration("FRAME_DELAY", 250*time.Millisecond)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := envDuration("HTTP_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	bbox, err := parseBBox(envOrDefault("BBOX", domain.EuropeBBox.String()))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		EumetsatKey:    os.Getenv("EUMETSAT_KEY"),
		EumetsatSecret: os.Getenv("EUMETSAT_SECRET"),
		Collection:     envOrDefault("EUMETSAT_COLLECTION", "EO:EUM:DAT:MSG:HRSEVIRI"),

		XConsumerKey:    os.Getenv("X_API_KEY"),
		XConsumerSecret: os.Getenv("X_API_SECRET"),
		XAccessToken:    os.Getenv("X_ACCESS_TOKEN"),
		XAccessSecret:   os.Getenv("X_ACCESS_SECRET"),

		BBox:              bbox,
		SampleStride:      stride,
		RangeFrom:         rangeFrom,
		RangeTo:           rangeTo,
		MaxSearchAttempts: attempts,
		FrameDelay:        frameDelay,
		FrameWidth:        frameWidth,
		ScratchRoot:       os.Getenv("SCRATCH_ROOT"),
		HTTPTimeout:       httpTimeout,

		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		LogFormat:      envOrDefault("LOG_FORMAT", "json"),
		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		HTTPAddr:       envOrDefault("HTTP_ADDR", ":8080"),

		KafkaBrokers:     parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaReportTopic: envOrDefault("KAFKA_REPORT_TOPIC", "meteobot-run-reports"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"EUMETSAT_KEY":    c.EumetsatKey,
		"EUMETSAT_SECRET": c.EumetsatSecret,
		"X_API_KEY":       c.XConsumerKey,
		"X_API_SECRET":    c.XConsumerSecret,
		"X_ACCESS_TOKEN":  c.XAccessToken,
		"X_ACCESS_SECRET": c.XAccessSecret,
	}
	var missing []string
	for key, v := range required {
		if v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.SampleStride < 1 {
		return errors.New("SAMPLE_STRIDE must be >= 1")
	}
	if c.MaxSearchAttempts < 1 {
		return errors.New("MAX_SEARCH_ATTEMPTS must be >= 1")
	}
	if c.RangeFrom < 0 || c.RangeTo < 0 {
		return errors.New("DEBUG_RANGE_FROM and DEBUG_RANGE_TO must be >= 0")
	}
	if c.RangeTo != 0 && c.RangeTo < c.RangeFrom {
		return errors.New("DEBUG_RANGE_TO must not be smaller than DEBUG_RANGE_FROM")
	}
	if c.FrameDelay <= 0 {
		return errors.New("FRAME_DELAY must be positive")
	}
	if c.FrameWidth < 16 {
		return errors.New("FRAME_WIDTH must be at least 16")
	}
	return nil
}

// RangeActive reports whether the debug index sub-range is in effect.
func (c *Config) RangeActive() bool {
	return c.RangeFrom > 0 || c.RangeTo > 0
}

// ReportSinkEnabled reports whether a Kafka run-report sink is configured.
func (c *Config) ReportSinkEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseBBox(s string) (domain.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.BoundingBox{}, fmt.Errorf("invalid BBOX %q: want west,south,east,north", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.BoundingBox{}, fmt.Errorf("invalid BBOX %q: %w", s, err)
		}
		vals[i] = f
	}
	b := domain.BoundingBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	if b.West >= b.East || b.South >= b.North {
		return domain.BoundingBox{}, fmt.Errorf("invalid BBOX %q: empty extent", s)
	}
	return b, nil
}

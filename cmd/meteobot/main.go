// Command meteobot publishes a daily satellite animation of Europe. The
// default mode runs once and exits: search yesterday's imagery, render and
// assemble the animation, post it, clean up. With -schedule it stays
// resident and repeats the run every day at the given UTC time, exposing
// health and metrics endpoints while idle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"

	"github.com/fbattini/meteosat-europe-bot/internal/adapter/eumetsat"
	httpadapter "github.com/fbattini/meteosat-europe-bot/internal/adapter/http"
	kafkaadapter "github.com/fbattini/meteosat-europe-bot/internal/adapter/kafka"
	"github.com/fbattini/meteosat-europe-bot/internal/adapter/xapi"
	"github.com/fbattini/meteosat-europe-bot/internal/anim"
	"github.com/fbattini/meteosat-europe-bot/internal/caption"
	"github.com/fbattini/meteosat-europe-bot/internal/config"
	"github.com/fbattini/meteosat-europe-bot/internal/observability"
	"github.com/fbattini/meteosat-europe-bot/internal/pipeline"
	"github.com/fbattini/meteosat-europe-bot/internal/seviri"
)

func main() {
	os.Exit(run())
}

func run() int {
	schedule := flag.Bool("schedule", false, "stay resident and run daily instead of running once")
	dailyAt := flag.String("at", "06:30", "daily run time in schedule mode, HH:MM UTC")
	flag.Parse()

	// A missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	catalog := eumetsat.NewClient(cfg.EumetsatKey, cfg.EumetsatSecret, cfg.Collection, cfg.HTTPTimeout, logger)
	renderer := seviri.NewRenderer(cfg.BBox, cfg.FrameWidth, logger)
	assembler := anim.NewAssembler(cfg.FrameDelay, logger)
	publisher := xapi.NewClient(xapi.Credentials{
		ConsumerKey:    cfg.XConsumerKey,
		ConsumerSecret: cfg.XConsumerSecret,
		AccessToken:    cfg.XAccessToken,
		AccessSecret:   cfg.XAccessSecret,
	}, cfg.HTTPTimeout, logger)

	var reports pipeline.ReportSink
	if cfg.ReportSinkEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		reports = writer
		logger.Info("run-report sink enabled", "topic", cfg.KafkaReportTopic)
	}

	p := pipeline.New(pipeline.Deps{
		Catalog:   catalog,
		Renderer:  renderer,
		Assembler: assembler,
		Publisher: publisher,
		Captions:  caption.NewGenerator(nil),
		Reports:   reports,
		Logger:    logger,
		Metrics:   metrics,
	}, pipeline.Options{
		BBox:              cfg.BBox,
		SampleStride:      cfg.SampleStride,
		RangeFrom:         cfg.RangeFrom,
		RangeTo:           cfg.RangeTo,
		MaxSearchAttempts: cfg.MaxSearchAttempts,
		ScratchRoot:       cfg.ScratchRoot,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *schedule {
		return runScheduled(ctx, cfg, p, metrics, logger, *dailyAt)
	}
	return runOnce(ctx, cfg, p, metrics, logger)
}

// runOnce executes a single run. Exit code 0 covers both graceful outcomes:
// imagery posted, or the fallback post on an empty catalog.
func runOnce(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, metrics *observability.Metrics, logger *slog.Logger) int {
	_, err := p.Run(ctx)

	if cfg.PushgatewayURL != "" {
		if pushErr := metrics.Push(cfg.PushgatewayURL); pushErr != nil {
			logger.Warn("metrics push failed", "error", pushErr)
		}
	}

	if err != nil {
		logger.Error("run failed", "error", err)
		return 1
	}
	return 0
}

// runScheduled keeps the process alive, running the pipeline daily and
// serving health and metrics endpoints in between.
func runScheduled(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, metrics *observability.Metrics, logger *slog.Logger, dailyAt string) int {
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, metrics.Registry(), logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(1).Day().At(dailyAt).Do(func() {
		runCtx, cancel := context.WithTimeout(ctx, 2*time.Hour)
		defer cancel()
		if _, runErr := p.Run(runCtx); runErr != nil {
			logger.Error("scheduled run failed", "error", runErr)
		}
	})
	if err != nil {
		logger.Error("failed to schedule daily run", "at", dailyAt, "error", err)
		return 1
	}
	scheduler.StartAsync()
	logger.Info("schedule mode started", "daily_at", fmt.Sprintf("%s UTC", dailyAt), "addr", cfg.HTTPAddr)

	<-ctx.Done()
	logger.Info("shutting down")

	scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return 0
}

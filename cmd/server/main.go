// Command server runs the river flow HTTP service: it loads the river table,
// wires the USGS gauge client and the flow engine, and serves the query API
// until interrupted.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/river-flow-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/river-flow-service/internal/adapter/kafka"
	"github.com/couchcryptid/river-flow-service/internal/adapter/usgs"
	"github.com/couchcryptid/river-flow-service/internal/config"
	"github.com/couchcryptid/river-flow-service/internal/domain"
	"github.com/couchcryptid/river-flow-service/internal/engine"
	"github.com/couchcryptid/river-flow-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	table, err := config.LoadRiverTable(cfg.RiverTablePath)
	if err != nil {
		logger.Error("failed to load river table", "path", cfg.RiverTablePath, "error", err)
		os.Exit(1)
	}
	path, dams, err := table.Build()
	if err != nil {
		logger.Error("invalid river table", "error", err)
		os.Exit(1)
	}
	logger.Info("river table loaded",
		"river", table.River,
		"anchors", len(path.Anchors()),
		"dams", len(dams),
		"span_miles", path.MaxMile()-path.MinMile(),
	)

	client := usgs.NewClient(cfg.USGSBaseURL, cfg.USGSTimeout, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Site name enrichment runs once at startup; failures keep the
	// configured names.
	if cfg.SiteNamesEnabled {
		dams = client.EnrichSiteNames(ctx, dams)
	}

	registry, err := domain.NewDamRegistry(dams, path)
	if err != nil {
		logger.Error("invalid dam table", "error", err)
		os.Exit(1)
	}

	var gauges domain.GaugeClient = client
	if cfg.GaugeCacheTTL > 0 {
		gauges = usgs.NewCachedGaugeClient(client, cfg.GaugeCacheTTL, clockwork.NewRealClock(), metrics)
		logger.Info("gauge reading cache enabled", "ttl", cfg.GaugeCacheTTL)
	}

	opts := engine.Options{
		Flow:          cfg.Flow,
		GaugeTimeout:  cfg.USGSTimeout,
		PathStepMiles: cfg.PathStepMiles,
	}

	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		opts.Publisher = publisher
		logger.Info("estimate publishing enabled", "topic", cfg.KafkaSinkTopic)
	}

	eng := engine.New(path, registry, gauges, logger, metrics, opts)
	srv := httpadapter.NewServer(cfg.HTTPAddr, eng, eng, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

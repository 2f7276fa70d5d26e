// citescope-worker runs the background jobs that keep the analytics
// fresh: it periodically recomputes the forward-citation calibration
// snapshot, announces each refresh on the calibration topic, and drops
// stale cached views whenever a calibration update arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/citescope/citescope/internal/application/analytics"
	"github.com/citescope/citescope/internal/config"
	"github.com/citescope/citescope/internal/domain/citation"
	"github.com/citescope/citescope/internal/infrastructure/database/postgres"
	"github.com/citescope/citescope/internal/infrastructure/database/redis"
	"github.com/citescope/citescope/internal/infrastructure/messaging/kafka"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
)

const defaultCalibrationInterval = time.Hour

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only if empty)")
	calibrationInterval := flag.Duration("calibration-interval", defaultCalibrationInterval, "how often to recompute the calibration snapshot")
	flag.Parse()

	if err := run(*configPath, *calibrationInterval); err != nil {
		fmt.Fprintf(os.Stderr, "citescope-worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, calibrationInterval time.Duration) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialise logger: %w", err)
	}
	logger = logger.Named("worker")
	logger.Info("starting citescope worker",
		logging.Duration("calibration_interval", calibrationInterval),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer conn.Close()
	accessor := postgres.NewCitationAccessor(conn, logger)

	var cache redis.Cache
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		cache = redis.NewCache(redisClient, logger)
	} else {
		logger.Warn("redis not configured; cache invalidation disabled")
	}

	var publisher kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("failed to initialise kafka producer: %w", err)
		}
		defer producer.Close()
		publisher = producer
	}

	// The invalidation path reuses the service so the cache key scheme
	// stays in one place.
	service := analytics.NewService(analytics.ServiceDeps{
		Resolver:   analytics.NewResolver(accessor, nil, analytics.ResolverConfig{}, logger),
		Aggregator: analytics.NewAggregator(accessor, analytics.AggregatorConfig{}, logger),
		Graph:      accessor,
		Cache:      cache,
		Logger:     logger,
	}, analytics.ServiceConfig{})

	refresher := &calibrationRefresher{
		accessor:  accessor,
		publisher: publisher,
		logger:    logger,
		interval:  calibrationInterval,
	}
	go refresher.run(ctx)

	if len(cfg.Kafka.Brokers) > 0 && cache != nil {
		handler := func(ctx context.Context, msg kafkago.Message) error {
			logger.Info("calibration update received; invalidating cached views",
				logging.String("key", string(msg.Key)),
			)
			return service.InvalidateScope(ctx, "")
		}
		consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.TopicCalibrationUpdated, handler, logger)
		if err != nil {
			return fmt.Errorf("failed to initialise kafka consumer: %w", err)
		}
		defer consumer.Close()
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start kafka consumer: %w", err)
		}
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

// calibrationRefresher recomputes the p95 forward-citation snapshot on a
// fixed interval, including once at startup.
type calibrationRefresher struct {
	accessor  *postgres.CitationAccessor
	publisher kafka.Publisher
	logger    logging.Logger
	interval  time.Duration
}

func (r *calibrationRefresher) run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *calibrationRefresher) refresh(ctx context.Context) {
	cal, err := r.accessor.RefreshCalibration(ctx)
	if err != nil {
		r.logger.Error("calibration refresh failed", logging.Err(err))
		return
	}
	if r.publisher == nil {
		return
	}
	event := citation.NewCalibrationUpdatedEvent(cal)
	if err := r.publisher.PublishEvent(ctx, kafka.TopicCalibrationUpdated, "calibration", event); err != nil {
		r.logger.Error("failed to publish calibration update", logging.Err(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

func newLogger(cfg config.LogConfig) (logging.Logger, error) {
	format := cfg.Format
	if format == "text" {
		format = "console"
	}
	lc := logging.LogConfig{
		Level:  cfg.Level,
		Format: format,
	}
	if cfg.Output != "" {
		lc.OutputPaths = []string{cfg.Output}
	}
	return logging.NewLogger(lc)
}

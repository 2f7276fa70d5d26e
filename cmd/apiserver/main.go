// citescope-apiserver is the citation analytics API server. It wires
// the configured graph backend (postgres or neo4j), the optional cache,
// search, messaging, and snapshot stores, and serves the analytics
// endpoints over HTTP until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/citescope/citescope/internal/application/analytics"
	"github.com/citescope/citescope/internal/config"
	"github.com/citescope/citescope/internal/domain/citation"
	"github.com/citescope/citescope/internal/infrastructure/database/neo4j"
	"github.com/citescope/citescope/internal/infrastructure/database/postgres"
	"github.com/citescope/citescope/internal/infrastructure/database/redis"
	"github.com/citescope/citescope/internal/infrastructure/messaging/kafka"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/prometheus"
	"github.com/citescope/citescope/internal/infrastructure/search/opensearch"
	"github.com/citescope/citescope/internal/infrastructure/storage/minio"
	httpserver "github.com/citescope/citescope/internal/interfaces/http"
	"github.com/citescope/citescope/internal/interfaces/http/handlers"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only if empty)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	skipMigrations := flag.Bool("skip-migrations", false, "do not run database migrations on startup")
	flag.Parse()

	if err := run(*configPath, *httpPort, *skipMigrations); err != nil {
		fmt.Fprintf(os.Stderr, "citescope-apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, httpPort int, skipMigrations bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if httpPort > 0 {
		cfg.Server.Port = httpPort
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialise logger: %w", err)
	}
	logger.Info("starting citescope API server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port),
		logging.String("graph_backend", cfg.Engine.GraphBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: cfg.Metrics.EnableProcessMetrics,
		EnableGoMetrics:      cfg.Metrics.EnableGoMetrics,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialise metrics: %w", err)
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	// Graph backend.
	var (
		graph    citation.GraphAccessor
		checkers []handlers.HealthChecker
	)
	switch cfg.Engine.GraphBackend {
	case "neo4j":
		driver, err := neo4j.NewDriver(cfg.Neo4j, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to neo4j: %w", err)
		}
		defer driver.Close()
		graph = neo4j.NewCitationAccessor(driver, logger)
		checkers = append(checkers, handlers.CheckerFunc{
			ComponentName: "neo4j",
			CheckFn:       driver.HealthCheck,
		})
	default:
		conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer conn.Close()
		if !skipMigrations && cfg.Database.MigrationPath != "" {
			if err := conn.RunMigrations(cfg.Database.MigrationPath); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		graph = postgres.NewCitationAccessor(conn, logger)
		checkers = append(checkers, handlers.CheckerFunc{
			ComponentName: "postgres",
			CheckFn:       conn.HealthCheck,
		})
	}

	// Optional search index for filter-mode scopes.
	var searcher citation.AssetSearcher
	if len(cfg.OpenSearch.Addresses) > 0 {
		osClient, err := opensearch.NewClient(ctx, cfg.OpenSearch, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to opensearch: %w", err)
		}
		searcher = opensearch.NewAssetSearcher(osClient, cfg.OpenSearch, logger)
		checkers = append(checkers, handlers.CheckerFunc{
			ComponentName: "opensearch",
			CheckFn:       osClient.Ping,
		})
	} else {
		logger.Warn("opensearch not configured; filter-mode scopes disabled")
	}

	// Optional result cache.
	var cache redis.Cache
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		cache = redis.NewCache(redisClient, logger,
			redis.WithDefaultTTL(cfg.Engine.ResultCacheTTL),
		)
		checkers = append(checkers, handlers.CheckerFunc{
			ComponentName: "redis",
			CheckFn:       redisClient.Ping,
		})
	} else {
		logger.Warn("redis not configured; result caching disabled")
	}

	// Optional event publishing.
	var publisher kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("failed to initialise kafka producer: %w", err)
		}
		defer producer.Close()
		publisher = producer
	} else {
		logger.Warn("kafka not configured; event publishing disabled")
	}

	// Optional snapshot export store.
	var snapshots minio.SnapshotStore
	if cfg.MinIO.Endpoint != "" {
		snapshots, err = minio.NewSnapshotStore(ctx, cfg.MinIO, logger)
		if err != nil {
			return fmt.Errorf("failed to initialise snapshot store: %w", err)
		}
	} else {
		logger.Warn("minio not configured; snapshot export disabled")
	}

	resolver := analytics.NewResolver(graph, searcher, analytics.ResolverConfig{
		MaxScopeSize:     cfg.Engine.MaxScopeSize,
		ScopeSizeCeiling: cfg.Engine.ScopeSizeCeiling,
	}, logger)
	aggregator := analytics.NewAggregator(graph, analytics.AggregatorConfig{
		MaxEdges:     cfg.Engine.MaxEdges,
		RetryBackoff: cfg.Engine.RetryBackoff,
	}, logger)

	service := analytics.NewService(analytics.ServiceDeps{
		Resolver:   resolver,
		Aggregator: aggregator,
		Graph:      graph,
		Cache:      cache,
		Publisher:  publisher,
		Snapshots:  snapshots,
		Metrics:    appMetrics,
		Logger:     logger,
	}, analytics.ServiceConfig{
		DefaultTopN:         cfg.Engine.DefaultTopN,
		MatrixTopK:          cfg.Engine.MatrixTopK,
		MatrixMinCitations:  cfg.Engine.MatrixMinCitations,
		ResultCacheTTL:      cfg.Engine.ResultCacheTTL,
		CalibrationCacheTTL: cfg.Engine.CalibrationCacheTTL,
	})

	router := httpserver.NewRouter(httpserver.RouterConfig{
		CitationHandler: handlers.NewCitationHandler(service, logger, cfg.Server.MaxBodySize),
		HealthHandler:   handlers.NewHealthHandler(version, checkers...),
		CORSOrigins:     cfg.Server.CORSOrigins,
		Logger:          logger,
		Metrics:         appMetrics,
		Collector:       collector,
	})

	srv := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
	}

	logger.Info("server stopped")
	return nil
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

package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "citescope"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "citescope"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "citescope-analytics"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "citescope-exports"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerConcurrency = 4

	DefaultGraphBackend     = "postgres"
	DefaultMaxScopeSize     = 500
	DefaultScopeSizeCeiling = 800
	DefaultMaxEdges         = 250000
	DefaultTopN             = 25
	DefaultMatrixTopK       = 15
	DefaultMatrixMinCites   = 1

	DefaultMetricsNamespace = "citescope"
)

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Fields already set by the caller are left unchanged so that explicit
// configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// Server
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = 10 * time.Minute
	}

	// Kafka
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = time.Second
	}

	// MinIO
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = 24 * time.Hour
	}

	// Worker
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = 5 * time.Second
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// Engine
	if cfg.Engine.GraphBackend == "" {
		cfg.Engine.GraphBackend = DefaultGraphBackend
	}
	if cfg.Engine.MaxScopeSize == 0 {
		cfg.Engine.MaxScopeSize = DefaultMaxScopeSize
	}
	if cfg.Engine.ScopeSizeCeiling == 0 {
		cfg.Engine.ScopeSizeCeiling = DefaultScopeSizeCeiling
	}
	if cfg.Engine.MaxEdges == 0 {
		cfg.Engine.MaxEdges = DefaultMaxEdges
	}
	if cfg.Engine.DefaultTopN == 0 {
		cfg.Engine.DefaultTopN = DefaultTopN
	}
	if cfg.Engine.MatrixTopK == 0 {
		cfg.Engine.MatrixTopK = DefaultMatrixTopK
	}
	if cfg.Engine.MatrixMinCitations == 0 {
		cfg.Engine.MatrixMinCitations = DefaultMatrixMinCites
	}
	if cfg.Engine.ResultCacheTTL == 0 {
		cfg.Engine.ResultCacheTTL = 10 * time.Minute
	}
	if cfg.Engine.CalibrationCacheTTL == 0 {
		cfg.Engine.CalibrationCacheTTL = time.Hour
	}
	if cfg.Engine.UpstreamTimeout == 0 {
		cfg.Engine.UpstreamTimeout = 30 * time.Second
	}
	if cfg.Engine.RetryBackoff == 0 {
		cfg.Engine.RetryBackoff = 200 * time.Millisecond
	}

	// Metrics
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

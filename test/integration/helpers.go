// Shared infrastructure for integration tests: environment gating,
// connection defaults, schema setup, and corpus seeding. Tests in this
// package need a reachable PostgreSQL instance and are skipped unless
// CITESCOPE_INTEGRATION_TEST=1.
package integration

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/citescope/citescope/internal/application/analytics"
	"github.com/citescope/citescope/internal/config"
	"github.com/citescope/citescope/internal/infrastructure/database/postgres"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
)

const (
	// EnvIntegrationEnabled controls whether integration tests run.
	EnvIntegrationEnabled = "CITESCOPE_INTEGRATION_TEST"

	// EnvPostgresHost etc. override the default local PostgreSQL target.
	EnvPostgresHost     = "CITESCOPE_TEST_POSTGRES_HOST"
	EnvPostgresPort     = "CITESCOPE_TEST_POSTGRES_PORT"
	EnvPostgresUser     = "CITESCOPE_TEST_POSTGRES_USER"
	EnvPostgresPassword = "CITESCOPE_TEST_POSTGRES_PASSWORD"
	EnvPostgresDB       = "CITESCOPE_TEST_POSTGRES_DB"

	migrationsDir = "../../migrations"
)

func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv(EnvIntegrationEnabled) != "1" {
		t.Skipf("integration tests disabled; set %s=1 to enable", EnvIntegrationEnabled)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func testDatabaseConfig() config.DatabaseConfig {
	port, _ := strconv.Atoi(envOr(EnvPostgresPort, "5432"))
	return config.DatabaseConfig{
		Host:     envOr(EnvPostgresHost, "localhost"),
		Port:     port,
		User:     envOr(EnvPostgresUser, "citescope"),
		Password: envOr(EnvPostgresPassword, "citescope"),
		DBName:   envOr(EnvPostgresDB, "citescope_test"),
		SSLMode:  "disable",
		MaxConns: 4,
	}
}

// testEnv bundles the live-database collaborators a test needs.
type testEnv struct {
	Conn     *postgres.Connection
	Accessor *postgres.CitationAccessor
	Service  analytics.Service
}

// newTestEnv connects, migrates, wipes the corpus tables, and assembles
// an analytics service with no cache, events, or snapshot store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	skipUnlessIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := logging.NewNopLogger()
	conn, err := postgres.NewConnection(ctx, testDatabaseConfig(), logger)
	if err != nil {
		t.Fatalf("postgres connection failed: %v", err)
	}
	t.Cleanup(conn.Close)

	if err := conn.RunMigrations(migrationsDir); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}
	truncateAll(t, conn)

	accessor := postgres.NewCitationAccessor(conn, logger)
	service := analytics.NewService(analytics.ServiceDeps{
		Resolver:   analytics.NewResolver(accessor, nil, analytics.ResolverConfig{}, logger),
		Aggregator: analytics.NewAggregator(accessor, analytics.AggregatorConfig{}, logger),
		Graph:      accessor,
		Logger:     logger,
	}, analytics.ServiceConfig{})

	return &testEnv{Conn: conn, Accessor: accessor, Service: service}
}

func truncateAll(t *testing.T, conn *postgres.Connection) {
	t.Helper()
	_, err := conn.Pool().Exec(context.Background(),
		`TRUNCATE patent_citations, patents, assignees, citation_calibration RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate failed: %v", err)
	}
}

// seedAssignee inserts an assignee and returns its id.
func (e *testEnv) seedAssignee(t *testing.T, id, name string) {
	t.Helper()
	_, err := e.Conn.Pool().Exec(context.Background(),
		`INSERT INTO assignees (id, name) VALUES ($1, $2)`, id, name)
	if err != nil {
		t.Fatalf("seed assignee %s: %v", name, err)
	}
}

func (e *testEnv) seedPatent(t *testing.T, id, title, assigneeID, assigneeName, pubDate string, cpc []string) {
	t.Helper()
	_, err := e.Conn.Pool().Exec(context.Background(),
		`INSERT INTO patents (id, title, assignee_id, assignee_name, pub_date, cpc_codes)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, title, assigneeID, assigneeName, pubDate, cpc)
	if err != nil {
		t.Fatalf("seed patent %s: %v", id, err)
	}
}

func (e *testEnv) seedCitation(t *testing.T, citingID, citedID string) {
	t.Helper()
	_, err := e.Conn.Pool().Exec(context.Background(),
		`INSERT INTO patent_citations (citing_id, cited_id) VALUES ($1, $2)`, citingID, citedID)
	if err != nil {
		t.Fatalf("seed citation %s -> %s: %v", citingID, citedID, err)
	}
}

func (e *testEnv) seedCalibration(t *testing.T, p95 float64) {
	t.Helper()
	_, err := e.Conn.Pool().Exec(context.Background(),
		`INSERT INTO citation_calibration (p95_forward, as_of) VALUES ($1, NOW())`, p95)
	if err != nil {
		t.Fatalf("seed calibration: %v", err)
	}
}

func dateMonths(base string, months int) string {
	t, err := time.Parse("2006-01-02", base)
	if err != nil {
		panic(fmt.Sprintf("bad base date %q: %v", base, err))
	}
	return t.AddDate(0, months, 0).Format("2006-01-02")
}

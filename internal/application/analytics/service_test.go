package analytics

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citescope/citescope/internal/domain/citation"
	"github.com/citescope/citescope/internal/infrastructure/database/redis"
	"github.com/citescope/citescope/internal/infrastructure/messaging/kafka"
	"github.com/citescope/citescope/internal/infrastructure/storage/minio"
	"github.com/citescope/citescope/pkg/errors"
)

// mockCache is an in-memory redis.Cache double.
type mockCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	deleted  []string
	prefixes []string
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *mockCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *mockCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *mockCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *mockCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.Get(ctx, key, dest)
}

func (c *mockCache) DeleteByPrefix(_ context.Context, prefix string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefixes = append(c.prefixes, prefix)
	var n int64
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

func (c *mockCache) TTL(context.Context, string) (time.Duration, error) { return 0, nil }
func (c *mockCache) Ping(context.Context) error                         { return nil }

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	topics []string
	keys   []string
	err    error
}

func (p *mockPublisher) PublishEvent(_ context.Context, topic, key string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	return nil
}

func (p *mockPublisher) Close() error { return nil }

// mockSnapshots is an in-memory minio.SnapshotStore double.
type mockSnapshots struct {
	objects map[string][]byte
	err     error
}

func (s *mockSnapshots) PutSnapshot(_ context.Context, objectKey string, payload []byte) (*minio.SnapshotReceipt, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[objectKey] = payload
	return &minio.SnapshotReceipt{
		ObjectKey: objectKey,
		URL:       "https://storage.local/exports/" + objectKey,
		Size:      int64(len(payload)),
	}, nil
}

func (s *mockSnapshots) GetSnapshot(_ context.Context, objectKey string) ([]byte, error) {
	return s.objects[objectKey], nil
}

func (s *mockSnapshots) PresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://storage.local/exports/" + objectKey, nil
}

// serviceHarness bundles a service with its doubles.
type serviceHarness struct {
	svc       Service
	graph     *mockGraph
	cache     *mockCache
	publisher *mockPublisher
	snapshots *mockSnapshots
	streams   *int
}

func newServiceHarness(t *testing.T, withCache bool) *serviceHarness {
	t.Helper()

	streams := 0
	day := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	graph := &mockGraph{
		getAssetsFn: func(_ context.Context, ids []string) ([]*citation.Asset, error) {
			assets := make([]*citation.Asset, 0, len(ids))
			for _, id := range ids {
				assets = append(assets, &citation.Asset{ID: id, AssigneeName: "Acme Corp"})
			}
			return assets, nil
		},
		streamEdgesFn: func(_ context.Context, q citation.EdgeQuery, fn citation.EdgeHandler) error {
			streams++
			for _, id := range q.AssetIDs {
				if err := fn(rivalEdge(id, "EP-"+id, "Rival Inc", day)); err != nil {
					return err
				}
			}
			return nil
		},
		getCalibrationFn: func(context.Context) (*citation.Calibration, error) {
			return &citation.Calibration{P95Forward: 100, AsOf: day}, nil
		},
	}

	h := &serviceHarness{
		graph:     graph,
		publisher: &mockPublisher{},
		snapshots: &mockSnapshots{},
		streams:   &streams,
	}
	deps := ServiceDeps{
		Resolver:   NewResolver(graph, nil, ResolverConfig{}, nil),
		Aggregator: NewAggregator(graph, AggregatorConfig{RetryBackoff: time.Millisecond}, nil),
		Graph:      graph,
		Publisher:  h.publisher,
		Snapshots:  h.snapshots,
	}
	if withCache {
		h.cache = newMockCache()
		deps.Cache = h.cache
	}
	h.svc = NewService(deps, ServiceConfig{DefaultTopN: 25, MatrixTopK: 15})
	return h
}

func identifierScope(ids ...string) citation.ScopeDefinition {
	return citation.ScopeDefinition{Mode: citation.ScopeModeIdentifiers, AssetIDs: ids}
}

func TestServiceCitationImpact(t *testing.T) {
	h := newServiceHarness(t, false)

	result, err := h.svc.CitationImpact(context.Background(), &ImpactRequest{Scope: identifierScope("US-1", "US-2")})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalForwardCitations)
	assert.Len(t, result.TopPatents, 2)
	require.Len(t, h.publisher.topics, 1)
	assert.Equal(t, kafka.TopicViewComputed, h.publisher.topics[0])
}

func TestServiceImpactValidationShortCircuits(t *testing.T) {
	h := newServiceHarness(t, false)

	_, err := h.svc.CitationImpact(context.Background(), &ImpactRequest{
		Scope: citation.ScopeDefinition{Mode: "portfolio"},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidScope, errors.GetCode(err))
	assert.Zero(t, *h.streams, "invalid scope must not reach the graph store")
}

func TestServiceImpactResultCached(t *testing.T) {
	h := newServiceHarness(t, true)
	req := &ImpactRequest{Scope: identifierScope("US-1")}

	first, err := h.svc.CitationImpact(context.Background(), req)
	require.NoError(t, err)
	second, err := h.svc.CitationImpact(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, *h.streams, "second call must come from cache")
	assert.Len(t, h.publisher.topics, 1, "cached results do not republish")
}

func TestServiceRiskRadarCalibrated(t *testing.T) {
	h := newServiceHarness(t, true)

	result, err := h.svc.RiskRadar(context.Background(), &RiskRequest{Scope: identifierScope("US-1")})
	require.NoError(t, err)

	assert.False(t, result.Uncalibrated)
	require.NotNil(t, result.CalibrationAsOf)
	require.Len(t, result.Patents, 1)
	assert.Greater(t, result.Patents[0].Exposure, 0.0)
}

func TestServiceRiskRadarDegradesOnCalibrationFailure(t *testing.T) {
	h := newServiceHarness(t, false)
	h.graph.getCalibrationFn = func(context.Context) (*citation.Calibration, error) {
		return nil, errors.New(errors.ErrCodeDatabaseError, "relation missing")
	}

	result, err := h.svc.RiskRadar(context.Background(), &RiskRequest{Scope: identifierScope("US-1")})
	require.NoError(t, err, "calibration failure must not fail the request")
	assert.True(t, result.Uncalibrated)
	assert.Nil(t, result.CalibrationAsOf)
	require.Len(t, result.Patents, 1)
}

func TestServiceRiskRadarRejectsBadSortKey(t *testing.T) {
	h := newServiceHarness(t, false)

	_, err := h.svc.RiskRadar(context.Background(), &RiskRequest{
		Scope:  identifierScope("US-1"),
		SortBy: "alphabetical",
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestServiceDependencyMatrix(t *testing.T) {
	h := newServiceHarness(t, false)

	result, err := h.svc.DependencyMatrix(context.Background(), &MatrixRequest{Scope: identifierScope("US-1", "US-2")})
	require.NoError(t, err)

	require.Len(t, result.Edges, 1)
	assert.Equal(t, "Rival Inc", result.Edges[0].CitingAssignee)
	assert.Equal(t, "Acme Corp", result.Edges[0].CitedAssignee)
	assert.Equal(t, 2.0, result.Edges[0].Weight)
}

func TestServiceEncroachmentPreconditionNotMet(t *testing.T) {
	h := newServiceHarness(t, false)

	result, err := h.svc.Encroachment(context.Background(), &EncroachmentRequest{Scope: identifierScope("US-1")})
	require.NoError(t, err)
	assert.False(t, result.PreconditionMet)
}

func TestServicePortfolioReport(t *testing.T) {
	h := newServiceHarness(t, false)

	report, err := h.svc.PortfolioReport(context.Background(), &PortfolioRequest{Scope: identifierScope("US-1", "US-2")})
	require.NoError(t, err)

	require.NotNil(t, report.Impact)
	require.NotNil(t, report.Risk)
	require.NotNil(t, report.Matrix)
	require.NotNil(t, report.Encroachment)
	assert.Empty(t, report.Errors)

	assert.Equal(t, 2, report.Impact.TotalForwardCitations)
	assert.Len(t, report.Risk.Patents, 2)
	assert.False(t, report.Encroachment.PreconditionMet)
	assert.Equal(t, 1, *h.streams, "all views share one aggregation pass")
}

func TestServicePortfolioFailsOnScopeError(t *testing.T) {
	h := newServiceHarness(t, false)
	h.graph.streamEdgesFn = func(context.Context, citation.EdgeQuery, citation.EdgeHandler) error {
		return errors.New(errors.ErrCodeUpstreamTimeout, "deadline exceeded")
	}

	_, err := h.svc.PortfolioReport(context.Background(), &PortfolioRequest{Scope: identifierScope("US-1")})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUpstreamTimeout, errors.GetCode(err))
}

func TestServiceExportRiskRadar(t *testing.T) {
	h := newServiceHarness(t, false)

	receipt, err := h.svc.ExportRiskRadar(context.Background(), &RiskRequest{Scope: identifierScope("US-1")})
	require.NoError(t, err)

	assert.NotEmpty(t, receipt.ObjectKey)
	assert.Contains(t, receipt.ObjectKey, "risk-radar/")
	assert.NotEmpty(t, receipt.URL)
	assert.Equal(t, 1, receipt.Assets)
	assert.Greater(t, receipt.Size, int64(0))

	// The stored payload round-trips as the risk result.
	var stored RiskResult
	require.NoError(t, json.Unmarshal(h.snapshots.objects[receipt.ObjectKey], &stored))
	require.Len(t, stored.Patents, 1)

	assert.Contains(t, h.publisher.topics, kafka.TopicExportCreated)
}

func TestServiceExportWithoutStore(t *testing.T) {
	h := newServiceHarness(t, false)
	h.svc = NewService(ServiceDeps{
		Resolver:   NewResolver(h.graph, nil, ResolverConfig{}, nil),
		Aggregator: NewAggregator(h.graph, AggregatorConfig{}, nil),
		Graph:      h.graph,
	}, ServiceConfig{})

	_, err := h.svc.ExportRiskRadar(context.Background(), &RiskRequest{Scope: identifierScope("US-1")})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotImplemented, errors.GetCode(err))
}

func TestServiceExportStoreFailure(t *testing.T) {
	h := newServiceHarness(t, false)
	h.snapshots.err = errors.New(errors.ErrCodeExportStoreFailed, "bucket gone")

	_, err := h.svc.ExportRiskRadar(context.Background(), &RiskRequest{Scope: identifierScope("US-1")})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeExportStoreFailed, errors.GetCode(err))
}

func TestServiceInvalidateScope(t *testing.T) {
	h := newServiceHarness(t, true)
	req := &ImpactRequest{Scope: identifierScope("US-1")}

	_, err := h.svc.CitationImpact(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, h.cache.data)

	scopeKey := req.Scope.CacheKey()
	require.NoError(t, h.svc.InvalidateScope(context.Background(), scopeKey))
	assert.Empty(t, h.cache.data)

	// A fresh request recomputes.
	_, err = h.svc.CitationImpact(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, *h.streams)
}

func TestServiceInvalidateAll(t *testing.T) {
	h := newServiceHarness(t, true)

	_, err := h.svc.CitationImpact(context.Background(), &ImpactRequest{Scope: identifierScope("US-1")})
	require.NoError(t, err)
	_, err = h.svc.RiskRadar(context.Background(), &RiskRequest{Scope: identifierScope("US-2")})
	require.NoError(t, err)

	require.NoError(t, h.svc.InvalidateScope(context.Background(), ""))
	assert.Empty(t, h.cache.data)
	assert.Contains(t, h.cache.deleted, calibrationCacheKey)
	assert.Contains(t, h.cache.prefixes, "view:")
}

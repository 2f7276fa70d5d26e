package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/citescope/citescope/internal/domain/citation"
	"github.com/citescope/citescope/internal/infrastructure/database/redis"
	"github.com/citescope/citescope/internal/infrastructure/messaging/kafka"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/prometheus"
	"github.com/citescope/citescope/internal/infrastructure/storage/minio"
	"github.com/citescope/citescope/pkg/errors"
)

// View names used in cache keys, events, and metrics labels.
const (
	ViewImpact       = "impact"
	ViewRisk         = "risk_radar"
	ViewMatrix       = "dependency_matrix"
	ViewEncroachment = "encroachment"
)

const calibrationCacheKey = "calibration:current"

// Service is the citation-analytics application facade.  Every operation
// resolves the scope once, streams the citation edges once, and assembles
// its view from the finished aggregation pass.
type Service interface {
	CitationImpact(ctx context.Context, req *ImpactRequest) (*ImpactResult, error)
	RiskRadar(ctx context.Context, req *RiskRequest) (*RiskResult, error)
	DependencyMatrix(ctx context.Context, req *MatrixRequest) (*MatrixResult, error)
	Encroachment(ctx context.Context, req *EncroachmentRequest) (*EncroachmentResult, error)
	PortfolioReport(ctx context.Context, req *PortfolioRequest) (*PortfolioReport, error)
	ExportRiskRadar(ctx context.Context, req *RiskRequest) (*ExportReceipt, error)

	// InvalidateScope drops cached view results for one scope key, or every
	// cached view when scopeKey is empty.
	InvalidateScope(ctx context.Context, scopeKey string) error
}

// ServiceConfig carries the tunables the service reads per request.
type ServiceConfig struct {
	DefaultTopN         int
	MatrixTopK          int
	MatrixMinCitations  int
	ResultCacheTTL      time.Duration
	CalibrationCacheTTL time.Duration
}

// ServiceDeps bundles the service's collaborators.  Cache, Publisher,
// Snapshots, and Metrics are optional; a nil value disables that concern.
type ServiceDeps struct {
	Resolver   *Resolver
	Aggregator *Aggregator
	Graph      citation.GraphAccessor
	Cache      redis.Cache
	Publisher  kafka.Publisher
	Snapshots  minio.SnapshotStore
	Metrics    *prometheus.AppMetrics
	Logger     logging.Logger
}

type service struct {
	resolver   *Resolver
	aggregator *Aggregator
	graph      citation.GraphAccessor
	cache      redis.Cache
	publisher  kafka.Publisher
	snapshots  minio.SnapshotStore
	metrics    *prometheus.AppMetrics
	logger     logging.Logger
	cfg        ServiceConfig
}

// NewService assembles the analytics service.
func NewService(deps ServiceDeps, cfg ServiceConfig) Service {
	if cfg.DefaultTopN <= 0 {
		cfg.DefaultTopN = 25
	}
	if cfg.MatrixTopK <= 0 {
		cfg.MatrixTopK = 15
	}
	if cfg.ResultCacheTTL <= 0 {
		cfg.ResultCacheTTL = 10 * time.Minute
	}
	if cfg.CalibrationCacheTTL <= 0 {
		cfg.CalibrationCacheTTL = time.Hour
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &service{
		resolver:   deps.Resolver,
		aggregator: deps.Aggregator,
		graph:      deps.Graph,
		cache:      deps.Cache,
		publisher:  deps.Publisher,
		snapshots:  deps.Snapshots,
		metrics:    deps.Metrics,
		logger:     logger.Named("analytics"),
		cfg:        cfg,
	}
}

// computed is one finished resolution-plus-aggregation pass shared by all
// views of a request.
type computed struct {
	scope *citation.ScopeSet
	aggs  *citation.AggregateSet
	gran  citation.BucketGranularity
}

func (s *service) compute(ctx context.Context, def *citation.ScopeDefinition) (*computed, error) {
	started := time.Now()
	scope, err := s.resolver.Resolve(ctx, def)
	if s.metrics != nil {
		prometheus.RecordScopeResolution(s.metrics, string(def.Mode), sizeOf(scope), unknownOf(scope), time.Since(started), err)
	}
	if err != nil {
		return nil, err
	}

	aggs, err := s.aggregator.Run(ctx, scope, def.Granularity())
	if err != nil {
		if s.metrics != nil && errors.IsCode(err, errors.ErrCodeScopeTooLarge) {
			s.metrics.EdgeCapRejections.WithLabelValues().Inc()
		}
		return nil, err
	}
	return &computed{scope: scope, aggs: aggs, gran: def.Granularity()}, nil
}

func sizeOf(scope *citation.ScopeSet) int {
	if scope == nil {
		return 0
	}
	return scope.Size()
}

func unknownOf(scope *citation.ScopeSet) int {
	if scope == nil {
		return 0
	}
	return scope.UnknownIdentifiers
}

// calibration returns the current calibration snapshot, caching it between
// refreshes.  Failures degrade scoring instead of failing the request.
func (s *service) calibration(ctx context.Context) *citation.Calibration {
	load := func(ctx context.Context) (interface{}, error) {
		cal, err := s.graph.GetCalibration(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCalibrationUnavailable, "calibration fetch failed")
		}
		return cal, nil
	}

	var cal citation.Calibration
	var err error
	if s.cache != nil {
		err = s.cache.GetOrSet(ctx, calibrationCacheKey, &cal, s.cfg.CalibrationCacheTTL, load)
	} else {
		var loaded interface{}
		loaded, err = load(ctx)
		if err == nil {
			if c, ok := loaded.(*citation.Calibration); ok && c != nil {
				cal = *c
			} else {
				err = redis.ErrCacheMiss
			}
		}
	}
	if err != nil {
		s.logger.Warn("scoring degraded: calibration unavailable", logging.Err(err))
		if s.metrics != nil {
			s.metrics.DegradedScoringTotal.WithLabelValues().Inc()
			s.metrics.CalibrationRefreshsTotal.WithLabelValues("failure").Inc()
		}
		return nil
	}
	if cal.P95Forward <= 0 {
		return nil
	}
	if s.metrics != nil {
		s.metrics.CalibrationAgeSeconds.WithLabelValues().Set(time.Since(cal.AsOf).Seconds())
	}
	return &cal
}

// viewKey builds the cache key for one view of one scope.  Options that
// change the result are part of the key.
func viewKey(view, scopeKey, opts string) string {
	if opts == "" {
		return fmt.Sprintf("view:%s:%s", view, scopeKey)
	}
	return fmt.Sprintf("view:%s:%s:%s", view, scopeKey, opts)
}

// cachedView returns the cached result for key into dest, or computes it via
// build and caches it.  The bool reports whether build ran.
func (s *service) cachedView(ctx context.Context, view, key string, dest interface{}, build func(ctx context.Context) (interface{}, error)) (bool, error) {
	if s.cache == nil {
		result, err := build(ctx)
		if err != nil {
			return true, err
		}
		return true, copyJSON(result, dest)
	}

	var computedFresh bool
	err := s.cache.GetOrSet(ctx, key, dest, s.cfg.ResultCacheTTL, func(ctx context.Context) (interface{}, error) {
		computedFresh = true
		return build(ctx)
	})
	if s.metrics != nil {
		if computedFresh {
			s.metrics.ViewCacheMissesTotal.WithLabelValues(view).Inc()
		} else if err == nil {
			s.metrics.ViewCacheHitsTotal.WithLabelValues(view).Inc()
		}
	}
	return computedFresh, err
}

func copyJSON(src, dest interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "result copy failed")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "result copy failed")
	}
	return nil
}

func (s *service) publishComputed(ctx context.Context, view, scopeKey string, scopeSize, edgeCount int, uncalibrated bool, d time.Duration) {
	if s.publisher == nil {
		return
	}
	event := citation.NewAnalyticsComputedEvent(view, scopeKey, scopeSize, edgeCount, uncalibrated, d)
	if err := s.publisher.PublishEvent(ctx, kafka.TopicViewComputed, scopeKey, event); err != nil {
		s.logger.Warn("event publish failed",
			logging.String("topic", kafka.TopicViewComputed),
			logging.String("view", view),
			logging.Err(err))
	}
}

// CitationImpact computes the forward-citation impact view.
func (s *service) CitationImpact(ctx context.Context, req *ImpactRequest) (*ImpactResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	topN := req.TopN
	if topN == 0 {
		topN = s.cfg.DefaultTopN
	}

	started := time.Now()
	var result ImpactResult
	key := viewKey(ViewImpact, req.Scope.CacheKey(), fmt.Sprintf("n%d", topN))
	fresh, err := s.cachedView(ctx, ViewImpact, key, &result, func(ctx context.Context) (interface{}, error) {
		c, err := s.compute(ctx, &req.Scope)
		if err != nil {
			return nil, err
		}
		view := buildImpact(c.aggs, c.scope, c.gran, topN)
		s.publishComputed(ctx, ViewImpact, req.Scope.CacheKey(), c.scope.Size(), c.aggs.EdgeCount, false, time.Since(started))
		return view, nil
	})
	if s.metrics != nil && fresh {
		prometheus.RecordViewComputation(s.metrics, ViewImpact, time.Since(started), err)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RiskRadar computes exposure, fragility, and overall scores for the scope.
func (s *service) RiskRadar(ctx context.Context, req *RiskRequest) (*RiskResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	topN := req.TopN
	if topN == 0 {
		topN = s.cfg.DefaultTopN
	}
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = SortByOverall
	}

	started := time.Now()
	var result RiskResult
	key := viewKey(ViewRisk, req.Scope.CacheKey(), fmt.Sprintf("n%d:s%s", topN, sortBy))
	fresh, err := s.cachedView(ctx, ViewRisk, key, &result, func(ctx context.Context) (interface{}, error) {
		c, err := s.compute(ctx, &req.Scope)
		if err != nil {
			return nil, err
		}
		cal := s.calibration(ctx)
		view := buildRisk(c.aggs, c.scope, cal, topN, sortBy)
		s.publishComputed(ctx, ViewRisk, req.Scope.CacheKey(), c.scope.Size(), c.aggs.EdgeCount, view.Uncalibrated, time.Since(started))
		return view, nil
	})
	if s.metrics != nil && fresh {
		prometheus.RecordViewComputation(s.metrics, ViewRisk, time.Since(started), err)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DependencyMatrix computes the assignee citation-dependency matrix.
func (s *service) DependencyMatrix(ctx context.Context, req *MatrixRequest) (*MatrixResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := MatrixOptions{
		MinCitations: req.MinCitations,
		Normalize:    req.Normalize,
		TopK:         req.TopK,
	}
	if opts.MinCitations == 0 {
		opts.MinCitations = s.cfg.MatrixMinCitations
	}
	if opts.TopK == 0 {
		opts.TopK = s.cfg.MatrixTopK
	}

	started := time.Now()
	var result MatrixResult
	key := viewKey(ViewMatrix, req.Scope.CacheKey(), fmt.Sprintf("m%d:n%t:k%d", opts.MinCitations, opts.Normalize, opts.TopK))
	fresh, err := s.cachedView(ctx, ViewMatrix, key, &result, func(ctx context.Context) (interface{}, error) {
		c, err := s.compute(ctx, &req.Scope)
		if err != nil {
			return nil, err
		}
		view := BuildMatrix(c.aggs.Pairs, opts)
		s.publishComputed(ctx, ViewMatrix, req.Scope.CacheKey(), c.scope.Size(), c.aggs.EdgeCount, false, time.Since(started))
		return view, nil
	})
	if s.metrics != nil && fresh {
		prometheus.RecordViewComputation(s.metrics, ViewMatrix, time.Since(started), err)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Encroachment computes competitor encroachment for an assignee-mode scope.
func (s *service) Encroachment(ctx context.Context, req *EncroachmentRequest) (*EncroachmentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	topN := req.TopN
	if topN == 0 {
		topN = s.cfg.DefaultTopN
	}

	started := time.Now()
	var result EncroachmentResult
	key := viewKey(ViewEncroachment, req.Scope.CacheKey(), fmt.Sprintf("n%d", topN))
	fresh, err := s.cachedView(ctx, ViewEncroachment, key, &result, func(ctx context.Context) (interface{}, error) {
		c, err := s.compute(ctx, &req.Scope)
		if err != nil {
			return nil, err
		}
		view := buildEncroachment(c.aggs, c.scope, c.gran, topN)
		s.publishComputed(ctx, ViewEncroachment, req.Scope.CacheKey(), c.scope.Size(), c.aggs.EdgeCount, false, time.Since(started))
		return view, nil
	})
	if s.metrics != nil && fresh {
		prometheus.RecordViewComputation(s.metrics, ViewEncroachment, time.Since(started), err)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PortfolioReport resolves and aggregates the scope once and builds all four
// views from the shared pass.  A failed view carries its message in Errors;
// the others still return.
func (s *service) PortfolioReport(ctx context.Context, req *PortfolioRequest) (*PortfolioReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	topN := req.TopN
	if topN == 0 {
		topN = s.cfg.DefaultTopN
	}
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = SortByOverall
	}
	opts := MatrixOptions{MinCitations: req.MinCitations, Normalize: req.Normalize, TopK: req.TopK}
	if opts.MinCitations == 0 {
		opts.MinCitations = s.cfg.MatrixMinCitations
	}
	if opts.TopK == 0 {
		opts.TopK = s.cfg.MatrixTopK
	}

	started := time.Now()
	c, err := s.compute(ctx, &req.Scope)
	if err != nil {
		return nil, err
	}

	report := &PortfolioReport{}
	var mu sync.Mutex
	fail := func(view string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if report.Errors == nil {
			report.Errors = make(map[string]string)
		}
		report.Errors[view] = err.Error()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report.Impact = buildImpact(c.aggs, c.scope, c.gran, topN)
		return nil
	})
	g.Go(func() error {
		cal := s.calibration(gctx)
		report.Risk = buildRisk(c.aggs, c.scope, cal, topN, sortBy)
		return nil
	})
	g.Go(func() error {
		report.Matrix = BuildMatrix(c.aggs.Pairs, opts)
		return nil
	})
	g.Go(func() error {
		report.Encroachment = buildEncroachment(c.aggs, c.scope, c.gran, topN)
		return nil
	})
	if err := g.Wait(); err != nil {
		fail("report", err)
	}

	uncalibrated := report.Risk != nil && report.Risk.Uncalibrated
	s.publishComputed(ctx, "portfolio", req.Scope.CacheKey(), c.scope.Size(), c.aggs.EdgeCount, uncalibrated, time.Since(started))
	if s.metrics != nil {
		prometheus.RecordViewComputation(s.metrics, "portfolio", time.Since(started), nil)
	}
	return report, nil
}

// ExportRiskRadar computes the risk radar and stores the payload as a JSON
// snapshot in object storage.
func (s *service) ExportRiskRadar(ctx context.Context, req *RiskRequest) (*ExportReceipt, error) {
	if s.snapshots == nil {
		return nil, errors.New(errors.ErrCodeNotImplemented, "export storage is not configured")
	}
	result, err := s.RiskRadar(ctx, req)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "snapshot marshal failed")
	}

	scopeKey := req.Scope.CacheKey()
	objectKey := fmt.Sprintf("risk-radar/%s/%s.json", time.Now().UTC().Format("2006/01/02"), scopeKey[:16])
	stored, err := s.snapshots.PutSnapshot(ctx, objectKey, payload)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		s.metrics.ExportSnapshotsTotal.WithLabelValues(status).Inc()
	}
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		event := citation.NewExportSnapshotEvent(stored.ObjectKey, scopeKey, len(result.Patents))
		if err := s.publisher.PublishEvent(ctx, kafka.TopicExportCreated, scopeKey, event); err != nil {
			s.logger.Warn("event publish failed",
				logging.String("topic", kafka.TopicExportCreated),
				logging.Err(err))
		}
	}

	return &ExportReceipt{
		ObjectKey: stored.ObjectKey,
		URL:       stored.URL,
		Size:      stored.Size,
		Assets:    len(result.Patents),
	}, nil
}

// InvalidateScope drops cached view results, and the calibration snapshot
// when invalidating everything.
func (s *service) InvalidateScope(ctx context.Context, scopeKey string) error {
	if s.cache == nil {
		return nil
	}
	if scopeKey == "" {
		if err := s.cache.Delete(ctx, calibrationCacheKey); err != nil {
			s.logger.Warn("calibration cache invalidation failed", logging.Err(err))
		}
		dropped, err := s.cache.DeleteByPrefix(ctx, "view:")
		if err == nil {
			s.logger.Info("view cache invalidated", logging.Int64("keys", dropped))
		}
		return err
	}
	for _, view := range []string{ViewImpact, ViewRisk, ViewMatrix, ViewEncroachment} {
		if _, err := s.cache.DeleteByPrefix(ctx, fmt.Sprintf("view:%s:%s", view, scopeKey)); err != nil {
			return err
		}
	}
	return nil
}

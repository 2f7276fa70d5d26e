package analytics

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/citescope/citescope/internal/domain/citation"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
	"github.com/citescope/citescope/pkg/errors"
)

// ResolverConfig bounds scope resolution.
type ResolverConfig struct {
	// MaxScopeSize caps the resolved asset set; resolution truncates at the
	// cap rather than failing.
	MaxScopeSize int
	// ScopeSizeCeiling is the hard upper bound MaxScopeSize may take.
	ScopeSizeCeiling int
}

// Resolver turns scope definitions into resolved, deduplicated scope sets.
type Resolver struct {
	graph    citation.GraphAccessor
	searcher citation.AssetSearcher
	cfg      ResolverConfig
	logger   logging.Logger
}

// NewResolver constructs a Resolver.  The searcher may be nil when the
// deployment has no search index; filter-mode scopes then fail validation.
func NewResolver(graph citation.GraphAccessor, searcher citation.AssetSearcher, cfg ResolverConfig, logger logging.Logger) *Resolver {
	if cfg.MaxScopeSize <= 0 {
		cfg.MaxScopeSize = 500
	}
	if cfg.ScopeSizeCeiling <= 0 {
		cfg.ScopeSizeCeiling = 800
	}
	if cfg.MaxScopeSize > cfg.ScopeSizeCeiling {
		cfg.MaxScopeSize = cfg.ScopeSizeCeiling
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Resolver{graph: graph, searcher: searcher, cfg: cfg, logger: logger}
}

// Resolve validates the definition and produces the scope set every view is
// computed from.  An empty result is valid: downstream views render empty
// collections rather than errors.
func (r *Resolver) Resolve(ctx context.Context, def *citation.ScopeDefinition) (*citation.ScopeSet, error) {
	if def == nil {
		return nil, errors.New(errors.ErrCodeInvalidScope, "scope definition must not be nil")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	var (
		ids         []string
		assigneeIDs []uuid.UUID
		unknown     int
		err         error
	)
	switch def.Mode {
	case citation.ScopeModeAssignee:
		ids, assigneeIDs, err = r.resolveAssignees(ctx, def.AssigneeNames)
	case citation.ScopeModeIdentifiers:
		ids, unknown, err = r.resolveIdentifiers(ctx, def.AssetIDs)
	case citation.ScopeModeFilters:
		ids, err = r.resolveFilters(ctx, *def.Filters)
	}
	if err != nil {
		return nil, err
	}

	set := citation.NewScopeSet(ids)
	if set.Size() > r.cfg.MaxScopeSize {
		set = citation.NewScopeSet(set.AssetIDs[:r.cfg.MaxScopeSize])
	}
	set.Mode = def.Mode
	set.From = def.From
	set.To = def.To
	set.AssigneeIDs = assigneeIDs
	set.UnknownIdentifiers = unknown
	if len(def.Competitors) > 0 {
		set.Competitors = make(map[string]bool, len(def.Competitors))
		for _, c := range def.Competitors {
			c = strings.ToLower(strings.TrimSpace(c))
			if c != "" {
				set.Competitors[c] = true
			}
		}
	}

	if err := r.loadAssets(ctx, set); err != nil {
		return nil, err
	}

	r.logger.Debug("scope resolved",
		logging.String("mode", string(def.Mode)),
		logging.Int("assets", set.Size()),
		logging.Int("unknown_identifiers", set.UnknownIdentifiers),
	)
	return set, nil
}

func (r *Resolver) resolveAssignees(ctx context.Context, names []string) ([]string, []uuid.UUID, error) {
	refs, err := r.graph.ResolveAssignees(ctx, names)
	if err != nil {
		return nil, nil, err
	}
	if len(refs) == 0 {
		// No matching organisation: a valid empty scope.
		return nil, nil, nil
	}
	ids := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	assets, err := r.graph.AssetsByAssignees(ctx, ids, r.cfg.MaxScopeSize)
	if err != nil {
		return nil, nil, err
	}
	return assets, ids, nil
}

func (r *Resolver) resolveIdentifiers(ctx context.Context, rawIDs []string) ([]string, int, error) {
	requested := citation.NewScopeSet(rawIDs)
	assets, err := r.graph.GetAssets(ctx, requested.AssetIDs)
	if err != nil {
		return nil, 0, err
	}
	known := make([]string, 0, len(assets))
	for _, a := range assets {
		known = append(known, a.ID)
	}
	unknown := requested.Size() - len(known)
	if unknown > 0 {
		r.logger.Warn("unknown asset identifiers dropped from scope", logging.Int("count", unknown))
	}
	return known, unknown, nil
}

func (r *Resolver) resolveFilters(ctx context.Context, f citation.SearchFilters) ([]string, error) {
	if r.searcher == nil {
		return nil, errors.New(errors.ErrCodeInvalidScope, "search-filter scopes are not supported by this deployment")
	}
	f.CPCPrefix = NormalizeCPCPrefix(f.CPCPrefix)
	return r.searcher.SearchAssets(ctx, f, r.cfg.MaxScopeSize)
}

// NormalizeCPCPrefix uppercases a CPC prefix and strips interior spaces so
// "h01m 10" and "H01M10" match the same classification subtree.
func NormalizeCPCPrefix(prefix string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(prefix), " ", ""))
}

// loadAssets fetches metadata for every scope asset; assignee labels feed
// the dependency matrix and self-citation checks.
func (r *Resolver) loadAssets(ctx context.Context, set *citation.ScopeSet) error {
	if set.Size() == 0 {
		return nil
	}
	assets, err := r.graph.GetAssets(ctx, set.AssetIDs)
	if err != nil {
		return err
	}
	for _, a := range assets {
		set.Assets[a.ID] = a
	}
	// Identifier-mode resolution already dropped unknowns; any gap left here
	// means the store lost the record between calls.  Fill a stub so
	// membership checks stay consistent.
	for _, id := range set.AssetIDs {
		if _, ok := set.Assets[id]; !ok {
			set.Assets[id] = &citation.Asset{ID: id}
		}
	}
	return nil
}

package citation

import (
	"time"

	"github.com/google/uuid"
)

// AssetAggregate accumulates per-asset citation counts during the streaming
// pass.  Zero-edge assets keep an aggregate so they still appear in scoring
// output.
type AssetAggregate struct {
	AssetID string

	ForwardTotal      int
	ForwardFromOthers int
	FirstCiting       *time.Time
	LastCiting        *time.Time

	BackwardTotal     int
	BackwardCPC       map[string]int
	BackwardAssignees map[string]int

	citingAssets map[string]bool
}

func newAssetAggregate(assetID string) *AssetAggregate {
	return &AssetAggregate{
		AssetID:           assetID,
		BackwardCPC:       make(map[string]int),
		BackwardAssignees: make(map[string]int),
		citingAssets:      make(map[string]bool),
	}
}

// DistinctCiting returns the number of distinct citing assets.
func (a *AssetAggregate) DistinctCiting() int {
	return len(a.citingAssets)
}

// DominantCPCShare returns the share of backward citations carried by the
// single most frequent CPC code, or 0 when there are no backward citations.
func (a *AssetAggregate) DominantCPCShare() float64 {
	if a.BackwardTotal == 0 {
		return 0
	}
	top := 0
	for _, n := range a.BackwardCPC {
		if n > top {
			top = n
		}
	}
	share := float64(top) / float64(a.BackwardTotal)
	if share > 1 {
		share = 1
	}
	return share
}

// AssigneeDiversity returns one minus the share of backward citations held
// by the single most frequent cited assignee, so full concentration scores 0
// and an even spread approaches 1.  No backward citations also score 0.
func (a *AssetAggregate) AssigneeDiversity() float64 {
	if a.BackwardTotal == 0 {
		return 0
	}
	top := 0
	for _, n := range a.BackwardAssignees {
		if n > top {
			top = n
		}
	}
	share := float64(top) / float64(a.BackwardTotal)
	if share > 1 {
		share = 1
	}
	return 1 - share
}

// AssigneeAggregate accumulates forward citations grouped by citing
// organisation, for encroachment analysis.  Bucket membership tracks
// distinct citing assets per bucket.
type AssigneeAggregate struct {
	Key        string
	Name       string
	AssigneeID *uuid.UUID

	citingAssets map[string]bool
	buckets      map[time.Time]map[string]bool
}

func newAssigneeAggregate(key, name string, id *uuid.UUID) *AssigneeAggregate {
	return &AssigneeAggregate{
		Key:          key,
		Name:         AssigneeLabel(name),
		AssigneeID:   id,
		citingAssets: make(map[string]bool),
		buckets:      make(map[time.Time]map[string]bool),
	}
}

// DistinctCiting returns the number of distinct citing assets attributed to
// this organisation.
func (a *AssigneeAggregate) DistinctCiting() int {
	return len(a.citingAssets)
}

// BucketCounts returns the distinct citing-asset count per bucket start.
func (a *AssigneeAggregate) BucketCounts() map[time.Time]int {
	out := make(map[time.Time]int, len(a.buckets))
	for t, set := range a.buckets {
		out[t] = len(set)
	}
	return out
}

// PairKey identifies one directed assignee-to-assignee dependency.
type PairKey struct {
	Citing string
	Cited  string
}

// DependencyCount is one cell of the raw dependency matrix before
// thresholding and normalization.
type DependencyCount struct {
	CitingKey  string
	CitedKey   string
	CitingName string
	CitedName  string
	Count      int
}

// AggregateSet is the single accumulator the streaming aggregation pass
// feeds.  One Observe call per edge updates every view's inputs at once:
// per-asset forward and backward counts, per-assignee encroachment counts,
// assignee dependency pairs, and the trend bucket totals.
type AggregateSet struct {
	scope *ScopeSet
	gran  BucketGranularity

	Assets    map[string]*AssetAggregate
	Assignees map[string]*AssigneeAggregate
	Pairs     map[PairKey]*DependencyCount

	// BucketTotals counts forward citations per bucket across the scope.
	BucketTotals map[time.Time]int

	EdgeCount int
	MinCiting *time.Time
	MaxCiting *time.Time

	citingAssets map[string]bool
}

// DistinctCiting returns the number of distinct citing assets across the
// whole scope.
func (s *AggregateSet) DistinctCiting() int {
	return len(s.citingAssets)
}

// NewAggregateSet builds an accumulator for the given resolved scope.
// Every scope asset gets an aggregate up front so zero-edge assets are
// retained in results.
func NewAggregateSet(scope *ScopeSet, gran BucketGranularity) *AggregateSet {
	s := &AggregateSet{
		scope:        scope,
		gran:         gran,
		Assets:       make(map[string]*AssetAggregate, scope.Size()),
		Assignees:    make(map[string]*AssigneeAggregate),
		Pairs:        make(map[PairKey]*DependencyCount),
		BucketTotals: make(map[time.Time]int),
		citingAssets: make(map[string]bool),
	}
	for _, id := range scope.AssetIDs {
		s.Assets[id] = newAssetAggregate(id)
	}
	return s
}

// Observe folds one citation edge into every accumulator.  An edge internal
// to the scope counts as forward for its cited asset and backward for its
// citing asset.
func (s *AggregateSet) Observe(e *CitationEdge) {
	s.EdgeCount++

	if asset, ok := s.Assets[e.CitedID]; ok {
		s.observeForward(asset, e)
	}
	if asset, ok := s.Assets[e.CitingID]; ok {
		s.observeBackward(asset, e)
	}
}

func (s *AggregateSet) observeForward(asset *AssetAggregate, e *CitationEdge) {
	asset.ForwardTotal++
	asset.citingAssets[e.CitingID] = true
	s.citingAssets[e.CitingID] = true

	citingKey := e.CitingAssigneeKey()
	ownKey := ""
	if rec, ok := s.scope.Assets[e.CitedID]; ok && rec != nil {
		ownKey = rec.AssigneeKey()
	}

	if len(s.scope.Competitors) > 0 {
		if s.scope.IsCompetitor(e.CitingAssignee) {
			asset.ForwardFromOthers++
		}
	} else if citingKey != ownKey {
		asset.ForwardFromOthers++
	}

	if e.CitingDate != nil {
		d := e.CitingDate.UTC()
		if asset.FirstCiting == nil || d.Before(*asset.FirstCiting) {
			asset.FirstCiting = &d
		}
		if asset.LastCiting == nil || d.After(*asset.LastCiting) {
			asset.LastCiting = &d
		}
		if s.MinCiting == nil || d.Before(*s.MinCiting) {
			s.MinCiting = &d
		}
		if s.MaxCiting == nil || d.After(*s.MaxCiting) {
			s.MaxCiting = &d
		}

		bucket := s.gran.Truncate(d)
		s.BucketTotals[bucket]++
		s.observeAssigneeBucket(e, citingKey, ownKey, bucket)
	} else {
		s.observeAssigneeBucket(e, citingKey, ownKey, time.Time{})
	}

	// Dependency pair: citing organisation depends on the cited one.
	key := PairKey{Citing: citingKey, Cited: ownKey}
	pair, ok := s.Pairs[key]
	if !ok {
		citedName := ""
		if rec, rok := s.scope.Assets[e.CitedID]; rok && rec != nil {
			citedName = rec.AssigneeName
		}
		pair = &DependencyCount{
			CitingKey:  citingKey,
			CitedKey:   ownKey,
			CitingName: AssigneeLabel(e.CitingAssignee),
			CitedName:  AssigneeLabel(citedName),
		}
		s.Pairs[key] = pair
	}
	pair.Count++
}

// observeAssigneeBucket attributes the citation to its citing organisation
// for encroachment, skipping the scope's own organisations and direct
// self-citations.  A zero bucket records the citing asset without a trend
// point.
func (s *AggregateSet) observeAssigneeBucket(e *CitationEdge, citingKey, ownKey string, bucket time.Time) {
	if citingKey == ownKey {
		return
	}
	if e.CitingAssigneeID != nil {
		for _, id := range s.scope.AssigneeIDs {
			if *e.CitingAssigneeID == id {
				return
			}
		}
	}

	agg, ok := s.Assignees[citingKey]
	if !ok {
		agg = newAssigneeAggregate(citingKey, e.CitingAssignee, e.CitingAssigneeID)
		s.Assignees[citingKey] = agg
	}
	agg.citingAssets[e.CitingID] = true
	if agg.Name == UnknownAssignee {
		agg.Name = AssigneeLabel(e.CitingAssignee)
	}
	if !bucket.IsZero() {
		set, ok := agg.buckets[bucket]
		if !ok {
			set = make(map[string]bool)
			agg.buckets[bucket] = set
		}
		set[e.CitingID] = true
	}
}

func (s *AggregateSet) observeBackward(asset *AssetAggregate, e *CitationEdge) {
	asset.BackwardTotal++
	for _, code := range e.CitedCPCCodes {
		if code != "" {
			asset.BackwardCPC[code]++
		}
	}
	asset.BackwardAssignees[e.CitedAssigneeKey()]++
}

// Window returns the effective analysis window: the scope's explicit bounds
// where set, otherwise the observed citing-date extremes.
func (s *AggregateSet) Window() (from, to *time.Time) {
	from, to = s.scope.From, s.scope.To
	if from == nil {
		from = s.MinCiting
	}
	if to == nil {
		to = s.MaxCiting
	}
	return from, to
}

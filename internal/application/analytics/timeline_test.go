package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citescope/citescope/internal/domain/citation"
)

func TestBuildTimelineZeroFillsGaps(t *testing.T) {
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	apr := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
	totals := map[time.Time]int{
		jan:                  2,
		jan.AddDate(0, 3, 0): 5,
	}

	from := jan.AddDate(0, 0, 14)
	series := BuildTimeline(totals, &from, &apr, citation.BucketMonth)
	require.Len(t, series, 4)

	assert.Equal(t, jan, series[0].BucketStart)
	assert.Equal(t, 2, series[0].Count)
	assert.Equal(t, 0, series[1].Count)
	assert.Equal(t, 0, series[2].Count)
	assert.Equal(t, 5, series[3].Count)
}

func TestBuildTimelineQuarterly(t *testing.T) {
	feb := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	oct := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	q1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	totals := map[time.Time]int{q1: 3}

	series := BuildTimeline(totals, &feb, &oct, citation.BucketQuarter)
	require.Len(t, series, 4)
	assert.Equal(t, q1, series[0].BucketStart)
	assert.Equal(t, 3, series[0].Count)
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), series[3].BucketStart)
}

func TestBuildTimelineMissingWindow(t *testing.T) {
	now := time.Now()
	assert.Empty(t, BuildTimeline(nil, nil, &now, citation.BucketMonth))
	assert.Empty(t, BuildTimeline(nil, &now, nil, citation.BucketMonth))

	// Inverted window yields no buckets.
	earlier := now.AddDate(-1, 0, 0)
	assert.Empty(t, BuildTimeline(nil, &now, &earlier, citation.BucketMonth))
}

func TestBuildImpact(t *testing.T) {
	scope := scopeOf("US-1", "US-2", "US-3")
	scope.Assets["US-1"].Title = "Solid-state cell"
	scope.UnknownIdentifiers = 1
	aggs := citation.NewAggregateSet(scope, citation.BucketMonth)

	jan := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	aggs.Observe(edgeTo("US-1", "EP-A", jan))
	aggs.Observe(edgeTo("US-1", "EP-B", jan.AddDate(0, 2, 0)))
	aggs.Observe(edgeTo("US-2", "EP-A", jan.AddDate(0, 1, 0)))

	result := buildImpact(aggs, scope, citation.BucketMonth, 2)

	assert.Equal(t, 3, result.TotalForwardCitations)
	assert.Equal(t, 2, result.DistinctCitingPatents)
	assert.Equal(t, 1, result.UnknownIdentifiers)

	require.Len(t, result.TopPatents, 2)
	assert.Equal(t, "US-1", result.TopPatents[0].ID)
	assert.Equal(t, "Solid-state cell", result.TopPatents[0].Title)
	assert.Equal(t, 2, result.TopPatents[0].ForwardCount)
	assert.Equal(t, 2, result.TopPatents[0].DistinctCiting)
	assert.InDelta(t, 1, result.TopPatents[0].Velocity, 1e-9)
	assert.Equal(t, "US-2", result.TopPatents[1].ID)

	// Window derives from observed citing dates: Jan through Mar.
	require.Len(t, result.Timeline, 3)
	assert.Equal(t, 1, result.Timeline[0].Count)
	assert.Equal(t, 1, result.Timeline[1].Count)
	assert.Equal(t, 1, result.Timeline[2].Count)

	// Median over the citing assets only; US-3 contributes no velocity.
	assert.InDelta(t, 1, result.MedianVelocity, 1e-9)
}

func TestBuildImpactEmptyScope(t *testing.T) {
	scope := scopeOf()
	aggs := citation.NewAggregateSet(scope, citation.BucketMonth)

	result := buildImpact(aggs, scope, citation.BucketMonth, 10)
	assert.Zero(t, result.TotalForwardCitations)
	assert.Empty(t, result.TopPatents)
	assert.Empty(t, result.Timeline)
}

func TestBuildImpactExplicitWindowWins(t *testing.T) {
	scope := scopeOf("US-1")
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	scope.From = &from
	scope.To = &to
	aggs := citation.NewAggregateSet(scope, citation.BucketMonth)
	aggs.Observe(edgeTo("US-1", "EP-A", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)))

	result := buildImpact(aggs, scope, citation.BucketMonth, 0)
	require.Len(t, result.Timeline, 6)
	assert.Equal(t, from, result.Timeline[0].BucketStart)
	assert.Equal(t, 1, result.Timeline[2].Count)
}

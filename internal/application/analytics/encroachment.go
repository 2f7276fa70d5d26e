package analytics

import (
	"sort"
	"time"

	"github.com/citescope/citescope/internal/domain/citation"
)

// buildEncroachment assembles the competitor encroachment view.  It is only
// meaningful for scopes anchored to target organisations; other scopes get
// precondition_met=false with empty collections.
func buildEncroachment(aggs *citation.AggregateSet, scope *citation.ScopeSet, gran citation.BucketGranularity, topN int) *EncroachmentResult {
	result := &EncroachmentResult{
		Timeline:  []EncroachmentBucket{},
		Assignees: []EncroachmentAssignee{},
	}
	if !scope.AssigneeMode() {
		return result
	}
	result.PreconditionMet = true
	if len(aggs.Assignees) == 0 {
		return result
	}

	keys := make([]string, 0, len(aggs.Assignees))
	for k := range aggs.Assignees {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]EncroachmentAssignee, 0, len(keys))
	slopes := make([]float64, 0, len(keys))
	maxTotal := 0
	for _, k := range keys {
		agg := aggs.Assignees[k]
		total := agg.DistinctCiting()
		if total > maxTotal {
			maxTotal = total
		}
		rows = append(rows, EncroachmentAssignee{
			Assignee:    agg.Name,
			TotalCiting: total,
			Velocity:    SlopePerMonth(agg.BucketCounts()),
		})
		slopes = append(slopes, rows[len(rows)-1].Velocity)
	}

	normVelocities := MinMaxNormalize(slopes)
	for i := range rows {
		rows[i].Encroachment = EncroachmentScore(rows[i].TotalCiting, maxTotal, normVelocities[i])
	}

	sortEncroachment(rows)
	rows = truncate(rows, topN)
	result.Assignees = rows

	// Timeline covers the included competitors only, continuous over the
	// effective window.
	included := make(map[string]bool, len(rows))
	for _, r := range rows {
		included[r.Assignee] = true
	}

	from, to := aggs.Window()
	if from == nil || to == nil {
		return result
	}
	start := gran.Truncate(*from)
	end := gran.Truncate(*to)

	names := make([]string, 0, len(rows))
	counts := make(map[string]map[time.Time]int, len(rows))
	for _, k := range keys {
		agg := aggs.Assignees[k]
		if !included[agg.Name] {
			continue
		}
		if _, ok := counts[agg.Name]; !ok {
			names = append(names, agg.Name)
			counts[agg.Name] = make(map[time.Time]int)
		}
		for t, n := range agg.BucketCounts() {
			counts[agg.Name][t] += n
		}
	}
	sort.Strings(names)

	for t := start; !t.After(end); t = gran.Next(t) {
		bucket := EncroachmentBucket{BucketStart: t, Series: make([]EncroachmentSeriesPoint, 0, len(names))}
		for _, name := range names {
			bucket.Series = append(bucket.Series, EncroachmentSeriesPoint{
				Assignee: name,
				Count:    counts[name][t],
			})
		}
		result.Timeline = append(result.Timeline, bucket)
	}
	return result
}

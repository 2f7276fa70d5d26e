package analytics

import (
	"time"

	"github.com/citescope/citescope/internal/domain/citation"
)

// BuildTimeline expands bucket totals into a continuous zero-filled series
// covering [from, to] inclusive.  A missing window side yields an empty
// series, which happens only when the scope produced no dated edges.
func BuildTimeline(totals map[time.Time]int, from, to *time.Time, gran citation.BucketGranularity) []TimelinePoint {
	if from == nil || to == nil {
		return []TimelinePoint{}
	}

	start := gran.Truncate(*from)
	end := gran.Truncate(*to)
	if end.Before(start) {
		return []TimelinePoint{}
	}

	series := make([]TimelinePoint, 0, len(totals))
	for t := start; !t.After(end); t = gran.Next(t) {
		series = append(series, TimelinePoint{BucketStart: t, Count: totals[t]})
	}
	return series
}

// buildImpact assembles the forward-citation impact view from the finished
// aggregation pass.
func buildImpact(aggs *citation.AggregateSet, scope *citation.ScopeSet, gran citation.BucketGranularity, topN int) *ImpactResult {
	result := &ImpactResult{
		Timeline:           []TimelinePoint{},
		TopPatents:         []ImpactPatent{},
		UnknownIdentifiers: scope.UnknownIdentifiers,
	}
	if scope.Size() == 0 {
		return result
	}

	velocities := make([]float64, 0, len(aggs.Assets))
	patents := make([]ImpactPatent, 0, len(aggs.Assets))
	for _, id := range scope.AssetIDs {
		agg := aggs.Assets[id]
		result.TotalForwardCitations += agg.ForwardTotal

		velocity := AssetVelocity(agg.ForwardTotal, agg.FirstCiting, agg.LastCiting)
		if agg.ForwardTotal > 0 {
			velocities = append(velocities, velocity)
		}

		row := ImpactPatent{
			ID:             id,
			ForwardCount:   agg.ForwardTotal,
			DistinctCiting: agg.DistinctCiting(),
			Velocity:       velocity,
			FirstCiteDate:  agg.FirstCiting,
			LastCiteDate:   agg.LastCiting,
		}
		if rec := scope.Assets[id]; rec != nil {
			row.Title = rec.Title
			row.Assignee = citation.AssigneeLabel(rec.AssigneeName)
			row.PubDate = rec.PubDate
		}
		patents = append(patents, row)
	}

	result.DistinctCitingPatents = aggs.DistinctCiting()
	result.MedianVelocity = medianVelocity(velocities)

	from, to := aggs.Window()
	result.Timeline = BuildTimeline(aggs.BucketTotals, from, to, gran)

	sortImpact(patents)
	result.TopPatents = truncate(patents, topN)
	return result
}

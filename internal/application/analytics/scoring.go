package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/citescope/citescope/internal/domain/citation"
)

// Score component weights.
const (
	exposureNormWeight     = 70.0
	exposureCompWeight     = 30.0
	fragilityCPCWeight     = 60.0
	fragilityDivWeight     = 40.0
	overallExposurePart    = 0.55
	overallFragilityPart   = 0.45
	encroachVolumeWeight   = 70.0
	encroachVelocityWeight = 30.0
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NormalizedForward maps a raw forward-citation count into [0,1] against the
// corpus calibration.  Without a usable calibration it degrades to
// clamp(fwd, 0, 1) and reports uncalibrated=true.
func NormalizedForward(fwd int, cal *citation.Calibration) (norm float64, uncalibrated bool) {
	if cal == nil || cal.P95Forward <= 0 {
		return clamp(float64(fwd), 0, 1), true
	}
	return clamp(math.Log1p(float64(fwd))/math.Log1p(cal.P95Forward), 0, 1), false
}

// ExposureScore computes the externally-driven risk signal in [0,100].
func ExposureScore(fwd, fromOthers int, cal *citation.Calibration) (score float64, uncalibrated bool) {
	norm, uncalibrated := NormalizedForward(fwd, cal)
	compRatio := 0.0
	if fwd > 0 {
		compRatio = float64(fromOthers) / float64(fwd)
	}
	return clamp(exposureNormWeight*norm+exposureCompWeight*compRatio, 0, 100), uncalibrated
}

// FragilityScore computes the internally-driven risk signal in [0,100].
// An asset with zero backward citations scores the diversity floor of 40.
func FragilityScore(agg *citation.AssetAggregate) float64 {
	share := agg.DominantCPCShare()
	diversity := agg.AssigneeDiversity()
	return clamp(fragilityCPCWeight*share+fragilityDivWeight*(1-diversity), 0, 100)
}

// OverallScore blends exposure and fragility.
func OverallScore(exposure, fragility float64) float64 {
	return clamp(overallExposurePart*exposure+overallFragilityPart*fragility, 0, 100)
}

// AssetVelocity returns forward citations per month over the asset's
// citation span, with the span floored at one month.
func AssetVelocity(fwd int, first, last *time.Time) float64 {
	if fwd == 0 || first == nil || last == nil {
		return 0
	}
	months := monthsBetween(*first, *last)
	if months < 1 {
		months = 1
	}
	return float64(fwd) / float64(months)
}

// monthsBetween returns the calendar-month distance between a and b.
func monthsBetween(a, b time.Time) int {
	if b.Before(a) {
		a, b = b, a
	}
	return (b.Year()-a.Year())*12 + int(b.Month()-a.Month())
}

// SlopePerMonth fits a least-squares line through the bucket series with
// months on the x axis and returns its slope.  Fewer than two points give a
// zero slope.
func SlopePerMonth(buckets map[time.Time]int) float64 {
	if len(buckets) < 2 {
		return 0
	}

	starts := make([]time.Time, 0, len(buckets))
	for t := range buckets {
		starts = append(starts, t)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	origin := starts[0]
	n := float64(len(starts))
	var sumX, sumY, sumXY, sumXX float64
	for _, t := range starts {
		x := float64(monthsBetween(origin, t))
		y := float64(buckets[t])
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// EncroachmentScore combines an assignee's citing volume relative to the
// result-set maximum with its min-max normalized velocity.
func EncroachmentScore(total, maxTotal int, normVelocity float64) float64 {
	volume := 0.0
	if maxTotal > 0 {
		volume = float64(total) / float64(maxTotal)
	}
	return clamp(encroachVolumeWeight*volume+encroachVelocityWeight*normVelocity, 0, 100)
}

// MinMaxNormalize maps values into [0,1] within the slice.  A constant
// slice normalizes to all zeros.
func MinMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		return out
	}
	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}
	return out
}

// CPCEntropy returns the Shannon entropy (bits) of a backward-citation CPC
// histogram, a supplementary diagnostic for fragility.
func CPCEntropy(hist map[string]int) float64 {
	total := 0
	for _, n := range hist {
		total += n
	}
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, n := range hist {
		if n == 0 {
			continue
		}
		p := float64(n) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// buildRisk scores every scope asset and assembles the risk-radar view.
// A missing calibration degrades scoring instead of failing.
func buildRisk(aggs *citation.AggregateSet, scope *citation.ScopeSet, cal *citation.Calibration, topN int, sortBy string) *RiskResult {
	result := &RiskResult{Patents: []RiskPatent{}}
	if cal != nil {
		asOf := cal.AsOf
		result.CalibrationAsOf = &asOf
	}
	if scope.Size() == 0 {
		return result
	}

	rows := make([]RiskPatent, 0, len(aggs.Assets))
	for _, id := range scope.AssetIDs {
		agg := aggs.Assets[id]
		exposure, uncalibrated := ExposureScore(agg.ForwardTotal, agg.ForwardFromOthers, cal)
		if uncalibrated {
			result.Uncalibrated = true
		}
		fragility := FragilityScore(agg)
		rows = append(rows, RiskPatent{
			ID:           id,
			Exposure:     exposure,
			Fragility:    fragility,
			Overall:      OverallScore(exposure, fragility),
			ForwardCount: agg.ForwardTotal,
			Velocity:     AssetVelocity(agg.ForwardTotal, agg.FirstCiting, agg.LastCiting),
			CPCEntropy:   CPCEntropy(agg.BackwardCPC),
		})
	}

	sortRisk(rows, sortBy)
	result.Patents = truncate(rows, topN)
	return result
}

// medianVelocity returns the median of the given velocities, 0 when empty.
func medianVelocity(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

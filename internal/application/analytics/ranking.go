package analytics

import "sort"

// sortImpact orders impact rows by forward count descending, identifier
// ascending on ties.
func sortImpact(rows []ImpactPatent) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ForwardCount != rows[j].ForwardCount {
			return rows[i].ForwardCount > rows[j].ForwardCount
		}
		return rows[i].ID < rows[j].ID
	})
}

// sortRisk orders risk rows by the chosen metric descending, identifier
// ascending on ties.  An empty sortBy defaults to the overall score.
func sortRisk(rows []RiskPatent, sortBy string) {
	metric := func(r RiskPatent) float64 {
		switch sortBy {
		case SortByExposure:
			return r.Exposure
		case SortByFragility:
			return r.Fragility
		case SortByForwardCitations:
			return float64(r.ForwardCount)
		default:
			return r.Overall
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		mi, mj := metric(rows[i]), metric(rows[j])
		if mi != mj {
			return mi > mj
		}
		return rows[i].ID < rows[j].ID
	})
}

// sortEncroachment orders competitor rows by encroachment descending,
// assignee name ascending on ties.
func sortEncroachment(rows []EncroachmentAssignee) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Encroachment != rows[j].Encroachment {
			return rows[i].Encroachment > rows[j].Encroachment
		}
		return rows[i].Assignee < rows[j].Assignee
	})
}

// truncate returns the first n rows; n <= 0 means no truncation.
func truncate[T any](rows []T, n int) []T {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}

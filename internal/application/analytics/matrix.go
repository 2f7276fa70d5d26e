package analytics

import (
	"sort"

	"github.com/citescope/citescope/internal/domain/citation"
)

// MatrixOptions tunes the dependency-matrix reduction.
type MatrixOptions struct {
	// MinCitations drops pairs below this raw count.  Zero keeps everything.
	MinCitations int
	// Normalize divides each pair count by the citing assignee's total
	// outgoing citations.
	Normalize bool
	// TopK bounds the square heatmap matrix; the edge list is not bounded.
	TopK int
}

// BuildMatrix reduces raw assignee dependency pairs into the matrix view:
// a thresholded, optionally row-normalized edge list plus the top-K square
// matrix with axis labels ranked by total edge weight.
func BuildMatrix(pairs map[citation.PairKey]*citation.DependencyCount, opts MatrixOptions) *MatrixResult {
	result := &MatrixResult{
		Edges:      []MatrixEdge{},
		Matrix:     [][]float64{},
		AxisLabels: []string{},
	}
	if len(pairs) == 0 {
		return result
	}

	// Normalization denominators come from the unfiltered pair set so that
	// thresholding does not inflate surviving rows.
	outgoing := make(map[string]int)
	for key, pair := range pairs {
		outgoing[key.Citing] += pair.Count
	}

	names := make(map[string]string)
	type cell struct {
		citing, cited string
		weight        float64
	}
	cells := make([]cell, 0, len(pairs))
	for key, pair := range pairs {
		if pair.Count < opts.MinCitations {
			continue
		}
		weight := float64(pair.Count)
		if opts.Normalize {
			total := outgoing[key.Citing]
			if total == 0 {
				continue
			}
			weight = float64(pair.Count) / float64(total)
		}
		if prev, ok := names[key.Citing]; !ok || prev == citation.UnknownAssignee {
			names[key.Citing] = pair.CitingName
		}
		if prev, ok := names[key.Cited]; !ok || prev == citation.UnknownAssignee {
			names[key.Cited] = pair.CitedName
		}
		cells = append(cells, cell{citing: key.Citing, cited: key.Cited, weight: weight})
	}
	if len(cells) == 0 {
		return result
	}

	sort.Slice(cells, func(i, j int) bool {
		if cells[i].weight != cells[j].weight {
			return cells[i].weight > cells[j].weight
		}
		if cells[i].citing != cells[j].citing {
			return cells[i].citing < cells[j].citing
		}
		return cells[i].cited < cells[j].cited
	})

	for _, c := range cells {
		result.Edges = append(result.Edges, MatrixEdge{
			CitingAssignee: names[c.citing],
			CitedAssignee:  names[c.cited],
			Weight:         c.weight,
		})
	}

	// Rank axis keys by the total weight they participate in.
	totals := make(map[string]float64)
	for _, c := range cells {
		totals[c.citing] += c.weight
		totals[c.cited] += c.weight
	}
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if totals[keys[i]] != totals[keys[j]] {
			return totals[keys[i]] > totals[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if opts.TopK > 0 && len(keys) > opts.TopK {
		keys = keys[:opts.TopK]
	}

	index := make(map[string]int, len(keys))
	for i, k := range keys {
		index[k] = i
		result.AxisLabels = append(result.AxisLabels, names[k])
	}

	matrix := make([][]float64, len(keys))
	for i := range matrix {
		matrix[i] = make([]float64, len(keys))
	}
	for _, c := range cells {
		i, iOK := index[c.citing]
		j, jOK := index[c.cited]
		if iOK && jOK {
			matrix[i][j] = c.weight
		}
	}
	result.Matrix = matrix
	return result
}

package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citescope/citescope/internal/domain/citation"
)

func pairFixture() map[citation.PairKey]*citation.DependencyCount {
	return map[citation.PairKey]*citation.DependencyCount{
		{Citing: "rival inc", Cited: "acme corp"}: {
			CitingKey: "rival inc", CitedKey: "acme corp",
			CitingName: "Rival Inc", CitedName: "Acme Corp", Count: 6,
		},
		{Citing: "rival inc", Cited: "beta llc"}: {
			CitingKey: "rival inc", CitedKey: "beta llc",
			CitingName: "Rival Inc", CitedName: "Beta LLC", Count: 2,
		},
		{Citing: "gamma sa", Cited: "acme corp"}: {
			CitingKey: "gamma sa", CitedKey: "acme corp",
			CitingName: "Gamma SA", CitedName: "Acme Corp", Count: 1,
		},
	}
}

func TestBuildMatrixRawCounts(t *testing.T) {
	result := BuildMatrix(pairFixture(), MatrixOptions{})
	require.Len(t, result.Edges, 3)

	// Weight descending, then citing and cited keys ascending.
	assert.Equal(t, MatrixEdge{CitingAssignee: "Rival Inc", CitedAssignee: "Acme Corp", Weight: 6}, result.Edges[0])
	assert.Equal(t, MatrixEdge{CitingAssignee: "Rival Inc", CitedAssignee: "Beta LLC", Weight: 2}, result.Edges[1])
	assert.Equal(t, MatrixEdge{CitingAssignee: "Gamma SA", CitedAssignee: "Acme Corp", Weight: 1}, result.Edges[2])

	require.Len(t, result.AxisLabels, 4)
	require.Len(t, result.Matrix, 4)
	for _, row := range result.Matrix {
		assert.Len(t, row, 4)
	}
}

func TestBuildMatrixThreshold(t *testing.T) {
	result := BuildMatrix(pairFixture(), MatrixOptions{MinCitations: 2})
	require.Len(t, result.Edges, 2)
	for _, e := range result.Edges {
		assert.GreaterOrEqual(t, e.Weight, 2.0)
	}
}

func TestBuildMatrixNormalizedRowsUseUnfilteredTotals(t *testing.T) {
	// Rival's outgoing total is 8 even when the threshold drops its smaller
	// pair, so the surviving weight must be 6/8, not 6/6.
	result := BuildMatrix(pairFixture(), MatrixOptions{MinCitations: 3, Normalize: true})
	require.Len(t, result.Edges, 1)
	assert.Equal(t, "Rival Inc", result.Edges[0].CitingAssignee)
	assert.InDelta(t, 0.75, result.Edges[0].Weight, 1e-9)
}

func TestBuildMatrixNormalizedRowSums(t *testing.T) {
	result := BuildMatrix(pairFixture(), MatrixOptions{Normalize: true})

	sums := make(map[string]float64)
	for _, e := range result.Edges {
		sums[e.CitingAssignee] += e.Weight
	}
	for assignee, sum := range sums {
		assert.LessOrEqual(t, sum, 1+1e-9, "row %s", assignee)
	}
	assert.InDelta(t, 1, sums["Rival Inc"], 1e-9)
}

func TestBuildMatrixTopK(t *testing.T) {
	result := BuildMatrix(pairFixture(), MatrixOptions{TopK: 2})

	// The edge list stays complete; only the heatmap shrinks.
	assert.Len(t, result.Edges, 3)
	require.Len(t, result.AxisLabels, 2)
	require.Len(t, result.Matrix, 2)

	// Axis ranked by total participating weight: the 6-count pair's two
	// parties dominate.
	assert.ElementsMatch(t, []string{"Rival Inc", "Acme Corp"}, result.AxisLabels)

	// The surviving cell is rival -> acme with its raw count.
	found := false
	for i := range result.Matrix {
		for j := range result.Matrix[i] {
			if result.Matrix[i][j] == 6 {
				found = true
			}
		}
	}
	assert.True(t, found)
}

func TestBuildMatrixDeterministic(t *testing.T) {
	first := BuildMatrix(pairFixture(), MatrixOptions{Normalize: true, TopK: 3})
	for i := 0; i < 5; i++ {
		again := BuildMatrix(pairFixture(), MatrixOptions{Normalize: true, TopK: 3})
		assert.Equal(t, first, again)
	}
}

func TestBuildMatrixEmpty(t *testing.T) {
	result := BuildMatrix(nil, MatrixOptions{})
	assert.Empty(t, result.Edges)
	assert.Empty(t, result.Matrix)
	assert.Empty(t, result.AxisLabels)

	// Thresholding everything away behaves like an empty input.
	result = BuildMatrix(pairFixture(), MatrixOptions{MinCitations: 100})
	assert.Empty(t, result.Edges)
	assert.Empty(t, result.Matrix)
}

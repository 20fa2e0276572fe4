package clustering

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segmenter/internal/core"
)

func TestSilhouette_KnownValue(t *testing.T) {
	points := [][]float64{{0}, {1}, {4}, {5}}
	score, err := Silhouette(points, IntLabels([]int{0, 0, 1, 1}))
	require.NoError(t, err)
	assert.InDelta(t, (7.0/9.0+5.0/7.0)/2, score, 1e-12)
}

func TestSilhouette_NoiseExcluded(t *testing.T) {
	points := twoGroups()
	labels := IntLabels([]int{0, 0, 0, 1, 1, 1})
	base, err := Silhouette(points, labels)
	require.NoError(t, err)
	assert.Greater(t, base, 0.8)

	withNoise := append(twoGroups(), []float64{50, -50})
	noisy := append(IntLabels([]int{0, 0, 0, 1, 1, 1}), core.NoiseLabel())
	analysis, err := PerformSilhouetteAnalysis(withNoise, noisy)
	require.NoError(t, err)

	assert.InDelta(t, base, analysis.OverallScore, 1e-12)
	assert.Equal(t, 6, analysis.NumPoints)
	assert.True(t, math.IsNaN(analysis.PointScores[6]))
	assert.Equal(t, []int{0, 1}, analysis.Clusters())
	assert.Contains(t, analysis.Quality, "Excellent")
}

func TestSilhouette_SingletonScoresZero(t *testing.T) {
	points := append(twoGroups(), []float64{30, 30})
	analysis, err := PerformSilhouetteAnalysis(points, IntLabels([]int{0, 0, 0, 1, 1, 1, 2}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, analysis.PointScores[6])
	assert.Equal(t, 0.0, analysis.ClusterScores[2])
	assert.Equal(t, 3, analysis.NumClusters)
}

func TestSilhouette_NotComputable(t *testing.T) {
	points := twoGroups()
	tests := []struct {
		name   string
		labels []core.Label
	}{
		{"single cluster", IntLabels([]int{0, 0, 0, 0, 0, 0})},
		{"one cluster plus noise", append(IntLabels([]int{0, 0, 0, 0, 0}), core.NoiseLabel())},
		{"all noise", []core.Label{core.NoiseLabel(), core.NoiseLabel(), core.NoiseLabel(), core.NoiseLabel(), core.NoiseLabel(), core.NoiseLabel()}},
		{"all singletons", IntLabels([]int{0, 1, 2, 3, 4, 5})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Silhouette(points, tt.labels)
			assert.ErrorIs(t, err, ErrSilhouetteNotComputable)
		})
	}
}

func TestSilhouette_LengthMismatch(t *testing.T) {
	_, err := Silhouette(twoGroups(), IntLabels([]int{0, 1}))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSilhouetteNotComputable)
}

func TestInterpretSilhouetteScore(t *testing.T) {
	assert.Contains(t, interpretSilhouetteScore(0.8), "Excellent")
	assert.Contains(t, interpretSilhouetteScore(0.6), "Good")
	assert.Contains(t, interpretSilhouetteScore(0.3), "Fair")
	assert.Contains(t, interpretSilhouetteScore(0.1), "Poor")
	assert.Contains(t, interpretSilhouetteScore(-0.2), "Very Poor")
}

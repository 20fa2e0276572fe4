package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segmenter/internal/core"
)

func TestDBSCAN_TwoGroups(t *testing.T) {
	res, err := NewDBSCAN(DBSCANConfig{Eps: 2, MinSamples: 2}).Fit(twoGroups())
	require.NoError(t, err)

	assert.Equal(t, 2, res.NumClusters)
	assert.Zero(t, res.NoiseCount())
	for i := 0; i < 3; i++ {
		assert.Equal(t, core.ClusterLabel(0), res.Labels[i])
		assert.Equal(t, core.ClusterLabel(1), res.Labels[i+3])
	}

	km, err := NewKMeans(DefaultKMeansConfig()).Fit(twoGroups(), 2)
	require.NoError(t, err)
	for i := range km.Labels {
		for j := range km.Labels {
			assert.Equal(t, km.Labels[i] == km.Labels[j], res.Labels[i] == res.Labels[j])
		}
	}
}

func TestDBSCAN_BorderAndNoise(t *testing.T) {
	points := [][]float64{{0}, {0.5}, {1.0}, {1.9}, {5}}
	res, err := NewDBSCAN(DBSCANConfig{Eps: 1, MinSamples: 3}).Fit(points)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true, true, false, false}, res.Core)
	assert.Equal(t, core.ClusterLabel(0), res.Labels[3], "border point joins the cluster")
	assert.True(t, res.Labels[4].IsNoise())
	assert.Equal(t, 1, res.NumClusters)
	assert.Equal(t, 1, res.NoiseCount())

	a := res.Assignment()
	assert.Equal(t, "dbscan", a.Algorithm)
	assert.Equal(t, 1, a.NoiseCount())
}

func TestDBSCAN_DensityProperties(t *testing.T) {
	points := blobs([][]float64{{0, 0}, {6, 6}}, 30, 0.6, 21)
	points = append(points, []float64{20, -20}, []float64{-15, 12})
	cfg := DBSCANConfig{Eps: 0.8, MinSamples: 4}
	res, err := NewDBSCAN(cfg).Fit(points)
	require.NoError(t, err)

	assert.True(t, res.Labels[len(points)-1].IsNoise())
	assert.True(t, res.Labels[len(points)-2].IsNoise())

	for i, p := range points {
		for j, q := range points {
			if EuclideanDistance(p, q) > cfg.Eps {
				continue
			}
			// Neighbouring core points share a cluster.
			if res.Core[i] && res.Core[j] {
				assert.Equal(t, res.Labels[i], res.Labels[j], "core points %d and %d", i, j)
			}
			// Noise is never within reach of a core point.
			if res.Labels[i].IsNoise() {
				assert.False(t, res.Core[j], "noise point %d within eps of core point %d", i, j)
			}
		}
		if res.Labels[i].IsNoise() {
			assert.False(t, res.Core[i])
		}
	}
}

func TestDBSCAN_MinSamplesOneHasNoNoise(t *testing.T) {
	points := [][]float64{{0, 0}, {100, 100}, {-50, 3}}
	res, err := NewDBSCAN(DBSCANConfig{Eps: 0.1, MinSamples: 1}).Fit(points)
	require.NoError(t, err)
	assert.Zero(t, res.NoiseCount())
	assert.Equal(t, 3, res.NumClusters)
}

func TestDBSCAN_Errors(t *testing.T) {
	_, err := NewDBSCAN(DBSCANConfig{Eps: 0, MinSamples: 2}).Fit(twoGroups())
	assert.Error(t, err)

	_, err = NewDBSCAN(DBSCANConfig{Eps: 1, MinSamples: 0}).Fit(twoGroups())
	assert.Error(t, err)

	_, err = NewDBSCAN(DefaultDBSCANConfig()).Fit(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

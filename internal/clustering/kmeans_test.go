package clustering

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoGroups() [][]float64 {
	return [][]float64{
		{0, 0}, {0, 1}, {1, 0},
		{10, 10}, {10, 11}, {11, 10},
	}
}

// blobs generates n points around each centre with a fixed seed.
func blobs(centres [][]float64, n int, spread float64, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	var points [][]float64
	for _, c := range centres {
		for i := 0; i < n; i++ {
			p := make([]float64, len(c))
			for j := range c {
				p[j] = c[j] + rng.NormFloat64()*spread
			}
			points = append(points, p)
		}
	}
	return points
}

func TestKMeans_TwoGroups(t *testing.T) {
	res, err := NewKMeans(DefaultKMeansConfig()).Fit(twoGroups(), 2)
	require.NoError(t, err)

	assert.Equal(t, res.Labels[0], res.Labels[1])
	assert.Equal(t, res.Labels[0], res.Labels[2])
	assert.Equal(t, res.Labels[3], res.Labels[4])
	assert.Equal(t, res.Labels[3], res.Labels[5])
	assert.NotEqual(t, res.Labels[0], res.Labels[3])
	assert.Equal(t, []int{3, 3}, res.Sizes())
	assert.True(t, res.Converged)

	// Each group contributes 4/3 around its centroid.
	assert.InDelta(t, 8.0/3.0, res.Inertia, 1e-9)
}

func TestKMeans_Deterministic(t *testing.T) {
	points := blobs([][]float64{{0, 0}, {5, 5}, {0, 5}}, 20, 1.0, 7)
	cfg := DefaultKMeansConfig()
	cfg.Seed = 99

	cfg.Workers = 1
	a, err := NewKMeans(cfg).Fit(points, 3)
	require.NoError(t, err)

	cfg.Workers = 4
	b, err := NewKMeans(cfg).Fit(points, 3)
	require.NoError(t, err)

	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.Centroids, b.Centroids)
	assert.Equal(t, a.Inertia, b.Inertia)
	assert.Equal(t, a.Restart, b.Restart)
}

func TestKMeans_NearestCentroid(t *testing.T) {
	points := blobs([][]float64{{0, 0, 0}, {4, 4, 0}, {0, 4, 4}, {4, 0, 4}}, 15, 1.5, 3)
	res, err := NewKMeans(DefaultKMeansConfig()).Fit(points, 4)
	require.NoError(t, err)

	for i, p := range points {
		own := SquaredEuclidean(p, res.Centroids[res.Labels[i]])
		for c, centroid := range res.Centroids {
			assert.LessOrEqual(t, own, SquaredEuclidean(p, centroid)+1e-12,
				"point %d closer to centroid %d than its own %d", i, c, res.Labels[i])
		}
		assert.Equal(t, res.Labels[i], res.Predict(p))
	}

	total := 0.0
	for i, p := range points {
		total += SquaredEuclidean(p, res.Centroids[res.Labels[i]])
	}
	assert.InDelta(t, total, res.Inertia, 1e-9)
}

func TestKMeans_InertiaNonIncreasing(t *testing.T) {
	points := blobs([][]float64{{0, 0}, {3, 0}, {0, 3}, {3, 3}, {6, 6}}, 25, 1.2, 11)
	for seed := int64(0); seed < 5; seed++ {
		cfg := DefaultKMeansConfig()
		cfg.Seed = seed
		cfg.Restarts = 1
		res, err := NewKMeans(cfg).Fit(points, 5)
		require.NoError(t, err)
		require.NotEmpty(t, res.History)
		for i := 1; i < len(res.History); i++ {
			assert.LessOrEqual(t, res.History[i], res.History[i-1]+1e-9, "seed %d step %d", seed, i)
		}
		assert.Equal(t, res.History[len(res.History)-1], res.Inertia)
		assert.Len(t, res.History, res.Iterations)
	}
}

func TestKMeans_ConvergedCentroidsAreMemberMeans(t *testing.T) {
	converged := 0
	for seed := int64(0); seed < 40; seed++ {
		rng := rand.New(rand.NewSource(seed))
		points := make([][]float64, 200)
		for i := range points {
			points[i] = []float64{rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64()}
		}

		cfg := DefaultKMeansConfig()
		cfg.Seed = seed
		cfg.Restarts = 2
		res, err := NewKMeans(cfg).Fit(points, 6)
		require.NoError(t, err)
		if !res.Converged {
			continue
		}
		converged++

		sums := make([][]float64, res.K)
		counts := make([]int, res.K)
		for c := range sums {
			sums[c] = make([]float64, 4)
		}
		for i, p := range points {
			counts[res.Labels[i]]++
			for j, v := range p {
				sums[res.Labels[i]][j] += v
			}
		}
		for c := range sums {
			if counts[c] == 0 {
				continue
			}
			for j := range sums[c] {
				assert.InDelta(t, sums[c][j]/float64(counts[c]), res.Centroids[c][j], 1e-9, "seed %d cluster %d", seed, c)
			}
		}

		next, _ := assignPoints(points, res.Centroids)
		assert.Equal(t, res.Labels, next, "seed %d: another assignment step moved points", seed)
	}
	assert.Positive(t, converged)
}

func TestKMeans_MoreRestartsNeverWorse(t *testing.T) {
	points := blobs([][]float64{{0, 0}, {3, 0}, {0, 3}, {3, 3}}, 10, 1.0, 5)
	cfg := DefaultKMeansConfig()
	cfg.Restarts = 1
	one, err := NewKMeans(cfg).Fit(points, 4)
	require.NoError(t, err)

	cfg.Restarts = 10
	ten, err := NewKMeans(cfg).Fit(points, 4)
	require.NoError(t, err)

	assert.LessOrEqual(t, ten.Inertia, one.Inertia)
}

func TestKMeans_KEqualsN(t *testing.T) {
	points := twoGroups()
	res, err := NewKMeans(DefaultKMeansConfig()).Fit(points, len(points))
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Inertia, 1e-12)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5}, res.Labels)
}

func TestKMeans_Errors(t *testing.T) {
	km := NewKMeans(DefaultKMeansConfig())

	_, err := km.Fit(nil, 2)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = km.Fit(twoGroups(), 0)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = km.Fit(twoGroups(), 7)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = km.Fit([][]float64{{1, 2}, {3}}, 1)
	assert.ErrorIs(t, err, ErrRaggedInput)

	_, err = km.Fit([][]float64{{1, 1}, {1, 1}, {1, 1}}, 2)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestKMeans_Assignment(t *testing.T) {
	res, err := NewKMeans(DefaultKMeansConfig()).Fit(twoGroups(), 2)
	require.NoError(t, err)

	a := res.Assignment()
	assert.Equal(t, "kmeans", a.Algorithm)
	assert.Equal(t, 2, a.NumClusters())
	assert.Zero(t, a.NoiseCount())
}

func TestUpdateCentroids_ReseedsEmptyCluster(t *testing.T) {
	points := [][]float64{{0}, {1}, {10}}
	labels := []int{0, 0, 0}
	prev := [][]float64{{3}, {100}}

	next := updateCentroids(points, labels, prev)
	assert.InDelta(t, 11.0/3.0, next[0][0], 1e-12)
	// Point 10 is farthest from the mean of cluster 0.
	assert.Equal(t, []float64{10}, next[1])
}

package clustering

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"segmenter/internal/core"
	"segmenter/internal/logger"
)

// KMeansConfig holds configuration for K-means clustering
type KMeansConfig struct {
	MaxIterations int   // Maximum number of assign/update iterations per restart
	Restarts      int   // Independent k-means++ initializations; the lowest inertia wins
	Seed          int64 // Seed for the random source; equal seeds give equal results
	Workers       int   // Parallel restarts; 0 uses runtime.NumCPU()
}

// DefaultKMeansConfig returns sensible defaults for K-means clustering
func DefaultKMeansConfig() KMeansConfig {
	return KMeansConfig{
		MaxIterations: 300,
		Restarts:      10,
		Seed:          42,
	}
}

// KMeansResult is the best run found for one cluster count.
type KMeansResult struct {
	K          int
	Labels     []int       // Cluster id in 0..K-1 per point
	Centroids  [][]float64 // Final centroids in input space
	Inertia    float64     // Sum of squared distances to assigned centroids
	Iterations int         // Assignment steps of the winning restart
	Converged  bool        // False when MaxIterations was reached first
	History    []float64   // Inertia after each assignment step, non-increasing
	Restart    int         // Index of the winning restart
}

// KMeans implements seeded Lloyd's K-means with k-means++ initialization and restarts
type KMeans struct {
	config KMeansConfig
	log    *slog.Logger
}

// NewKMeans creates a K-means clusterer; zero fields fall back to defaults
func NewKMeans(config KMeansConfig) *KMeans {
	def := DefaultKMeansConfig()
	if config.MaxIterations <= 0 {
		config.MaxIterations = def.MaxIterations
	}
	if config.Restarts <= 0 {
		config.Restarts = def.Restarts
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	return &KMeans{
		config: config,
		log:    logger.Get(),
	}
}

// Config returns the effective configuration.
func (km *KMeans) Config() KMeansConfig { return km.config }

// Fit partitions points into k clusters.
func (km *KMeans) Fit(points [][]float64, k int) (*KMeansResult, error) {
	if _, err := validatePoints(points); err != nil {
		return nil, err
	}
	if k < 1 || k > len(points) {
		return nil, fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidK, k, len(points))
	}
	if distinct := distinctPoints(points, k); distinct < k {
		return nil, fmt.Errorf("%w: %d clusters requested but only %d distinct points", ErrInvalidK, k, distinct)
	}

	// Each restart gets its own stream, drawn up front so that the result
	// does not depend on worker scheduling.
	master := rand.New(rand.NewSource(km.config.Seed))
	seeds := make([]int64, km.config.Restarts)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	results := make([]*KMeansResult, len(seeds))
	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := min(km.config.Workers, len(seeds))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				res := km.runOnce(points, k, rand.New(rand.NewSource(seeds[r])))
				res.Restart = r
				results[r] = res
			}
		}()
	}
	for r := range seeds {
		jobs <- r
	}
	close(jobs)
	wg.Wait()

	best := results[0]
	for _, res := range results[1:] {
		if res.Inertia < best.Inertia {
			best = res
		}
	}

	km.log.Debug("K-means fit complete",
		"k", k,
		"inertia", best.Inertia,
		"iterations", best.Iterations,
		"converged", best.Converged,
		"restart", best.Restart)

	return best, nil
}

// runOnce executes one initialization followed by Lloyd iterations.
func (km *KMeans) runOnce(points [][]float64, k int, rng *rand.Rand) *KMeansResult {
	centroids := initializeCentroidsKMeansPP(points, k, rng)

	var labels []int
	var history []float64
	converged := false
	iterations := 0

	for {
		iterations++
		newLabels, inertia := assignPoints(points, centroids)
		history = append(history, inertia)

		if labels != nil && sameLabels(labels, newLabels) {
			labels = newLabels
			converged = true
			break
		}
		labels = newLabels
		if iterations >= km.config.MaxIterations {
			break
		}

		centroids = updateCentroids(points, labels, centroids)
	}

	return &KMeansResult{
		K:          k,
		Labels:     labels,
		Centroids:  centroids,
		Inertia:    history[len(history)-1],
		Iterations: iterations,
		Converged:  converged,
		History:    history,
	}
}

// initializeCentroidsKMeansPP uses K-means++ initialization for better cluster quality
func initializeCentroidsKMeansPP(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.Intn(len(points))]))

	distances := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for j, p := range points {
			minDist := math.Inf(1)
			for _, c := range centroids {
				if d := SquaredEuclidean(p, c); d < minDist {
					minDist = d
				}
			}
			distances[j] = minDist
			total += minDist
		}

		if total == 0 {
			centroids = append(centroids, clone(points[rng.Intn(len(points))]))
			continue
		}

		target := rng.Float64() * total
		cumulative := 0.0
		selected := len(points) - 1
		for j, d := range distances {
			cumulative += d
			if d > 0 && cumulative >= target {
				selected = j
				break
			}
		}
		centroids = append(centroids, clone(points[selected]))
	}

	return centroids
}

// assignPoints labels each point with its nearest centroid (ties go to the lower index)
// and returns the resulting inertia.
func assignPoints(points, centroids [][]float64) ([]int, float64) {
	labels := make([]int, len(points))
	inertia := 0.0
	for i, p := range points {
		idx, d := nearest(p, centroids)
		labels[i] = idx
		inertia += d
	}
	return labels, inertia
}

func nearest(p []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := SquaredEuclidean(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// updateCentroids recalculates centroids as member means. A cluster that lost
// all members is reseeded at the point farthest from its own centroid, taken
// from a cluster that can spare it.
func updateCentroids(points [][]float64, labels []int, prev [][]float64) [][]float64 {
	k, dim := len(prev), len(prev[0])
	centroids := make([][]float64, k)
	counts := make([]int, k)
	for c := range centroids {
		centroids[c] = make([]float64, dim)
	}

	for i, p := range points {
		c := labels[i]
		counts[c]++
		for j, v := range p {
			centroids[c][j] += v
		}
	}

	var empty []int
	for c := range centroids {
		if counts[c] == 0 {
			empty = append(empty, c)
			continue
		}
		for j := range centroids[c] {
			centroids[c][j] /= float64(counts[c])
		}
	}
	if len(empty) == 0 {
		return centroids
	}

	type candidate struct {
		idx  int
		dist float64
	}
	candidates := make([]candidate, len(points))
	for i, p := range points {
		candidates[i] = candidate{i, SquaredEuclidean(p, centroids[labels[i]])}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].dist > candidates[b].dist
	})

	next := 0
	for _, c := range empty {
		for next < len(candidates) && counts[labels[candidates[next].idx]] <= 1 {
			next++
		}
		if next == len(candidates) {
			copy(centroids[c], prev[c])
			continue
		}
		donor := candidates[next].idx
		counts[labels[donor]]--
		copy(centroids[c], points[donor])
		next++
	}

	return centroids
}

func sameLabels(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clone(p []float64) []float64 {
	return append([]float64(nil), p...)
}

// Predict returns the nearest centroid for a new point.
func (r *KMeansResult) Predict(point []float64) int {
	idx, _ := nearest(point, r.Centroids)
	return idx
}

// Assignment converts the labels into a core.Assignment.
func (r *KMeansResult) Assignment() core.Assignment {
	return core.Assignment{Algorithm: "kmeans", Labels: IntLabels(r.Labels)}
}

// Sizes returns member counts per cluster.
func (r *KMeansResult) Sizes() []int {
	sizes := make([]int, r.K)
	for _, l := range r.Labels {
		sizes[l]++
	}
	return sizes
}

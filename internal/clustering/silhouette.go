package clustering

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"segmenter/internal/core"
)

// ErrSilhouetteNotComputable is returned when fewer than two clusters remain
// after noise is excluded, or when every remaining point is its own cluster.
var ErrSilhouetteNotComputable = errors.New("silhouette not computable")

// SilhouetteScore calculates the silhouette score for a single data point
// Returns a score between -1 and 1:
//
//	-1: Point likely in wrong cluster
//	 0: Point on the border between clusters
//	+1: Point well matched to its cluster
//
// A point that is alone in its cluster scores 0.
func SilhouetteScore(
	pointIdx int,
	clusterAssignments []int,
	distances [][]float64,
) float64 {
	n := len(clusterAssignments)
	if n == 0 || pointIdx >= n {
		return 0.0
	}

	currentCluster := clusterAssignments[pointIdx]

	a, peers := meanIntraClusterDistance(pointIdx, currentCluster, clusterAssignments, distances)
	if peers == 0 {
		return 0.0
	}
	b := minInterClusterDistance(pointIdx, currentCluster, clusterAssignments, distances)
	if math.IsInf(b, 1) {
		return 0.0
	}

	denom := math.Max(a, b)
	if denom == 0 {
		return 0.0
	}
	return (b - a) / denom
}

// meanIntraClusterDistance calculates mean distance to other points in same cluster
func meanIntraClusterDistance(
	pointIdx int,
	clusterLabel int,
	clusterAssignments []int,
	distances [][]float64,
) (float64, int) {
	sumDistance := 0.0
	count := 0

	for i, label := range clusterAssignments {
		if i == pointIdx || label != clusterLabel {
			continue
		}
		sumDistance += distances[pointIdx][i]
		count++
	}

	if count == 0 {
		return 0.0, 0
	}
	return sumDistance / float64(count), count
}

// minInterClusterDistance finds minimum mean distance to points in other clusters
func minInterClusterDistance(
	pointIdx int,
	currentCluster int,
	clusterAssignments []int,
	distances [][]float64,
) float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, label := range clusterAssignments {
		if label == currentCluster {
			continue
		}
		sums[label] += distances[pointIdx][i]
		counts[label]++
	}

	minDistance := math.Inf(1)
	for label, sum := range sums {
		if mean := sum / float64(counts[label]); mean < minDistance {
			minDistance = mean
		}
	}
	return minDistance
}

// DistanceMatrix computes pairwise distances between all points
func DistanceMatrix(points [][]float64, distanceFunc DistanceFunc) [][]float64 {
	n := len(points)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := distanceFunc(points[i], points[j])
			matrix[i][j] = d
			matrix[j][i] = d
		}
	}
	return matrix
}

// clusteredSubset drops noise points, returning the kept indexes and their
// integer cluster ids.
func clusteredSubset(labels []core.Label) ([]int, []int, int) {
	var kept, ids []int
	clusters := make(map[int]struct{})
	for i, l := range labels {
		id, ok := l.Cluster()
		if !ok {
			continue
		}
		kept = append(kept, i)
		ids = append(ids, id)
		clusters[id] = struct{}{}
	}
	return kept, ids, len(clusters)
}

// Silhouette returns the mean silhouette coefficient over all non-noise points
// using Euclidean distance.
func Silhouette(points [][]float64, labels []core.Label) (float64, error) {
	analysis, err := PerformSilhouetteAnalysis(points, labels)
	if err != nil {
		return 0, err
	}
	return analysis.OverallScore, nil
}

// SilhouetteAnalysis provides comprehensive silhouette analysis
type SilhouetteAnalysis struct {
	OverallScore  float64         // Average across all non-noise points
	ClusterScores map[int]float64 // Per-cluster average scores
	PointScores   []float64       // Per input point; NaN for noise
	NumClusters   int
	NumPoints     int // Points that took part (noise excluded)
	Quality       string
}

// PerformSilhouetteAnalysis performs comprehensive silhouette analysis
func PerformSilhouetteAnalysis(points [][]float64, labels []core.Label) (*SilhouetteAnalysis, error) {
	if len(points) != len(labels) {
		return nil, fmt.Errorf("got %d points but %d labels", len(points), len(labels))
	}
	if _, err := validatePoints(points); err != nil {
		return nil, err
	}

	kept, ids, numClusters := clusteredSubset(labels)
	if numClusters < 2 {
		return nil, fmt.Errorf("%w: %d cluster(s) after excluding noise", ErrSilhouetteNotComputable, numClusters)
	}
	if numClusters >= len(kept) {
		return nil, fmt.Errorf("%w: every point is its own cluster", ErrSilhouetteNotComputable)
	}

	subset := make([][]float64, len(kept))
	for i, idx := range kept {
		subset[i] = points[idx]
	}
	distances := DistanceMatrix(subset, EuclideanDistance)

	pointScores := make([]float64, len(points))
	for i := range pointScores {
		pointScores[i] = math.NaN()
	}

	total := 0.0
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, idx := range kept {
		s := SilhouetteScore(i, ids, distances)
		pointScores[idx] = s
		total += s
		sums[ids[i]] += s
		counts[ids[i]]++
	}

	clusterScores := make(map[int]float64, len(sums))
	for id, sum := range sums {
		clusterScores[id] = sum / float64(counts[id])
	}

	overall := total / float64(len(kept))
	return &SilhouetteAnalysis{
		OverallScore:  overall,
		ClusterScores: clusterScores,
		PointScores:   pointScores,
		NumClusters:   numClusters,
		NumPoints:     len(kept),
		Quality:       interpretSilhouetteScore(overall),
	}, nil
}

// Clusters returns the analysed cluster ids in ascending order.
func (a *SilhouetteAnalysis) Clusters() []int {
	ids := make([]int, 0, len(a.ClusterScores))
	for id := range a.ClusterScores {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// interpretSilhouetteScore provides human-readable interpretation
func interpretSilhouetteScore(score float64) string {
	if score >= 0.71 {
		return "Excellent - Strong cluster structure"
	} else if score >= 0.51 {
		return "Good - Reasonable cluster structure"
	} else if score >= 0.26 {
		return "Fair - Weak cluster structure"
	} else if score >= 0.0 {
		return "Poor - No substantial cluster structure"
	} else {
		return "Very Poor - Artificial/forced clustering"
	}
}

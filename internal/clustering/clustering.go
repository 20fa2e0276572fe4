package clustering

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"segmenter/internal/core"
)

var (
	// ErrEmptyInput is returned when there are no points to cluster.
	ErrEmptyInput = errors.New("no points to cluster")
	// ErrInvalidK is returned for a cluster count outside 1..n.
	ErrInvalidK = errors.New("invalid cluster count")
	// ErrRaggedInput is returned when points have different dimensions.
	ErrRaggedInput = errors.New("points have inconsistent dimensions")
)

// DistanceFunc measures the distance between two points of equal dimension.
type DistanceFunc func(a, b []float64) float64

// EuclideanDistance calculates Euclidean distance between two vectors
func EuclideanDistance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// SquaredEuclidean calculates the squared Euclidean distance, the k-means objective term
func SquaredEuclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// validatePoints checks that points is non-empty and rectangular, returning the dimension.
func validatePoints(points [][]float64) (int, error) {
	if len(points) == 0 {
		return 0, ErrEmptyInput
	}
	dim := len(points[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: zero-dimensional points", ErrRaggedInput)
	}
	for i, p := range points {
		if len(p) != dim {
			return 0, fmt.Errorf("%w: point %d has %d values, want %d", ErrRaggedInput, i, len(p), dim)
		}
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("point %d contains a non-finite value", i)
			}
		}
	}
	return dim, nil
}

// IntLabels wraps plain cluster ids as labels.
func IntLabels(ids []int) []core.Label {
	labels := make([]core.Label, len(ids))
	for i, id := range ids {
		labels[i] = core.ClusterLabel(id)
	}
	return labels
}

// distinctPoints counts distinct points, stopping early once limit is reached.
func distinctPoints(points [][]float64, limit int) int {
	seen := make(map[string]struct{})
	for _, p := range points {
		seen[fmt.Sprint(p)] = struct{}{}
		if len(seen) >= limit {
			break
		}
	}
	return len(seen)
}

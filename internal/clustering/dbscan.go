package clustering

import (
	"fmt"
	"log/slog"

	"segmenter/internal/core"
	"segmenter/internal/logger"
)

// DBSCANConfig holds the density parameters.
type DBSCANConfig struct {
	Eps        float64 // Neighborhood radius, inclusive
	MinSamples int     // Neighbors (counting the point itself) needed for a core point
}

// DefaultDBSCANConfig returns the usual starting parameters for standardized data.
func DefaultDBSCANConfig() DBSCANConfig {
	return DBSCANConfig{Eps: 0.5, MinSamples: 5}
}

// DBSCANResult holds density-based cluster labels.
type DBSCANResult struct {
	Labels      []core.Label
	Core        []bool // Core[i] reports whether point i is a core point
	NumClusters int
}

// Assignment converts the labels into a core.Assignment.
func (r *DBSCANResult) Assignment() core.Assignment {
	return core.Assignment{Algorithm: "dbscan", Labels: r.Labels}
}

// NoiseCount returns the number of points labelled noise.
func (r *DBSCANResult) NoiseCount() int {
	n := 0
	for _, l := range r.Labels {
		if l.IsNoise() {
			n++
		}
	}
	return n
}

// DBSCAN groups points that are density-reachable from a core point.
type DBSCAN struct {
	config DBSCANConfig
	log    *slog.Logger
}

// NewDBSCAN creates a DBSCAN clusterer.
func NewDBSCAN(config DBSCANConfig) *DBSCAN {
	return &DBSCAN{config: config, log: logger.Get()}
}

// Fit labels every point with a cluster or noise. Clusters are numbered from 0
// in the order their first core point appears in the input.
func (d *DBSCAN) Fit(points [][]float64) (*DBSCANResult, error) {
	if d.config.Eps <= 0 {
		return nil, fmt.Errorf("eps must be positive, got %g", d.config.Eps)
	}
	if d.config.MinSamples < 1 {
		return nil, fmt.Errorf("min samples must be at least 1, got %d", d.config.MinSamples)
	}
	if _, err := validatePoints(points); err != nil {
		return nil, err
	}

	n := len(points)
	neighbors := make([][]int, n)
	isCore := make([]bool, n)
	for i := range points {
		neighbors[i] = d.rangeQuery(points, i)
		isCore[i] = len(neighbors[i]) >= d.config.MinSamples
	}

	const unassigned = -1
	ids := make([]int, n)
	for i := range ids {
		ids[i] = unassigned
	}

	clusterID := 0
	for i := 0; i < n; i++ {
		if ids[i] != unassigned || !isCore[i] {
			continue
		}

		ids[i] = clusterID
		seed := []int{i}
		for len(seed) > 0 {
			q := seed[0]
			seed = seed[1:]
			// Border points join the cluster but do not extend it.
			if !isCore[q] {
				continue
			}
			for _, j := range neighbors[q] {
				if ids[j] == unassigned {
					ids[j] = clusterID
					seed = append(seed, j)
				}
			}
		}
		clusterID++
	}

	labels := make([]core.Label, n)
	noise := 0
	for i, id := range ids {
		if id == unassigned {
			labels[i] = core.NoiseLabel()
			noise++
			continue
		}
		labels[i] = core.ClusterLabel(id)
	}

	d.log.Debug("DBSCAN fit complete",
		"eps", d.config.Eps,
		"min_samples", d.config.MinSamples,
		"clusters", clusterID,
		"noise", noise)

	return &DBSCANResult{Labels: labels, Core: isCore, NumClusters: clusterID}, nil
}

// rangeQuery returns indices of all points within eps of points[idx], itself included.
func (d *DBSCAN) rangeQuery(points [][]float64, idx int) []int {
	var result []int
	q := points[idx]
	for i, p := range points {
		if EuclideanDistance(q, p) <= d.config.Eps {
			result = append(result, i)
		}
	}
	return result
}

// Package report turns clustering results into profiles, segment descriptions and output files.
package report

import (
	"fmt"
	"sort"
	"time"

	"segmenter/internal/clustering"
	"segmenter/internal/core"
	"segmenter/internal/reduce"
)

// Score is a metric that may be undefined for a given clustering.
type Score struct {
	Value float64
	OK    bool
}

func (s Score) String() string {
	if !s.OK {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", s.Value)
}

// Ptr returns the value as a pointer, nil when undefined.
func (s Score) Ptr() *float64 {
	if !s.OK {
		return nil
	}
	v := s.Value
	return &v
}

// Analysis gathers everything the reporters render.
type Analysis struct {
	RunID       string
	GeneratedAt time.Time
	Dataset     string
	Customers   []core.Customer

	Sweep      *clustering.Sweep
	K          int
	ElbowFound bool
	Seed       int64

	KMeans           *clustering.KMeansResult
	KMeansSilhouette Score
	KMeansProfiles   []core.ClusterProfile
	Centroids        [][]float64
	Segments         []Segment

	DBSCANConfig     clustering.DBSCANConfig
	DBSCAN           *clustering.DBSCANResult
	DBSCANSilhouette Score
	DBSCANProfiles   []core.ClusterProfile

	Projection *reduce.Projection
	Population Population
}

// Population holds per-feature mean and scale in original units, as fitted
// by the scaler used for clustering.
type Population struct {
	Mean []float64
	Std  []float64
}

// Scaler exposes fitted standardization parameters.
type Scaler interface {
	Mean() []float64
	Scale() []float64
}

// PopulationFrom reads the population statistics off a fitted scaler.
func PopulationFrom(s Scaler) Population {
	return Population{Mean: s.Mean(), Std: s.Scale()}
}

// Centroids maps standardized K-Means centroids back to original units.
func Centroids(km *clustering.KMeansResult, inverse func([]float64) ([]float64, error)) ([][]float64, error) {
	out := make([][]float64, len(km.Centroids))
	for i, c := range km.Centroids {
		row, err := inverse(c)
		if err != nil {
			return nil, fmt.Errorf("centroid %d: %w", i, err)
		}
		out[i] = row
	}
	return out, nil
}

// Profiles aggregates each cluster of an assignment in original units,
// ordered by label with noise last.
func Profiles(customers []core.Customer, assignment core.Assignment) ([]core.ClusterProfile, error) {
	if len(customers) != len(assignment.Labels) {
		return nil, fmt.Errorf("%s assignment has %d labels for %d customers",
			assignment.Algorithm, len(assignment.Labels), len(customers))
	}

	groups := make(map[core.Label][]int)
	for i, l := range assignment.Labels {
		groups[l] = append(groups[l], i)
	}

	profiles := make([]core.ClusterProfile, 0, len(groups))
	for label, members := range groups {
		mean := make([]float64, len(core.FeatureNames))
		for _, idx := range members {
			for j, v := range customers[idx].Features() {
				mean[j] += v
			}
		}
		for j := range mean {
			mean[j] /= float64(len(members))
		}
		profiles = append(profiles, core.ClusterProfile{
			Label:     label,
			Size:      len(members),
			Share:     float64(len(members)) / float64(len(customers)),
			Mean:      mean,
			MaleShare: mean[core.FeatureGender],
		})
	}

	sort.Slice(profiles, func(a, b int) bool {
		return profiles[a].Label.Less(profiles[b].Label)
	})
	return profiles, nil
}

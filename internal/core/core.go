package core

import (
	"fmt"
	"strconv"
	"time"
)

// Gender is the categorical gender column of the customer dataset.
type Gender int

const (
	Female Gender = iota
	Male
)

// ParseGender parses the literal dataset values "Male" and "Female".
func ParseGender(s string) (Gender, error) {
	switch s {
	case "Male":
		return Male, nil
	case "Female":
		return Female, nil
	default:
		return Female, fmt.Errorf("unknown gender %q (want Male or Female)", s)
	}
}

// Code returns the binary numeric encoding used as a clustering feature.
func (g Gender) Code() float64 {
	if g == Male {
		return 1
	}
	return 0
}

func (g Gender) String() string {
	if g == Male {
		return "Male"
	}
	return "Female"
}

// Customer represents one input row of the mall customer dataset. Loaded once, never mutated.
type Customer struct {
	ID            int    `json:"id"`             // CustomerID column
	Gender        Gender `json:"gender"`         // Male or Female
	Age           int    `json:"age"`            // Age in years
	AnnualIncome  int    `json:"annual_income"`  // Annual income in k$
	SpendingScore int    `json:"spending_score"` // Spending score, 1-100
}

// Features returns the raw feature tuple in FeatureNames order.
func (c Customer) Features() []float64 {
	return []float64{
		float64(c.Age),
		float64(c.AnnualIncome),
		float64(c.SpendingScore),
		c.Gender.Code(),
	}
}

// FeatureNames lists the clustering features in column order.
var FeatureNames = []string{"Age", "Annual Income (k$)", "Spending Score (1-100)", "Gender"}

// Feature column indexes into FeatureNames.
const (
	FeatureAge = iota
	FeatureIncome
	FeatureSpending
	FeatureGender
)

// Label is a cluster assignment that is either a cluster id or noise.
// Noise is never represented by an integer inside the program; it only
// becomes -1 when written to CSV.
type Label struct {
	id    int
	noise bool
}

// ClusterLabel returns the label for cluster id (id >= 0).
func ClusterLabel(id int) Label {
	return Label{id: id}
}

// NoiseLabel returns the label for outliers that belong to no cluster.
func NoiseLabel() Label {
	return Label{noise: true}
}

// IsNoise reports whether the label marks an outlier.
func (l Label) IsNoise() bool { return l.noise }

// Cluster returns the cluster id and true, or 0 and false for noise.
func (l Label) Cluster() (int, bool) {
	if l.noise {
		return 0, false
	}
	return l.id, true
}

// Int renders the label for tabular output, noise as -1.
func (l Label) Int() int {
	if l.noise {
		return -1
	}
	return l.id
}

func (l Label) String() string {
	if l.noise {
		return "noise"
	}
	return strconv.Itoa(l.id)
}

// Less orders cluster labels by id with noise last.
func (l Label) Less(o Label) bool {
	if l.noise != o.noise {
		return o.noise
	}
	return l.id < o.id
}

// Assignment maps every record (by index) to a label produced by one algorithm.
type Assignment struct {
	Algorithm string  `json:"algorithm"`
	Labels    []Label `json:"-"`
}

// NumClusters counts distinct non-noise labels.
func (a Assignment) NumClusters() int {
	seen := make(map[int]bool)
	for _, l := range a.Labels {
		if id, ok := l.Cluster(); ok {
			seen[id] = true
		}
	}
	return len(seen)
}

// NoiseCount counts records labeled as noise.
func (a Assignment) NoiseCount() int {
	n := 0
	for _, l := range a.Labels {
		if l.IsNoise() {
			n++
		}
	}
	return n
}

// Members returns the record indexes carrying label l.
func (a Assignment) Members(l Label) []int {
	var idx []int
	for i, got := range a.Labels {
		if got == l {
			idx = append(idx, i)
		}
	}
	return idx
}

// ClusterProfile aggregates the members of one cluster in original units.
type ClusterProfile struct {
	Label     Label     `json:"-"`
	Size      int       `json:"size"`
	Share     float64   `json:"share"`      // Fraction of all records
	Mean      []float64 `json:"mean"`       // Feature means in FeatureNames order
	MaleShare float64   `json:"male_share"` // Fraction of members that are male
}

// RunSummary is the persisted headline of one analysis run.
type RunSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Dataset     string    `json:"dataset"`
	Records     int       `json:"records"`
	K           int       `json:"k"`
	ElbowFound  bool      `json:"elbow_found"`
	Seed        int64     `json:"seed"`
	Eps         float64   `json:"eps"`
	MinSamples  int       `json:"min_samples"`
	Inertia     float64   `json:"inertia"`
	Silhouette  *float64  `json:"silhouette,omitempty"` // nil when not computable
	DBSCANCount int       `json:"dbscan_clusters"`
	NoiseCount  int       `json:"noise_count"`
}

// StoreStats represents statistics about the run store.
type StoreStats struct {
	RunCount        int       `json:"run_count"`
	AssignmentCount int       `json:"assignment_count"`
	SizeBytes       int64     `json:"size_bytes"`
	LastRun         time.Time `json:"last_run"`
}

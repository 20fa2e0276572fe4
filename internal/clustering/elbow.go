package clustering

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoElbow is returned when an inertia curve has no usable knee.
var ErrNoElbow = errors.New("no elbow found in inertia curve")

// elbowEpsilon is the minimum normalized distance below the chord that counts as a bend.
const elbowEpsilon = 1e-9

// SweepConfig controls a scan over candidate cluster counts.
type SweepConfig struct {
	MinK   int
	MaxK   int
	KMeans KMeansConfig
}

// SweepPoint is the K-Means outcome for one candidate K.
type SweepPoint struct {
	K            int
	Inertia      float64
	Silhouette   float64
	SilhouetteOK bool
}

// Sweep is the full scan together with the selected K.
type Sweep struct {
	Points     []SweepPoint
	ElbowK     int
	ElbowFound bool
	ElbowErr   error // Why no elbow was found, when ElbowFound is false
}

// Ks returns the scanned cluster counts.
func (s *Sweep) Ks() []int {
	ks := make([]int, len(s.Points))
	for i, p := range s.Points {
		ks[i] = p.K
	}
	return ks
}

// Inertias returns the inertia per scanned K.
func (s *Sweep) Inertias() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Inertia
	}
	return out
}

// BestSilhouetteK returns the K with the highest silhouette, smaller K on ties.
func (s *Sweep) BestSilhouetteK() (int, bool) {
	bestK, best, found := 0, math.Inf(-1), false
	for _, p := range s.Points {
		if p.SilhouetteOK && p.Silhouette > best {
			bestK, best, found = p.K, p.Silhouette, true
		}
	}
	return bestK, found
}

// SelectK runs K-Means for each K in [MinK, MaxK] and locates the elbow of the
// inertia curve. MaxK is capped at the number of points. A missing elbow is
// not an error here; it is reported through ElbowFound and ElbowErr.
func SelectK(points [][]float64, config SweepConfig) (*Sweep, error) {
	if _, err := validatePoints(points); err != nil {
		return nil, err
	}
	minK, maxK := config.MinK, config.MaxK
	if minK < 1 {
		return nil, fmt.Errorf("%w: minimum K %d", ErrInvalidK, minK)
	}
	if maxK > len(points) {
		maxK = len(points)
	}
	if maxK < minK {
		return nil, fmt.Errorf("%w: range %d-%d is empty for %d points", ErrInvalidK, config.MinK, config.MaxK, len(points))
	}

	km := NewKMeans(config.KMeans)
	sweep := &Sweep{}
	for k := minK; k <= maxK; k++ {
		res, err := km.Fit(points, k)
		if err != nil {
			return nil, fmt.Errorf("k-means with k=%d: %w", k, err)
		}
		sp := SweepPoint{K: k, Inertia: res.Inertia}
		if score, err := Silhouette(points, IntLabels(res.Labels)); err == nil {
			sp.Silhouette, sp.SilhouetteOK = score, true
		}
		sweep.Points = append(sweep.Points, sp)
		km.log.Info("Evaluated cluster count", "k", k, "inertia", sp.Inertia, "silhouette", sp.Silhouette)
	}

	k, err := FindElbow(sweep.Ks(), sweep.Inertias())
	if err != nil {
		sweep.ElbowErr = err
		km.log.Warn("No elbow in inertia curve", "error", err)
		return sweep, nil
	}
	sweep.ElbowK, sweep.ElbowFound = k, true
	return sweep, nil
}

// FindElbow returns the K whose point lies farthest below the straight line
// joining the first and last points of the normalized inertia curve. Ties go
// to the smaller K.
func FindElbow(ks []int, inertia []float64) (int, error) {
	if len(ks) != len(inertia) {
		return 0, fmt.Errorf("got %d cluster counts but %d inertia values", len(ks), len(inertia))
	}
	if len(ks) < 3 {
		return 0, fmt.Errorf("%w: need at least 3 points, got %d", ErrNoElbow, len(ks))
	}
	for i := 1; i < len(ks); i++ {
		if ks[i] <= ks[i-1] {
			return 0, fmt.Errorf("cluster counts must be strictly increasing")
		}
	}

	last := len(ks) - 1
	x0, x1 := float64(ks[0]), float64(ks[last])
	y0, y1 := inertia[0], inertia[last]
	if !(y0 > y1) {
		return 0, fmt.Errorf("%w: inertia does not decrease over the range", ErrNoElbow)
	}

	bestK, best, found := 0, elbowEpsilon, false
	for i := 1; i < last; i++ {
		x := (float64(ks[i]) - x0) / (x1 - x0)
		y := (inertia[i] - y1) / (y0 - y1)
		// Chord runs from (0,1) to (1,0): x + y = 1.
		dist := (1 - x - y) / math.Sqrt2
		if dist > best {
			bestK, best, found = ks[i], dist, true
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: curve has no bend below its chord", ErrNoElbow)
	}
	return bestK, nil
}

// Package reduce projects standardized features into a low-dimensional space for inspection.
package reduce

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrDecomposition is returned when the principal component decomposition fails.
var ErrDecomposition = errors.New("principal component decomposition failed")

// Projection holds a PCA projection of the input rows.
type Projection struct {
	Points                 [][]float64 // Row i is record i in component space
	Components             [][]float64 // Component directions, one per row, in feature space
	ExplainedVarianceRatio []float64   // Share of total variance per component, descending
}

// PCA projects the rows of X onto the first n principal components.
// Columns are centred before projection; the data is not rescaled.
func PCA(X mat.Matrix, n int) (*Projection, error) {
	r, c := X.Dims()
	if r < 2 {
		return nil, fmt.Errorf("PCA needs at least 2 rows, got %d", r)
	}
	if n < 1 || n > c || n > r {
		return nil, fmt.Errorf("invalid component count %d (must be 1-%d)", n, c)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return nil, ErrDecomposition
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	total := 0.0
	for _, v := range vars {
		total += v
	}

	ratio := make([]float64, n)
	components := make([][]float64, n)
	for k := 0; k < n; k++ {
		if total > 0 {
			ratio[k] = vars[k] / total
		}
		components[k] = mat.Col(nil, k, &vecs)
	}

	centered := center(X)
	var proj mat.Dense
	proj.Mul(centered, vecs.Slice(0, c, 0, n))

	points := make([][]float64, r)
	for i := range points {
		points[i] = mat.Row(nil, i, &proj)
	}

	return &Projection{
		Points:                 points,
		Components:             components,
		ExplainedVarianceRatio: ratio,
	}, nil
}

func center(X mat.Matrix) *mat.Dense {
	r, c := X.Dims()
	means := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		means[j] = stat.Mean(col, nil)
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 { return v - means[j] }, X)
	return out
}

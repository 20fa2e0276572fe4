// Package preprocess turns customer records into standardized feature vectors.
package preprocess

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"segmenter/internal/core"
)

var (
	// ErrEmptyInput is returned when there is nothing to fit or transform.
	ErrEmptyInput = errors.New("empty input")
	// ErrZeroVariance is returned in strict mode for a constant feature column.
	ErrZeroVariance = errors.New("zero variance feature")
	// ErrNotFitted is returned when transforming before Fit.
	ErrNotFitted = errors.New("scaler is not fitted")
)

// Transformer learns parameters from a matrix and applies them.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (*mat.Dense, error)
	FitTransform(X mat.Matrix) (*mat.Dense, error)
}

// Encode builds the n×4 raw feature matrix in core.FeatureNames order,
// with gender encoded as Male=1, Female=0.
func Encode(customers []core.Customer) (*mat.Dense, error) {
	if len(customers) == 0 {
		return nil, ErrEmptyInput
	}
	X := mat.NewDense(len(customers), len(core.FeatureNames), nil)
	for i, c := range customers {
		X.SetRow(i, c.Features())
	}
	return X, nil
}

// StandardScaler rescales each column to zero mean and unit variance using
// population statistics. Constant columns are centred but left unscaled,
// unless Strict is set in which case Fit fails with ErrZeroVariance.
type StandardScaler struct {
	Strict bool
	Names  []string // optional column names for error messages

	mean       []float64
	scale      []float64
	degenerate []int
}

var _ Transformer = (*StandardScaler)(nil)

// NewStandardScaler creates a scaler for the customer feature columns.
func NewStandardScaler(strict bool) *StandardScaler {
	return &StandardScaler{Strict: strict, Names: core.FeatureNames}
}

// Fit computes the per-column mean and standard deviation over all rows.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return ErrEmptyInput
	}

	mean := make([]float64, c)
	scale := make([]float64, c)
	var degenerate []int
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		m, std := stat.PopMeanStdDev(col, nil)
		mean[j] = m
		if std == 0 {
			if s.Strict {
				return fmt.Errorf("%w: column %s", ErrZeroVariance, s.columnName(j))
			}
			degenerate = append(degenerate, j)
			std = 1
		}
		scale[j] = std
	}

	s.mean, s.scale, s.degenerate = mean, scale, degenerate
	return nil
}

// Transform applies (x - mean) / scale column-wise.
func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if s.mean == nil {
		return nil, ErrNotFitted
	}
	r, c := X.Dims()
	if r == 0 {
		return nil, ErrEmptyInput
	}
	if c != len(s.mean) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(s.mean), c)
	}

	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return (v - s.mean[j]) / s.scale[j]
	}, X)
	return out, nil
}

// FitTransform fits on X and returns its standardized form.
func (s *StandardScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps a standardized row back to original units.
func (s *StandardScaler) InverseTransform(row []float64) ([]float64, error) {
	if s.mean == nil {
		return nil, ErrNotFitted
	}
	if len(row) != len(s.mean) {
		return nil, fmt.Errorf("expected %d values, got %d", len(s.mean), len(row))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = v*s.scale[j] + s.mean[j]
	}
	return out, nil
}

// Mean returns the fitted column means.
func (s *StandardScaler) Mean() []float64 { return append([]float64(nil), s.mean...) }

// Scale returns the fitted column standard deviations (1 for degenerate columns).
func (s *StandardScaler) Scale() []float64 { return append([]float64(nil), s.scale...) }

// Degenerate returns the indexes of constant columns that were left unscaled.
func (s *StandardScaler) Degenerate() []int { return append([]int(nil), s.degenerate...) }

func (s *StandardScaler) columnName(j int) string {
	if j < len(s.Names) {
		return s.Names[j]
	}
	return fmt.Sprintf("#%d", j)
}

// Rows copies a matrix into a slice of row vectors.
func Rows(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = make([]float64, c)
		mat.Row(rows[i], i, X)
	}
	return rows
}

// Features is the result of preparing customers for clustering.
type Features struct {
	Raw          *mat.Dense
	Standardized *mat.Dense
	Scaler       *StandardScaler
}

// Points returns the standardized rows.
func (f *Features) Points() [][]float64 { return Rows(f.Standardized) }

// Prepare encodes and standardizes customers in one step.
func Prepare(customers []core.Customer, strict bool) (*Features, error) {
	raw, err := Encode(customers)
	if err != nil {
		return nil, err
	}
	scaler := NewStandardScaler(strict)
	std, err := scaler.FitTransform(raw)
	if err != nil {
		return nil, err
	}
	return &Features{Raw: raw, Standardized: std, Scaler: scaler}, nil
}

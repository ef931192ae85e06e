// Package vecmath holds the vector primitives used for profiling and ranking.
// Embeddings are stored as float32; arithmetic is carried out in float64.
package vecmath

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// epsilon keeps cosine finite for zero vectors.
const epsilon = 1e-9

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmptyInput        = errors.New("no vectors supplied")
	ErrZeroWeight        = errors.New("total weight is zero")
)

// Cosine returns dot(a,b) / (|a||b| + 1e-9).
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	x, y := toFloat64(a), toFloat64(b)
	return floats.Dot(x, y) / (floats.Norm(x, 2)*floats.Norm(y, 2) + epsilon), nil
}

// WeightedMean returns sum(w_i * v_i) / sum(w_i).
func WeightedMean(vectors [][]float32, weights []float64) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyInput
	}
	if len(vectors) != len(weights) {
		return nil, fmt.Errorf("%w: %d vectors, %d weights", ErrDimensionMismatch, len(vectors), len(weights))
	}

	dim := len(vectors[0])
	acc := NewAccumulator(dim)
	for i, v := range vectors {
		if err := acc.Add(v, weights[i]); err != nil {
			return nil, err
		}
	}
	return acc.Mean()
}

// Scale returns v multiplied by s.
func Scale(v []float32, s float64) []float32 {
	x := toFloat64(v)
	floats.Scale(s, x)
	return toFloat32(x)
}

// Accumulator builds a weighted mean incrementally.
type Accumulator struct {
	sum         []float64
	totalWeight float64
	count       int
}

func NewAccumulator(dim int) *Accumulator {
	return &Accumulator{sum: make([]float64, dim)}
}

// Add accumulates w*v. Vectors must match the accumulator dimension.
func (a *Accumulator) Add(v []float32, w float64) error {
	if len(v) != len(a.sum) {
		return fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(v), len(a.sum))
	}
	floats.AddScaled(a.sum, w, toFloat64(v))
	a.totalWeight += w
	a.count++
	return nil
}

func (a *Accumulator) TotalWeight() float64 { return a.totalWeight }

func (a *Accumulator) Count() int { return a.count }

func (a *Accumulator) Dimension() int { return len(a.sum) }

// Mean divides the accumulated sum by the total weight.
func (a *Accumulator) Mean() ([]float32, error) {
	if a.count == 0 {
		return nil, ErrEmptyInput
	}
	if a.totalWeight == 0 {
		return nil, ErrZeroWeight
	}
	mean := make([]float64, len(a.sum))
	copy(mean, a.sum)
	floats.Scale(1/a.totalWeight, mean)
	return toFloat32(mean), nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

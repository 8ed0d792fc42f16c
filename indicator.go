package cgc

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// IndicatorMatrix returns the len(assignment) × k one-hot encoding of
// assignment: row i has a single 1 in column assignment[i]. Values outside
// [0, k) panic.
func IndicatorMatrix(k int, assignment []int) *mat.Dense {
	ind := mat.NewDense(len(assignment), k, nil)
	for i, c := range assignment {
		ind.Set(i, c, 1)
	}
	return ind
}

// Assignments recovers an assignment vector from an indicator matrix by
// taking the argmax of each row. It inverts IndicatorMatrix exactly.
func Assignments(ind mat.Matrix) []int {
	r, c := ind.Dims()
	out := make([]int, r)
	row := make([]float64, c)
	for i := range out {
		mat.Row(row, i, ind)
		out[i] = floats.MaxIdx(row)
	}
	return out
}

// occupancy counts the members of each of the k clusters.
func occupancy(assignment []int, k int) []float64 {
	counts := make([]float64, k)
	for _, c := range assignment {
		counts[c]++
	}
	return counts
}

// populated returns the number of non-empty clusters.
func populated(counts []float64) int {
	n := 0
	for _, c := range counts {
		if c > 0 {
			n++
		}
	}
	return n
}

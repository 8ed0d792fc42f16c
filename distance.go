package cgc

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Distance computes the generalized I-divergence between the rows of weight
// and every column of reconstruction:
//
//	d[i,l] = Σ_j (reconstruction[j,l] + ε) − Σ_j weight[i,j]·log(reconstruction[j,l] + ε)
//
// weight is a×b and reconstruction is b×k; the result is a×k. The argmin of
// row i is the best-fitting cluster for element i. ε is added to every entry,
// so empty or zero-valued reconstructions need no special handling.
func Distance(weight, reconstruction mat.Matrix, epsilon float64) *mat.Dense {
	a, _ := weight.Dims()
	_, k := reconstruction.Dims()
	d := mat.NewDense(a, k, nil)
	newReconstruction(reconstruction, epsilon).score(d, weight)
	return d
}

// reconstruction caches the parts of Distance that depend only on the
// reconstruction so chunks of weight rows can be scored independently.
type reconstruction struct {
	logY  *mat.Dense
	total []float64 // column sums of Y+ε
}

func newReconstruction(y mat.Matrix, epsilon float64) *reconstruction {
	r, c := y.Dims()
	logY := mat.NewDense(r, c, nil)
	total := make([]float64, c)
	for j := 0; j < r; j++ {
		row := logY.RawRowView(j)
		for l := range row {
			v := y.At(j, l) + epsilon
			total[l] += v
			row[l] = math.Log(v)
		}
	}
	return &reconstruction{logY: logY, total: total}
}

// score writes the divergence of every row of weight into dst.
func (rc *reconstruction) score(dst *mat.Dense, weight mat.Matrix) {
	dst.Mul(weight, rc.logY)
	dst.Apply(func(_, l int, v float64) float64 {
		return rc.total[l] - v
	}, dst)
}

// logShifted returns log(x+ε) elementwise.
func logShifted(x []float64, epsilon float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Log(v + epsilon)
	}
	return out
}

// argminRows returns the column index of the smallest entry of each row of d.
// Ties resolve to the lowest index.
func argminRows(d *mat.Dense) []int {
	r, _ := d.Dims()
	out := make([]int, r)
	for i := range out {
		out[i] = floats.MinIdx(d.RawRowView(i))
	}
	return out
}

// sumRowMins returns the sum over rows of each row's smallest entry.
func sumRowMins(d *mat.Dense) float64 {
	r, _ := d.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		sum += floats.Min(d.RawRowView(i))
	}
	return sum
}

package hmmlib

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// logSumExp returns log(sum(exp(x))), shifting by the maximum for
// numerical stability.  An all -Inf input yields -Inf.
func logSumExp(x []float64) float64 {

	mx := floats.Max(x)
	if math.IsInf(mx, -1) {
		return math.Inf(-1)
	}

	var s float64
	for _, v := range x {
		s += math.Exp(v - mx)
	}

	return mx + math.Log(s)
}

// logVecMat sets out[j] = logsumexp_i(x[i] + a[i*n+j]), the log-space
// analogue of a row vector times a matrix.  a is n x n, packed by row.
// wk is an n-vector of workspace.
func logVecMat(x, a, out, wk []float64) {

	n := len(x)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			wk[i] = x[i] + a[i*n+j]
		}
		out[j] = logSumExp(wk)
	}
}

// logMatVec sets out[i] = logsumexp_j(a[i*n+j] + x[j]), the log-space
// analogue of a matrix times a column vector.  a is n x n, packed by row.
// wk is an n-vector of workspace.
func logMatVec(a, x, out, wk []float64) {

	n := len(x)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			wk[j] = a[i*n+j] + x[j]
		}
		out[i] = logSumExp(wk)
	}
}

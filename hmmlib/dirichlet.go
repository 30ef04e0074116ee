package hmmlib

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Dirichlet is a conjugate prior for one categorical distribution, or for
// the rows of a stochastic matrix when the concentration array is
// NRow x NCol.
type Dirichlet struct {

	// Number of categories per row
	NCol int

	// Concentration parameters, packed by row.
	Concentration []float64
}

// NewSymmetricDirichlet returns a Dirichlet with nrow rows of ncol equal
// concentrations c.
func NewSymmetricDirichlet(nrow, ncol int, c float64) *Dirichlet {

	conc := make([]float64, nrow*ncol)
	for i := range conc {
		conc[i] = c
	}

	return &Dirichlet{NCol: ncol, Concentration: conc}
}

// Row returns the concentration vector for row i.
func (dp *Dirichlet) Row(i int) []float64 {
	return dp.Concentration[i*dp.NCol : (i+1)*dp.NCol]
}

// dirichletMode writes the posterior mode of a Dirichlet with the given
// concentration into out.  The mode (c_i - 1) / (sum(c) - k) is undefined
// when any concentration is below 1 or when k == 1 leaves a nonpositive
// denominator; in those cases the normalized concentration (the posterior
// mean) is used instead.
func dirichletMode(conc, out []float64) {

	if len(conc) != len(out) {
		panic(fmt.Sprintf("dirichletMode: len(conc)=%d, len(out)=%d", len(conc), len(out)))
	}

	k := len(conc)
	den := floats.Sum(conc) - float64(k)

	ok := den > 0
	for _, c := range conc {
		if c < 1 {
			ok = false
			break
		}
	}

	if !ok {
		copy(out, conc)
		normalizeSum(out, 1/float64(k))
		return
	}

	for i, c := range conc {
		out[i] = (c - 1) / den
	}
	normalizeSum(out, 1/float64(k))
}

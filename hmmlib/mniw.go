package hmmlib

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MatrixNormalInverseWishart is the conjugate prior for a linear-Gaussian
// regression with unknown weight matrix and innovation covariance.  Loc
// covers the weights and the bias jointly, so InDim is the covariate
// dimension plus one.
type MatrixNormalInverseWishart struct {

	// Output (observation) dimension
	OutDim int

	// Input dimension, covariates plus intercept
	InDim int

	// Mean of the weight matrix (OutDim x InDim)
	Loc []float64

	// Column covariance of the weight matrix (InDim x InDim)
	ColCov []float64

	// Degrees of freedom of the inverse-Wishart component
	DF float64

	// Scale matrix of the inverse-Wishart component (OutDim x OutDim)
	Scale []float64
}

// NewMatrixNormalInverseWishart returns a weak default prior for a
// regression with the given output and input dimensions: zero location,
// identity column covariance, and a nearly uninformative inverse-Wishart
// component.
func NewMatrixNormalInverseWishart(outDim, inDim int) *MatrixNormalInverseWishart {

	colcov := make([]float64, inDim*inDim)
	for i := 0; i < inDim; i++ {
		colcov[i*inDim+i] = 1
	}

	scale := make([]float64, outDim*outDim)
	for i := 0; i < outDim; i++ {
		scale[i*outDim+i] = 1e-4
	}

	return &MatrixNormalInverseWishart{
		OutDim: outDim,
		InDim:  inDim,
		Loc:    make([]float64, outDim*inDim),
		ColCov: colcov,
		DF:     float64(outDim) + 0.1,
		Scale:  scale,
	}
}

// pseudoCounts returns the number of pseudo-observations the prior
// contributes to the conjugate update.
func (pr *MatrixNormalInverseWishart) pseudoCounts() float64 {
	return pr.DF + float64(pr.OutDim+pr.InDim) + 1
}

// addPseudoObs folds the prior into the accumulated regression moments.
// bigXX is the InDim x InDim covariate scatter including the intercept
// column, bigYX the OutDim x InDim cross moment, and eyy the OutDim x
// OutDim observation scatter.
func (pr *MatrixNormalInverseWishart) addPseudoObs(bigXX *mat.SymDense, bigYX, eyy *mat.Dense) error {

	d, p := pr.OutDim, pr.InDim

	vcov := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			vcov.SetSym(i, j, pr.ColCov[i*p+j])
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(vcov); !ok {
		return fmt.Errorf("mniw: prior column covariance is not positive definite")
	}

	vinv := mat.NewSymDense(p, nil)
	if err := chol.InverseTo(vinv); err != nil {
		return fmt.Errorf("mniw: inverting prior column covariance: %w", err)
	}

	loc := mat.NewDense(d, p, pr.Loc)

	// M V^-1 and M V^-1 M'
	var mv, mvm mat.Dense
	mv.Mul(loc, vinv)
	mvm.Mul(&mv, loc.T())

	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			bigXX.SetSym(i, j, bigXX.At(i, j)+vinv.At(i, j))
		}
	}
	bigYX.Add(bigYX, &mv)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			eyy.Set(i, j, eyy.At(i, j)+pr.Scale[i*d+j]+mvm.At(i, j))
		}
	}

	return nil
}

// mniwMode computes the posterior-mode regression parameters from the
// accumulated moments: the joint weight matrix (OutDim x InDim, intercept
// last) and the innovation covariance.  counts must include any prior
// pseudo-counts.
func mniwMode(bigXX *mat.SymDense, bigYX, eyy *mat.Dense, counts float64) (*mat.Dense, *mat.SymDense, error) {

	d, p := bigYX.Dims()

	// Ridge keeps the scatter invertible when the effective sample size
	// is small and no proper prior was supplied.
	for i := 0; i < p; i++ {
		bigXX.SetSym(i, i, bigXX.At(i, i)+1e-6)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(bigXX); !ok {
		return nil, nil, fmt.Errorf("mniw: covariate scatter is not positive definite")
	}

	// W = Syx Sxx^-1, via Sxx X = Syx'
	var x mat.Dense
	if err := chol.SolveTo(&x, bigYX.T()); err != nil {
		return nil, nil, fmt.Errorf("mniw: solving for regression weights: %w", err)
	}
	var w mat.Dense
	w.CloneFrom(x.T())

	// Mode of the inverse-Wishart: (Syy - W Syx') / (n - p)
	var wyx mat.Dense
	wyx.Mul(&w, bigYX.T())

	den := counts - float64(p)
	if den < 1 {
		den = 1
	}

	sigma := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			v := (eyy.At(i, j) - wyx.At(i, j) + eyy.At(j, i) - wyx.At(j, i)) / (2 * den)
			sigma.SetSym(i, j, v)
		}
	}
	for i := 0; i < d; i++ {
		if sigma.At(i, i) < sdmin*sdmin {
			sigma.SetSym(i, i, sdmin*sdmin)
		}
	}

	return &w, sigma, nil
}

package hmmlib

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	// Minimum allowed value for the observation SD
	sdmin = 1e-8

	// The Poisson mean parameters are never allowed to go below this value
	minPoissonMean = 1e-8

	log2pi = 1.8378770664093453
)

// GaussianEmission is a diagonal Gaussian observation model with
// state-specific means and standard deviations.
type GaussianEmission struct {

	// Number of states
	NState int

	// Number of components of the emission vector
	NComp int

	// The observation means (NState x NComp)
	Mean []float64

	// The observation standard deviations (NState x NComp)
	Std []float64
}

// NewGaussianEmission returns a Gaussian emission model with zero means
// and unit standard deviations.
func NewGaussianEmission(nstate, ncomp int) *GaussianEmission {

	std := make([]float64, nstate*ncomp)
	for i := range std {
		std[i] = 1
	}

	return &GaussianEmission{
		NState: nstate,
		NComp:  ncomp,
		Mean:   make([]float64, nstate*ncomp),
		Std:    std,
	}
}

func (em *GaussianEmission) NumStates() int { return em.NState }
func (em *GaussianEmission) NumComp() int   { return em.NComp }
func (em *GaussianEmission) Order() int     { return 0 }

// LogProbs fills the NTime x NState emission log-likelihood table.
func (em *GaussianEmission) LogProbs(seq []float64, ntime int, out []float64) {

	if len(seq) != ntime*em.NComp {
		panic(fmt.Sprintf("LogProbs: len(seq)=%d, expected %d x %d", len(seq), ntime, em.NComp))
	}

	for t := 0; t < ntime; t++ {
		obs := seq[t*em.NComp : (t+1)*em.NComp]
		for st := 0; st < em.NState; st++ {
			var lpr float64
			ii := st * em.NComp
			for j, y := range obs {
				z := (y - em.Mean[ii+j]) / em.Std[ii+j]
				lpr += -math.Log(em.Std[ii+j]) - z*z/2 - log2pi/2
			}
			out[t*em.NState+st] = lpr
		}
	}
}

func (em *GaussianEmission) Sample(st int, window []float64, rnd *rand.Rand, out []float64) {

	ii := st * em.NComp
	for j := 0; j < em.NComp; j++ {
		out[j] = em.Mean[ii+j] + em.Std[ii+j]*rnd.NormFloat64()
	}
}

// MStep returns a new Gaussian emission model with weighted means and
// standard deviations.  States with vanishing posterior mass keep their
// previous parameters.
func (em *GaussianEmission) MStep(ds *Dataset, posteriors []*Posterior) (EmissionModel, error) {

	if ds.NComp != em.NComp {
		panic(fmt.Sprintf("MStep: dataset has %d components, model has %d", ds.NComp, em.NComp))
	}

	ns, nc := em.NState, em.NComp
	wy := make([]float64, ns*nc)
	wyy := make([]float64, ns*nc)
	pt := make([]float64, ns)

	for p, seq := range ds.Obs {
		gamma := posteriors[p].Gamma
		for t := 0; t < ds.NTime; t++ {
			obs := seq[t*nc : (t+1)*nc]
			for st := 0; st < ns; st++ {
				w := gamma[t*ns+st]
				pt[st] += w
				for j, y := range obs {
					wy[st*nc+j] += w * y
					wyy[st*nc+j] += w * y * y
				}
			}
		}
	}

	mean := make([]float64, ns*nc)
	std := make([]float64, ns*nc)
	for st := 0; st < ns; st++ {
		if pt[st] < 1e-10 {
			copy(mean[st*nc:(st+1)*nc], em.Mean[st*nc:(st+1)*nc])
			copy(std[st*nc:(st+1)*nc], em.Std[st*nc:(st+1)*nc])
			continue
		}
		for j := 0; j < nc; j++ {
			i := st*nc + j
			mean[i] = wy[i] / pt[st]
			v := wyy[i]/pt[st] - mean[i]*mean[i]
			if v < sdmin*sdmin {
				v = sdmin * sdmin
			}
			std[i] = math.Sqrt(v)
		}
	}

	return &GaussianEmission{NState: ns, NComp: nc, Mean: mean, Std: std}, nil
}

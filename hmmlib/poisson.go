package hmmlib

import (
	"fmt"
	"math"
	"math/rand"
)

// PoissonEmission is a Poisson observation model with state-specific
// component rates.
type PoissonEmission struct {

	// Number of states
	NState int

	// Number of components of the emission vector
	NComp int

	// The observation rates (NState x NComp)
	Mean []float64
}

// NewPoissonEmission returns a Poisson emission model with unit rates.
func NewPoissonEmission(nstate, ncomp int) *PoissonEmission {

	mean := make([]float64, nstate*ncomp)
	for i := range mean {
		mean[i] = 1
	}

	return &PoissonEmission{NState: nstate, NComp: ncomp, Mean: mean}
}

func (em *PoissonEmission) NumStates() int { return em.NState }
func (em *PoissonEmission) NumComp() int   { return em.NComp }
func (em *PoissonEmission) Order() int     { return 0 }

// LogProbs fills the NTime x NState emission log-likelihood table.
func (em *PoissonEmission) LogProbs(seq []float64, ntime int, out []float64) {

	if len(seq) != ntime*em.NComp {
		panic(fmt.Sprintf("LogProbs: len(seq)=%d, expected %d x %d", len(seq), ntime, em.NComp))
	}

	for t := 0; t < ntime; t++ {
		obs := seq[t*em.NComp : (t+1)*em.NComp]
		for st := 0; st < em.NState; st++ {
			var lpr float64
			ii := st * em.NComp
			for j, y := range obs {
				mn := em.Mean[ii+j]
				if mn < minPoissonMean {
					mn = minPoissonMean
				}
				lpr += -mn + y*math.Log(mn) - lgamma(y+1)
			}
			out[t*em.NState+st] = lpr
		}
	}
}

func (em *PoissonEmission) Sample(st int, window []float64, rnd *rand.Rand, out []float64) {

	ii := st * em.NComp
	for j := 0; j < em.NComp; j++ {
		out[j] = genPoisson(em.Mean[ii+j], rnd)
	}
}

// MStep returns a new Poisson emission model with weighted rates.  States
// with vanishing posterior mass keep their previous rates.
func (em *PoissonEmission) MStep(ds *Dataset, posteriors []*Posterior) (EmissionModel, error) {

	if ds.NComp != em.NComp {
		panic(fmt.Sprintf("MStep: dataset has %d components, model has %d", ds.NComp, em.NComp))
	}

	ns, nc := em.NState, em.NComp
	wy := make([]float64, ns*nc)
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
				}
			}
		}
	}

	mean := make([]float64, ns*nc)
	for st := 0; st < ns; st++ {
		if pt[st] < 1e-10 {
			copy(mean[st*nc:(st+1)*nc], em.Mean[st*nc:(st+1)*nc])
			continue
		}
		for j := 0; j < nc; j++ {
			i := st*nc + j
			mean[i] = wy[i] / pt[st]
			if mean[i] < minPoissonMean {
				mean[i] = minPoissonMean
			}
		}
	}

	return &PoissonEmission{NState: ns, NComp: nc, Mean: mean}, nil
}

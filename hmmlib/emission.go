package hmmlib

import "math/rand"

// EmissionModel is the pluggable per-state observation family of an HMM.
// Implementations carry only their own parameters and are selected at
// model construction time.  MStep returns a fresh parameter set; emission
// values are never mutated in place.
type EmissionModel interface {

	// NumStates returns the number of latent states.
	NumStates() int

	// NumComp returns the number of components of one observation.
	NumComp() int

	// Order returns the autoregressive lag, zero for memoryless
	// families.  The first Order() time points of every sequence carry
	// no emission likelihood and contribute nothing to the sufficient
	// statistics.
	Order() int

	// LogProbs fills the NTime x NState table out with the emission
	// log-likelihood of each time point under each state.  seq is the
	// flattened NTime x NumComp observation matrix.
	LogProbs(seq []float64, ntime int, out []float64)

	// Sample draws one observation for state st into out.  window holds
	// the flattened previous Order() observations, oldest first; it is
	// ignored by memoryless families.
	Sample(st int, window []float64, rnd *rand.Rand, out []float64)

	// MStep returns a new emission parameter set maximizing the expected
	// complete-data log-likelihood, weighting each observation by the
	// posterior state probabilities.
	MStep(ds *Dataset, posteriors []*Posterior) (EmissionModel, error)
}

package hmmlib

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/floats"
)

// Default symmetric Dirichlet concentration for the initial state and
// transition priors.
const defaultDirichletConc = 1.1

// Warnings counts anomalies encountered during fitting.
type Warnings struct {

	// Number of EM iterations in which the log-likelihood decreased
	// beyond floating point tolerance
	LogLikeDecreased int
}

// HMM is a hidden Markov model over a fixed finite state space with a
// pluggable emission family.  Parameter slices are never mutated after
// construction; MStep returns a fresh snapshot.
type HMM struct {

	// Number of states
	NState int

	// The initial probability distribution
	Init []float64

	// The transition probability matrix (NState x NState, row stochastic)
	Trans []float64

	// The emission model
	Emission EmissionModel

	// Dirichlet prior for the initial state distribution (1 x NState)
	InitPrior *Dirichlet

	// Row-wise Dirichlet prior for the transition matrix
	// (NState x NState)
	TransPrior *Dirichlet

	// Counters for fitting anomalies, shared across m-step snapshots
	Warnings *Warnings

	// Write log messages here
	msglogger *log.Logger
}

// New returns an HMM with the given initial distribution, transition
// matrix and emission model.  The rows of trans and the init vector are
// normalized by construction; negative or all-zero rows panic.  Priors
// default to symmetric Dirichlet(1.1) as weak regularizers.
func New(init, trans []float64, emission EmissionModel) *HMM {

	ns := emission.NumStates()
	if len(init) != ns {
		panic(fmt.Sprintf("New: len(init)=%d, emission has %d states", len(init), ns))
	}
	if len(trans) != ns*ns {
		panic(fmt.Sprintf("New: len(trans)=%d, expected %d x %d", len(trans), ns, ns))
	}

	ini := make([]float64, ns)
	copy(ini, init)
	checkProbRow(ini, "init")
	normalizeSum(ini, 1/float64(ns))

	tr := make([]float64, ns*ns)
	copy(tr, trans)
	for i := 0; i < ns; i++ {
		row := tr[i*ns : (i+1)*ns]
		checkProbRow(row, fmt.Sprintf("trans row %d", i))
		normalizeSum(row, 1/float64(ns))
	}

	return &HMM{
		NState:     ns,
		Init:       ini,
		Trans:      tr,
		Emission:   emission,
		InitPrior:  NewSymmetricDirichlet(1, ns, defaultDirichletConc),
		TransPrior: NewSymmetricDirichlet(ns, ns, defaultDirichletConc),
		Warnings:   &Warnings{},
	}
}

func checkProbRow(row []float64, name string) {
	var s float64
	for _, v := range row {
		if v < 0 || math.IsNaN(v) {
			panic(fmt.Sprintf("New: %s contains a negative or NaN weight", name))
		}
		s += v
	}
	if s <= 0 {
		panic(fmt.Sprintf("New: %s has no mass", name))
	}
}

// SetLogger provides a logger that will be used to write log messages.
func (hmm *HMM) SetLogger(lg *log.Logger) {
	hmm.msglogger = lg
}

func (hmm *HMM) logger() *log.Logger {
	if hmm.msglogger == nil {
		hmm.msglogger = log.New(os.Stderr, "", log.Ltime)
	}
	return hmm.msglogger
}

// UniformInit returns the uniform initial distribution on k states.
func UniformInit(k int) []float64 {
	v := make([]float64, k)
	for i := range v {
		v[i] = 1 / float64(k)
	}
	return v
}

// StickyTrans returns a transition matrix with self-transition
// probability p and the remaining mass spread uniformly.
func StickyTrans(k int, p float64) []float64 {

	tr := make([]float64, k*k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if i == j {
				tr[i*k+j] = p
			} else if k > 1 {
				tr[i*k+j] = (1 - p) / float64(k-1)
			}
		}
	}
	if k == 1 {
		tr[0] = 1
	}

	return tr
}

// logInit returns the log initial state distribution.
func (hmm *HMM) logInit() []float64 {
	v := make([]float64, hmm.NState)
	for i, p := range hmm.Init {
		v[i] = math.Log(p)
	}
	return v
}

// logTrans returns the log transition matrix.
func (hmm *HMM) logTrans() []float64 {
	v := make([]float64, len(hmm.Trans))
	for i, p := range hmm.Trans {
		v[i] = math.Log(p)
	}
	return v
}

// LogLikelihoods returns the NTime x NState emission log-likelihood table
// for one flattened sequence.
func (hmm *HMM) LogLikelihoods(seq []float64, ntime int) []float64 {
	out := make([]float64, ntime*hmm.NState)
	hmm.Emission.LogProbs(seq, ntime, out)
	return out
}

// InferPosterior computes the exact posterior over the latent states of
// one flattened sequence.
func (hmm *HMM) InferPosterior(seq []float64, ntime int) (*Posterior, error) {
	ll := hmm.LogLikelihoods(seq, ntime)
	return InferPosterior(hmm.logInit(), ll, hmm.logTrans(), ntime, hmm.NState)
}

// InferPosteriors computes posteriors for every sequence in the batch,
// processing sequences concurrently.
func (hmm *HMM) InferPosteriors(ds *Dataset) ([]*Posterior, error) {

	if ds.NComp != hmm.Emission.NumComp() {
		panic(fmt.Sprintf("InferPosteriors: dataset has %d components, emission has %d",
			ds.NComp, hmm.Emission.NumComp()))
	}

	ll := make([][]float64, ds.NSeq)
	for p, seq := range ds.Obs {
		ll[p] = hmm.LogLikelihoods(seq, ds.NTime)
	}

	return InferPosteriors(hmm.logInit(), ll, hmm.logTrans(), ds.NTime, hmm.NState)
}

// MarginalLikelihood returns the marginal log-likelihood of one sequence.
func (hmm *HMM) MarginalLikelihood(seq []float64, ntime int) (float64, error) {
	ps, err := hmm.InferPosterior(seq, ntime)
	if err != nil {
		return 0, err
	}
	return ps.LogNorm, nil
}

// LogProbability returns the joint log-probability of a fixed state
// sequence and one observation sequence.  For autoregressive emissions
// the first Order() time points carry no emission likelihood, matching
// the inference recursion.
func (hmm *HMM) LogProbability(states []int, seq []float64, ntime int) float64 {

	if len(states) != ntime {
		panic(fmt.Sprintf("LogProbability: len(states)=%d, expected %d", len(states), ntime))
	}

	ll := hmm.LogLikelihoods(seq, ntime)
	ns := hmm.NState

	lp := math.Log(hmm.Init[states[0]]) + ll[states[0]]
	for t := 1; t < ntime; t++ {
		lp += math.Log(hmm.Trans[states[t-1]*ns+states[t]]) + ll[t*ns+states[t]]
	}

	return lp
}

// Sample draws a state sequence and observation sequence of length ntime
// from the model.  The observation slice is flattened NTime x NComp.
func (hmm *HMM) Sample(ntime int, rnd *rand.Rand) ([]int, []float64) {

	nc := hmm.Emission.NumComp()
	states := make([]int, ntime)
	obs := make([]float64, ntime*nc)

	win := newLagWindow(hmm.Emission.Order(), nc)
	x := make([]float64, hmm.Emission.Order()*nc)

	states[0] = genDiscrete(hmm.Init, rnd)
	for t := 0; t < ntime; t++ {
		if t > 0 {
			row := hmm.Trans[states[t-1]*hmm.NState : states[t-1]*hmm.NState+hmm.NState]
			states[t] = genDiscrete(row, rnd)
		}
		win.flatten(x)
		hmm.Emission.Sample(states[t], x, rnd, obs[t*nc:(t+1)*nc])
		win.push(obs[t*nc : (t+1)*nc])
	}

	return states, obs
}

// MStep returns a new model whose parameters are set to the closed-form
// conjugate posterior modes given the expected sufficient statistics.
// The receiver is not modified.
func (hmm *HMM) MStep(ds *Dataset, posteriors []*Posterior) (*HMM, error) {

	ns := hmm.NState
	if len(posteriors) != ds.NSeq {
		panic(fmt.Sprintf("MStep: %d posteriors for %d sequences", len(posteriors), ds.NSeq))
	}

	// Initial state: expected occupancy at t=0 plus prior pseudo-counts.
	istats := make([]float64, ns)
	copy(istats, hmm.InitPrior.Row(0))
	for _, ps := range posteriors {
		floats.Add(istats, ps.InitialStats())
	}
	init := make([]float64, ns)
	dirichletMode(istats, init)

	// Transitions: expected pairwise counts plus row-wise prior
	// pseudo-counts.  With length-one sequences there are no pairwise
	// statistics and the rows reduce to the prior mode.
	tstats := make([]float64, ns*ns)
	copy(tstats, hmm.TransPrior.Concentration)
	for _, ps := range posteriors {
		ps.AddTransitionStats(tstats)
	}
	trans := make([]float64, ns*ns)
	for i := 0; i < ns; i++ {
		dirichletMode(tstats[i*ns:(i+1)*ns], trans[i*ns:(i+1)*ns])
	}

	emission, err := hmm.Emission.MStep(ds, posteriors)
	if err != nil {
		return nil, err
	}

	return &HMM{
		NState:     ns,
		Init:       init,
		Trans:      trans,
		Emission:   emission,
		InitPrior:  hmm.InitPrior,
		TransPrior: hmm.TransPrior,
		Warnings:   hmm.Warnings,
		msglogger:  hmm.msglogger,
	}, nil
}

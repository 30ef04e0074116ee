package hmmlib

import (
	"fmt"
	"math"
	"sync"
)

// Posterior holds the exact smoothing distribution over the latent states
// of one sequence.  It is produced by the forward-backward recursion and
// never mutated afterwards; each E-step replaces it wholesale.
type Posterior struct {

	// Number of states
	NState int

	// Number of time points
	NTime int

	// The log initial state distribution (NState)
	LogInit []float64

	// The emission log-likelihoods (NTime x NState)
	LogLik []float64

	// The log transition probabilities.  Either a single NState x NState
	// matrix shared by all time points, or (NTime-1) stacked matrices for
	// a time-varying chain.
	LogTrans []float64

	// The marginal log-likelihood of the sequence
	LogNorm float64

	// Gamma[t*NState+i] is the posterior probability of state i at time
	// t.  Each row sums to 1.
	Gamma []float64

	// Xi[t*NState*NState+i*NState+j] is the posterior probability of the
	// transition i->j between times t and t+1.  Each NState x NState
	// slice sums to 1.  Empty when NTime == 1.
	Xi []float64
}

// trans returns the log transition matrix in effect between times t and
// t+1.
func (ps *Posterior) trans(t int) []float64 {
	ns2 := ps.NState * ps.NState
	if len(ps.LogTrans) == ns2 {
		return ps.LogTrans
	}
	return ps.LogTrans[t*ns2 : (t+1)*ns2]
}

// checkInferShapes panics if the inputs to the recursion are inconsistent.
func checkInferShapes(logInit, logLik, logTrans []float64, ntime, nstate int) {

	if len(logInit) != nstate {
		panic(fmt.Sprintf("infer: len(logInit)=%d, expected %d", len(logInit), nstate))
	}
	if len(logLik) != ntime*nstate {
		panic(fmt.Sprintf("infer: len(logLik)=%d, expected %d x %d", len(logLik), ntime, nstate))
	}
	ns2 := nstate * nstate
	if len(logTrans) != ns2 && len(logTrans) != (ntime-1)*ns2 {
		panic(fmt.Sprintf("infer: len(logTrans)=%d, expected %d or %d",
			len(logTrans), ns2, (ntime-1)*ns2))
	}
}

// InferPosterior runs the forward-backward recursion for one sequence,
// returning the state marginals, the pairwise transition marginals, and
// the marginal log-likelihood.  logTrans may be a single NState x NState
// matrix or (NTime-1) stacked matrices for a time-varying chain.  An
// error is returned if the log normalizer is -Inf or a marginal cannot be
// normalized, which indicates that the data have zero probability under
// every state.
func InferPosterior(logInit, logLik, logTrans []float64, ntime, nstate int) (*Posterior, error) {

	if ntime < 1 {
		panic("infer: ntime must be positive")
	}
	checkInferShapes(logInit, logLik, logTrans, ntime, nstate)

	ns := nstate
	ns2 := ns * ns

	transAt := func(t int) []float64 {
		if len(logTrans) == ns2 {
			return logTrans
		}
		return logTrans[t*ns2 : (t+1)*ns2]
	}

	alpha := make([]float64, ntime*ns)
	beta := make([]float64, ntime*ns)
	wk := make([]float64, ns)

	// Forward sweep
	for i := 0; i < ns; i++ {
		alpha[i] = logInit[i] + logLik[i]
	}
	for t := 1; t < ntime; t++ {
		logVecMat(alpha[(t-1)*ns:t*ns], transAt(t-1), alpha[t*ns:(t+1)*ns], wk)
		for i := 0; i < ns; i++ {
			alpha[t*ns+i] += logLik[t*ns+i]
		}
	}

	logZ := logSumExp(alpha[(ntime-1)*ns : ntime*ns])
	if math.IsInf(logZ, -1) || math.IsNaN(logZ) {
		return nil, fmt.Errorf("infer: degenerate sequence, log normalizer is %v", logZ)
	}

	// Backward sweep.  beta[T-1] is zero from the allocation above.
	lby := make([]float64, ns)
	for t := ntime - 2; t >= 0; t-- {
		for j := 0; j < ns; j++ {
			lby[j] = logLik[(t+1)*ns+j] + beta[(t+1)*ns+j]
		}
		logMatVec(transAt(t), lby, beta[t*ns:(t+1)*ns], wk)
	}

	// State marginals, renormalized defensively against residual
	// floating point error.
	gamma := make([]float64, ntime*ns)
	for t := 0; t < ntime; t++ {
		row := gamma[t*ns : (t+1)*ns]
		var s float64
		for i := 0; i < ns; i++ {
			row[i] = math.Exp(alpha[t*ns+i] + beta[t*ns+i] - logZ)
			s += row[i]
		}
		if !(s > 0) || math.IsNaN(s) {
			return nil, fmt.Errorf("infer: state marginals at t=%d failed to normalize", t)
		}
		for i := 0; i < ns; i++ {
			row[i] /= s
		}
	}

	// Pairwise transition marginals
	var xi []float64
	if ntime > 1 {
		xi = make([]float64, (ntime-1)*ns2)
		for t := 0; t < ntime-1; t++ {
			tr := transAt(t)
			sl := xi[t*ns2 : (t+1)*ns2]
			var s float64
			for i := 0; i < ns; i++ {
				for j := 0; j < ns; j++ {
					v := alpha[t*ns+i] + tr[i*ns+j] + logLik[(t+1)*ns+j] + beta[(t+1)*ns+j] - logZ
					sl[i*ns+j] = math.Exp(v)
					s += sl[i*ns+j]
				}
			}
			if !(s > 0) || math.IsNaN(s) {
				return nil, fmt.Errorf("infer: transition marginals at t=%d failed to normalize", t)
			}
			for i := range sl {
				sl[i] /= s
			}
		}
	}

	return &Posterior{
		NState:   ns,
		NTime:    ntime,
		LogInit:  logInit,
		LogLik:   logLik,
		LogTrans: logTrans,
		LogNorm:  logZ,
		Gamma:    gamma,
		Xi:       xi,
	}, nil
}

// LogProb returns the posterior log-probability of a fixed state
// sequence, log p(states | data).
func (ps *Posterior) LogProb(states []int) float64 {

	if len(states) != ps.NTime {
		panic(fmt.Sprintf("LogProb: len(states)=%d, expected %d", len(states), ps.NTime))
	}

	ns := ps.NState
	lp := ps.LogInit[states[0]] + ps.LogLik[states[0]]
	for t := 1; t < ps.NTime; t++ {
		tr := ps.trans(t - 1)
		lp += tr[states[t-1]*ns+states[t]] + ps.LogLik[t*ns+states[t]]
	}

	return lp - ps.LogNorm
}

// InitialStats returns the expected state occupancy at the first time
// point.
func (ps *Posterior) InitialStats() []float64 {
	v := make([]float64, ps.NState)
	copy(v, ps.Gamma[0:ps.NState])
	return v
}

// AddTransitionStats accumulates the expected transition counts of this
// sequence, summed over time, into the NState x NState matrix m.
func (ps *Posterior) AddTransitionStats(m []float64) {

	ns2 := ps.NState * ps.NState
	for t := 0; t < ps.NTime-1; t++ {
		sl := ps.Xi[t*ns2 : (t+1)*ns2]
		for j := range sl {
			m[j] += sl[j]
		}
	}
}

// inferJob is the per-sequence work item for batched inference.
func inferJob(logInit, logLik, logTrans []float64, ntime, nstate, p int,
	out []*Posterior, errs []error, wg *sync.WaitGroup) {

	defer wg.Done()
	ps, err := InferPosterior(logInit, logLik, logTrans, ntime, nstate)
	out[p] = ps
	errs[p] = err
}

// InferPosteriors runs the forward-backward recursion independently over
// every sequence in the batch.  logLik[p] holds the NTime x NState
// emission log-likelihood table for sequence p.  Sequences are processed
// concurrently; within a sequence the recursion is strictly sequential.
func InferPosteriors(logInit []float64, logLik [][]float64, logTrans []float64,
	ntime, nstate int) ([]*Posterior, error) {

	out := make([]*Posterior, len(logLik))
	errs := make([]error, len(logLik))

	var wg sync.WaitGroup
	for p := range logLik {
		wg.Add(1)
		go inferJob(logInit, logLik[p], logTrans, ntime, nstate, p, out, errs, &wg)
	}
	wg.Wait()

	for p, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", p, err)
		}
	}

	return out, nil
}

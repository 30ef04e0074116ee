package hmmlib

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/schollz/progressbar"
)

// Tolerance below which a log-likelihood decrease is attributed to
// floating point error rather than a broken m-step.
const llfDecreaseTol = 1e-10

// Initialize returns a model whose emission parameters have been seeded
// by one m-step against hard state assignments produced by the named
// method.  Supported methods are "kmeans" (cluster the pooled
// observations) and "random" (uniform random assignments).  The
// assignment method determines the EM basin of attraction but never
// touches the recursion itself.
func (hmm *HMM) Initialize(ds *Dataset, method string, rnd *rand.Rand) (*HMM, error) {

	ns := hmm.NState

	var assign []int
	switch method {
	case "kmeans":
		assign = kMeans(ds.Pooled(), ds.NSeq*ds.NTime, ds.NComp, ns, 25, rnd)
	case "random":
		assign = make([]int, ds.NSeq*ds.NTime)
		for i := range assign {
			assign[i] = rnd.Intn(ns)
		}
	default:
		return nil, fmt.Errorf("initialize: invalid method %q, want \"kmeans\" or \"random\"", method)
	}

	// One-hot dummy posteriors feeding a single emission m-step.
	posteriors := make([]*Posterior, ds.NSeq)
	for p := 0; p < ds.NSeq; p++ {
		gamma := make([]float64, ds.NTime*ns)
		for t := 0; t < ds.NTime; t++ {
			gamma[t*ns+assign[p*ds.NTime+t]] = 1
		}
		posteriors[p] = &Posterior{NState: ns, NTime: ds.NTime, Gamma: gamma}
	}

	emission, err := hmm.Emission.MStep(ds, posteriors)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	out := *hmm
	out.Emission = emission
	return &out, nil
}

// Fit estimates the model parameters by expectation-maximization.  Each
// iteration runs the forward-backward recursion over every sequence,
// sums the marginal log-likelihoods into the iteration score, and
// replaces the parameters with the conjugate posterior modes.  Fitting
// stops when the score changes by less than tol or after numIter
// iterations.
//
// initMethod may be "kmeans", "random", or "" to keep the current
// emission parameters.  The returned trace holds one score per completed
// E-step; the returned posteriors are those of the final E-step.  A score
// decrease beyond floating point tolerance is logged and counted in
// Warnings.LogLikeDecreased, not treated as fatal.
func (hmm *HMM) Fit(ds *Dataset, numIter int, tol float64, initMethod string) ([]float64, *HMM, []*Posterior, error) {

	lg := hmm.logger()
	model := hmm

	if initMethod != "" {
		var err error
		model, err = hmm.Initialize(ds, initMethod, rand.New(rand.NewSource(rand.Int63())))
		if err != nil {
			return nil, nil, nil, err
		}
	}

	lg.Printf("Estimating model parameters...")
	bar := progressbar.New(numIter)

	trace := make([]float64, 0, numIter)
	var posteriors []*Posterior
	var prev float64

	for it := 0; it < numIter; it++ {

		var err error
		posteriors, err = model.InferPosteriors(ds)
		if err != nil {
			return trace, model, nil, err
		}

		var score float64
		for _, ps := range posteriors {
			score += ps.LogNorm
		}
		trace = append(trace, score)
		_ = bar.Add(1)

		if it > 0 {
			if score < prev-llfDecreaseTol {
				lg.Printf("Log-likelihood decreased by %f at iteration %d", prev-score, it)
				model.Warnings.LogLikeDecreased++
			}
			if math.Abs(score-prev) < tol {
				lg.Printf("Converged at iteration %d, llf=%f", it, score)
				fmt.Printf("\n")
				return trace, model, posteriors, nil
			}
		}
		prev = score

		model, err = model.MStep(ds, posteriors)
		if err != nil {
			return trace, model, posteriors, err
		}
	}

	lg.Printf("Maximum iterations reached, llf=%f", prev)
	fmt.Printf("\n")

	return trace, model, posteriors, nil
}

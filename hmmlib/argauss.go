package hmmlib

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// lagWindow is a fixed-size ring buffer over the previous lag
// observations of a sequence.
type lagWindow struct {
	lag  int
	dim  int
	buf  []float64
	head int // index of the oldest row
}

func newLagWindow(lag, dim int) *lagWindow {
	return &lagWindow{
		lag: lag,
		dim: dim,
		buf: make([]float64, lag*dim),
	}
}

// push overwrites the oldest row with y.
func (w *lagWindow) push(y []float64) {
	if w.lag == 0 {
		return
	}
	copy(w.buf[w.head*w.dim:(w.head+1)*w.dim], y)
	w.head = (w.head + 1) % w.lag
}

// flatten writes the window into dst, oldest row first.
func (w *lagWindow) flatten(dst []float64) {
	for i := 0; i < w.lag; i++ {
		r := (w.head + i) % w.lag
		copy(dst[i*w.dim:(i+1)*w.dim], w.buf[r*w.dim:(r+1)*w.dim])
	}
}

func (w *lagWindow) reset() {
	zero(w.buf)
	w.head = 0
}

// ARGaussianEmission is a lag-L linear-Gaussian autoregressive
// observation model.  The regression weights act on the flattened lag
// window (oldest observation first) and the innovation covariance is
// stored as its lower Cholesky factor, which is what the log-density
// evaluation needs.
type ARGaussianEmission struct {

	// Number of states
	NState int

	// Number of components of the emission vector
	NComp int

	// Autoregressive lag
	NLag int

	// Regression weights (NState x NComp x NLag*NComp)
	Weights []float64

	// Per-state bias (NState x NComp)
	Bias []float64

	// Lower Cholesky factor of each state's innovation covariance
	// (NState x NComp x NComp)
	ScaleTril []float64

	// Optional conjugate prior for the per-state regression.  When nil
	// the m-step is regularized only by a small ridge.
	Prior *MatrixNormalInverseWishart
}

// NewARGaussianEmission returns an autoregressive Gaussian emission model
// with zero weights and unit innovation covariance.
func NewARGaussianEmission(nstate, ncomp, nlag int) *ARGaussianEmission {

	if nlag < 1 {
		panic(fmt.Sprintf("NewARGaussianEmission: nlag=%d must be positive", nlag))
	}

	tril := make([]float64, nstate*ncomp*ncomp)
	for st := 0; st < nstate; st++ {
		for j := 0; j < ncomp; j++ {
			tril[st*ncomp*ncomp+j*ncomp+j] = 1
		}
	}

	return &ARGaussianEmission{
		NState:    nstate,
		NComp:     ncomp,
		NLag:      nlag,
		Weights:   make([]float64, nstate*ncomp*nlag*ncomp),
		Bias:      make([]float64, nstate*ncomp),
		ScaleTril: tril,
	}
}

func (em *ARGaussianEmission) NumStates() int { return em.NState }
func (em *ARGaussianEmission) NumComp() int   { return em.NComp }
func (em *ARGaussianEmission) Order() int     { return em.NLag }

// predictMean writes bias + W x into out for state st, where x is the
// flattened lag window.
func (em *ARGaussianEmission) predictMean(st int, x, out []float64) {

	nc := em.NComp
	p0 := em.NLag * nc
	for i := 0; i < nc; i++ {
		v := em.Bias[st*nc+i]
		wr := em.Weights[st*nc*p0+i*p0 : st*nc*p0+(i+1)*p0]
		for j, xv := range x {
			v += wr[j] * xv
		}
		out[i] = v
	}
}

// logProbState returns the Gaussian log-density of the residual y - mean
// under state st's innovation covariance, via forward substitution on the
// Cholesky factor.
func (em *ARGaussianEmission) logProbState(st int, y, mean, wk []float64) float64 {

	nc := em.NComp
	lt := em.ScaleTril[st*nc*nc : (st+1)*nc*nc]

	// Solve L z = y - mean
	var quad, logdet float64
	for i := 0; i < nc; i++ {
		r := y[i] - mean[i]
		for j := 0; j < i; j++ {
			r -= lt[i*nc+j] * wk[j]
		}
		wk[i] = r / lt[i*nc+i]
		quad += wk[i] * wk[i]
		logdet += math.Log(lt[i*nc+i])
	}

	return -quad/2 - logdet - float64(nc)*log2pi/2
}

// LogProbs fills the NTime x NState emission log-likelihood table.  The
// first NLag rows are zero: with no valid lag history those time points
// carry no emission likelihood.
func (em *ARGaussianEmission) LogProbs(seq []float64, ntime int, out []float64) {

	if len(seq) != ntime*em.NComp {
		panic(fmt.Sprintf("LogProbs: len(seq)=%d, expected %d x %d", len(seq), ntime, em.NComp))
	}

	nc := em.NComp
	win := newLagWindow(em.NLag, nc)
	x := make([]float64, em.NLag*nc)
	mean := make([]float64, nc)
	wk := make([]float64, nc)

	for t := 0; t < ntime; t++ {
		obs := seq[t*nc : (t+1)*nc]
		if t < em.NLag {
			for st := 0; st < em.NState; st++ {
				out[t*em.NState+st] = 0
			}
		} else {
			win.flatten(x)
			for st := 0; st < em.NState; st++ {
				em.predictMean(st, x, mean)
				out[t*em.NState+st] = em.logProbState(st, obs, mean, wk)
			}
		}
		win.push(obs)
	}
}

func (em *ARGaussianEmission) Sample(st int, window []float64, rnd *rand.Rand, out []float64) {

	nc := em.NComp
	em.predictMean(st, window, out)

	z := make([]float64, nc)
	for i := range z {
		z[i] = rnd.NormFloat64()
	}
	lt := em.ScaleTril[st*nc*nc : (st+1)*nc*nc]
	for i := 0; i < nc; i++ {
		for j := 0; j <= i; j++ {
			out[i] += lt[i*nc+j] * z[j]
		}
	}
}

// arSuffStats holds the running weighted moments of the lag-window
// regression, indexed by state.
type arSuffStats struct {
	nstate int
	p0     int // lag window dimension
	nc     int // observation dimension

	sx  []float64 // NState x P0, first moment of the lag window
	sy  []float64 // NState x NComp, first moment of the observation
	sxx []float64 // NState x P0 x P0, second moment of the lag window
	syx []float64 // NState x NComp x P0, cross moment
	syy []float64 // NState x NComp x NComp, second moment of the observation
	n   []float64 // NState, total weight
}

func newARSuffStats(nstate, p0, nc int) *arSuffStats {
	return &arSuffStats{
		nstate: nstate,
		p0:     p0,
		nc:     nc,
		sx:     make([]float64, nstate*p0),
		sy:     make([]float64, nstate*nc),
		sxx:    make([]float64, nstate*p0*p0),
		syx:    make([]float64, nstate*nc*p0),
		syy:    make([]float64, nstate*nc*nc),
		n:      make([]float64, nstate),
	}
}

// accumulate adds the moments of one (window, observation) pair, weighted
// by the posterior state probabilities w.
func (ss *arSuffStats) accumulate(x, y, w []float64) {

	p0, nc := ss.p0, ss.nc
	for st, wt := range w {
		if wt == 0 {
			continue
		}
		ss.n[st] += wt
		for i, xv := range x {
			ss.sx[st*p0+i] += wt * xv
			for j, xw := range x {
				ss.sxx[st*p0*p0+i*p0+j] += wt * xv * xw
			}
		}
		for i, yv := range y {
			ss.sy[st*nc+i] += wt * yv
			for j, xv := range x {
				ss.syx[st*nc*p0+i*p0+j] += wt * yv * xv
			}
			for j, yw := range y {
				ss.syy[st*nc*nc+i*nc+j] += wt * yv * yw
			}
		}
	}
}

// add merges another accumulator into this one.
func (ss *arSuffStats) add(o *arSuffStats) {
	addTo := func(dst, src []float64) {
		for i := range src {
			dst[i] += src[i]
		}
	}
	addTo(ss.sx, o.sx)
	addTo(ss.sy, o.sy)
	addTo(ss.sxx, o.sxx)
	addTo(ss.syx, o.syx)
	addTo(ss.syy, o.syy)
	addTo(ss.n, o.n)
}

// collectStats scans one sequence left to right, maintaining the rolling
// lag window, and accumulates the weighted sufficient statistics.  The
// first NLag time points contribute nothing.
func (em *ARGaussianEmission) collectStats(seq, gamma []float64, ntime int, ss *arSuffStats) {

	nc := em.NComp
	win := newLagWindow(em.NLag, nc)
	x := make([]float64, em.NLag*nc)

	for t := 0; t < ntime; t++ {
		obs := seq[t*nc : (t+1)*nc]
		if t >= em.NLag {
			win.flatten(x)
			ss.accumulate(x, obs, gamma[t*em.NState:(t+1)*em.NState])
		}
		win.push(obs)
	}
}

// MStep accumulates the windowed sufficient statistics over all
// sequences, folds in the prior pseudo-observations, and returns the
// matrix-normal inverse-Wishart posterior mode as a new emission model.
func (em *ARGaussianEmission) MStep(ds *Dataset, posteriors []*Posterior) (EmissionModel, error) {

	if ds.NComp != em.NComp {
		panic(fmt.Sprintf("MStep: dataset has %d components, model has %d", ds.NComp, em.NComp))
	}

	ns, nc := em.NState, em.NComp
	p0 := em.NLag * nc
	p := p0 + 1

	total := newARSuffStats(ns, p0, nc)

	var wg sync.WaitGroup
	var mut sync.Mutex
	for q := range ds.Obs {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			local := newARSuffStats(ns, p0, nc)
			em.collectStats(ds.Obs[q], posteriors[q].Gamma, ds.NTime, local)
			mut.Lock()
			total.add(local)
			mut.Unlock()
		}(q)
	}
	wg.Wait()

	weights := make([]float64, ns*nc*p0)
	bias := make([]float64, ns*nc)
	tril := make([]float64, ns*nc*nc)

	for st := 0; st < ns; st++ {

		// Assemble the intercept-augmented regression moments for this
		// state.
		bigXX := mat.NewSymDense(p, nil)
		for i := 0; i < p0; i++ {
			for j := i; j < p0; j++ {
				bigXX.SetSym(i, j, total.sxx[st*p0*p0+i*p0+j])
			}
			bigXX.SetSym(i, p0, total.sx[st*p0+i])
		}
		bigXX.SetSym(p0, p0, total.n[st])

		bigYX := mat.NewDense(nc, p, nil)
		for i := 0; i < nc; i++ {
			for j := 0; j < p0; j++ {
				bigYX.Set(i, j, total.syx[st*nc*p0+i*p0+j])
			}
			bigYX.Set(i, p0, total.sy[st*nc+i])
		}

		eyy := mat.NewDense(nc, nc, nil)
		for i := 0; i < nc; i++ {
			for j := 0; j < nc; j++ {
				eyy.Set(i, j, total.syy[st*nc*nc+i*nc+j])
			}
		}

		counts := total.n[st]
		if em.Prior != nil {
			if err := em.Prior.addPseudoObs(bigXX, bigYX, eyy); err != nil {
				return nil, fmt.Errorf("state %d: %w", st, err)
			}
			counts += em.Prior.pseudoCounts()
		}

		w, sigma, err := mniwMode(bigXX, bigYX, eyy, counts)
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", st, err)
		}

		for i := 0; i < nc; i++ {
			for j := 0; j < p0; j++ {
				weights[st*nc*p0+i*p0+j] = w.At(i, j)
			}
			bias[st*nc+i] = w.At(i, p0)
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(sigma); !ok {
			return nil, fmt.Errorf("state %d: innovation covariance is not positive definite", st)
		}
		var lt mat.TriDense
		chol.LTo(&lt)
		for i := 0; i < nc; i++ {
			for j := 0; j <= i; j++ {
				tril[st*nc*nc+i*nc+j] = lt.At(i, j)
			}
		}
	}

	return &ARGaussianEmission{
		NState:    ns,
		NComp:     nc,
		NLag:      em.NLag,
		Weights:   weights,
		Bias:      bias,
		ScaleTril: tril,
		Prior:     em.Prior,
	}, nil
}

package hmmlib

import (
	"io"
	"log"
	"math"
	"math/rand"
	"sort"
	"strings"
	"testing"
)

// Slack for the monotone log-likelihood checks.  The m-step maximizes
// the penalized objective, so the marginal score can dip by an amount
// bounded by the weak prior.
const llfSlack = 1e-3

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// gaussTruth returns a well-separated Gaussian HMM for generating test
// data.
func gaussTruth(nstate, ncomp int) *HMM {

	em := NewGaussianEmission(nstate, ncomp)
	for st := 0; st < nstate; st++ {
		for j := 0; j < ncomp; j++ {
			em.Mean[st*ncomp+j] = 3 * float64(st)
		}
	}

	return New(UniformInit(nstate), StickyTrans(nstate, 0.9), em)
}

func checkMonotone(t *testing.T, trace []float64) {
	t.Helper()

	if len(trace) == 0 {
		t.Fatal("empty log-likelihood trace")
	}
	for i := 1; i < len(trace); i++ {
		if trace[i] < trace[i-1]-llfSlack {
			t.Errorf("log-likelihood decreased from %f to %f at iteration %d",
				trace[i-1], trace[i], i)
		}
	}
}

func TestFitMonotoneGaussian(t *testing.T) {

	rnd := rand.New(rand.NewSource(1))

	for _, nstate := range []int{2, 3} {
		for _, ncomp := range []int{1, 2} {

			truth := gaussTruth(nstate, ncomp)
			ds, _ := GenDataset(truth, 30, 40, rnd)

			model := New(UniformInit(nstate), StickyTrans(nstate, 0.8),
				NewGaussianEmission(nstate, ncomp))
			model.SetLogger(quietLogger())

			trace, fitted, posteriors, err := model.Fit(ds, 10, 0, "random")
			if err != nil {
				t.Fatal(err)
			}
			if fitted == nil || len(posteriors) != ds.NSeq {
				t.Fatalf("nstate=%d ncomp=%d: incomplete fit result", nstate, ncomp)
			}
			checkMonotone(t, trace)
		}
	}
}

func TestFitMonotonePoisson(t *testing.T) {

	rnd := rand.New(rand.NewSource(2))

	for _, nstate := range []int{2, 3} {

		em := NewPoissonEmission(nstate, 2)
		for st := 0; st < nstate; st++ {
			for j := 0; j < 2; j++ {
				em.Mean[st*2+j] = 3 * float64(st+1)
			}
		}
		truth := New(UniformInit(nstate), StickyTrans(nstate, 0.9), em)
		ds, _ := GenDataset(truth, 30, 40, rnd)

		model := New(UniformInit(nstate), StickyTrans(nstate, 0.8),
			NewPoissonEmission(nstate, 2))
		model.SetLogger(quietLogger())

		trace, _, _, err := model.Fit(ds, 10, 0, "random")
		if err != nil {
			t.Fatal(err)
		}
		checkMonotone(t, trace)
	}
}

func TestGaussianRecovery(t *testing.T) {

	rnd := rand.New(rand.NewSource(3))

	truth := gaussTruth(2, 1)
	ds, states := GenDataset(truth, 100, 50, rnd)

	model := New(UniformInit(2), StickyTrans(2, 0.8), NewGaussianEmission(2, 1))
	model.SetLogger(quietLogger())

	trace, fitted, _, err := model.Fit(ds, 50, 1e-4, "kmeans")
	if err != nil {
		t.Fatal(err)
	}
	checkMonotone(t, trace)

	var ztrue, zhat []int
	for p := 0; p < ds.NSeq; p++ {
		ztrue = append(ztrue, states[p]...)
		zhat = append(zhat, fitted.ReconstructStates(ds.Obs[p], ds.NTime)...)
	}

	frac := MatchFraction(ztrue, zhat, 2, 2)
	if frac < 0.9 {
		t.Errorf("state recovery %.3f, expected at least 0.9", frac)
	}

	// The fitted means, sorted, should be close to the generating means.
	em := fitted.Emission.(*GaussianEmission)
	means := append([]float64(nil), em.Mean...)
	sort.Float64s(means)
	if math.Abs(means[0]-0) > 0.25 || math.Abs(means[1]-3) > 0.25 {
		t.Errorf("fitted means %v, expected approximately [0 3]", means)
	}
}

func TestInitializeKMeans(t *testing.T) {

	rnd := rand.New(rand.NewSource(4))

	truth := gaussTruth(2, 1)
	ds, _ := GenDataset(truth, 50, 50, rnd)

	model := New(UniformInit(2), StickyTrans(2, 0.8), NewGaussianEmission(2, 1))
	seeded, err := model.Initialize(ds, "kmeans", rnd)
	if err != nil {
		t.Fatal(err)
	}

	// The receiver keeps its unit parameters.
	em0 := model.Emission.(*GaussianEmission)
	for _, m := range em0.Mean {
		if m != 0 {
			t.Errorf("Initialize modified the receiver emission")
		}
	}

	em := seeded.Emission.(*GaussianEmission)
	means := append([]float64(nil), em.Mean...)
	sort.Float64s(means)
	if math.Abs(means[0]-0) > 0.5 || math.Abs(means[1]-3) > 0.5 {
		t.Errorf("seeded means %v, expected approximately [0 3]", means)
	}
}

func TestFitInvalidInit(t *testing.T) {

	rnd := rand.New(rand.NewSource(5))

	truth := gaussTruth(2, 1)
	ds, _ := GenDataset(truth, 5, 10, rnd)

	model := New(UniformInit(2), StickyTrans(2, 0.8), NewGaussianEmission(2, 1))
	model.SetLogger(quietLogger())

	_, _, _, err := model.Fit(ds, 5, 1e-4, "bogus")
	if err == nil {
		t.Fatal("expected an error for an unknown initialization method")
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error %q does not name the offending method", err.Error())
	}
}

func TestMStepSnapshot(t *testing.T) {

	rnd := rand.New(rand.NewSource(6))

	truth := gaussTruth(2, 1)
	ds, _ := GenDataset(truth, 10, 20, rnd)

	model := New(UniformInit(2), StickyTrans(2, 0.8), NewGaussianEmission(2, 1))
	init0 := append([]float64(nil), model.Init...)
	trans0 := append([]float64(nil), model.Trans...)

	posteriors, err := model.InferPosteriors(ds)
	if err != nil {
		t.Fatal(err)
	}
	next, err := model.MStep(ds, posteriors)
	if err != nil {
		t.Fatal(err)
	}
	if next == model {
		t.Fatal("MStep returned the receiver")
	}

	// The receiver's parameters are unchanged.
	for i := range init0 {
		if model.Init[i] != init0[i] {
			t.Errorf("MStep modified the receiver's initial distribution")
		}
	}
	for i := range trans0 {
		if model.Trans[i] != trans0[i] {
			t.Errorf("MStep modified the receiver's transition matrix")
		}
	}

	// The updated rows are still distributions.
	ns := next.NState
	var s float64
	for _, v := range next.Init {
		s += v
	}
	if math.Abs(s-1) > 1e-10 {
		t.Errorf("updated initial distribution sums to %f", s)
	}
	for i := 0; i < ns; i++ {
		s = 0
		for j := 0; j < ns; j++ {
			s += next.Trans[i*ns+j]
		}
		if math.Abs(s-1) > 1e-10 {
			t.Errorf("updated transition row %d sums to %f", i, s)
		}
	}
}

func TestDirichletModeFallback(t *testing.T) {

	// All concentrations above one: the usual mode.
	out := make([]float64, 3)
	dirichletMode([]float64{3, 2, 2}, out)
	want := []float64{2.0 / 4, 1.0 / 4, 1.0 / 4}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("mode[%d]=%f, expected %f", i, out[i], want[i])
		}
	}

	// A concentration below one: fall back to the normalized mean.
	dirichletMode([]float64{0.5, 1, 0.5}, out)
	want = []float64{0.25, 0.5, 0.25}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("fallback[%d]=%f, expected %f", i, out[i], want[i])
		}
	}
}

package hmmlib

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"
)

func TestSaveReadGaussian(t *testing.T) {

	rnd := rand.New(rand.NewSource(1))

	em := NewGaussianEmission(3, 2)
	for i := range em.Mean {
		em.Mean[i] = rnd.NormFloat64()
		em.Std[i] = 0.5 + rnd.Float64()
	}
	hmm := New(UniformInit(3), StickyTrans(3, 0.7), em)

	fname := filepath.Join(t.TempDir(), "model.gob.gz")
	if err := hmm.Save(fname); err != nil {
		t.Fatal(err)
	}
	back, err := ReadHMM(fname)
	if err != nil {
		t.Fatal(err)
	}

	// Reloading must reproduce identical inference output.
	_, seq := hmm.Sample(25, rnd)
	ps1, err := hmm.InferPosterior(seq, 25)
	if err != nil {
		t.Fatal(err)
	}
	ps2, err := back.InferPosterior(seq, 25)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(ps1.LogNorm-ps2.LogNorm) > 1e-12 {
		t.Errorf("LogNorm %f before save, %f after", ps1.LogNorm, ps2.LogNorm)
	}
	for i := range ps1.Gamma {
		if math.Abs(ps1.Gamma[i]-ps2.Gamma[i]) > 1e-12 {
			t.Errorf("Gamma[%d] differs after reload", i)
			break
		}
	}
}

func TestSaveReadAR(t *testing.T) {

	rnd := rand.New(rand.NewSource(2))

	em := NewARGaussianEmission(2, 2, 2)
	for i := range em.Weights {
		em.Weights[i] = 0.2 * rnd.NormFloat64()
	}
	for i := range em.Bias {
		em.Bias[i] = rnd.NormFloat64()
	}
	em.Prior = NewMatrixNormalInverseWishart(2, 5)
	hmm := New(UniformInit(2), StickyTrans(2, 0.8), em)

	fname := filepath.Join(t.TempDir(), "armodel.gob.gz")
	if err := hmm.Save(fname); err != nil {
		t.Fatal(err)
	}
	back, err := ReadHMM(fname)
	if err != nil {
		t.Fatal(err)
	}

	bem, ok := back.Emission.(*ARGaussianEmission)
	if !ok {
		t.Fatalf("reloaded emission has type %T", back.Emission)
	}
	if bem.NLag != 2 || bem.Prior == nil {
		t.Errorf("reloaded emission lost lag or prior information")
	}

	_, seq := hmm.Sample(20, rnd)
	ll1 := hmm.LogLikelihoods(seq, 20)
	ll2 := back.LogLikelihoods(seq, 20)
	for i := range ll1 {
		if ll1[i] != ll2[i] {
			t.Errorf("likelihood table differs at %d after reload", i)
			break
		}
	}
}

func TestSimDataRoundTrip(t *testing.T) {

	rnd := rand.New(rand.NewSource(3))

	hmm := New(UniformInit(2), StickyTrans(2, 0.9), NewPoissonEmission(2, 1))
	em := hmm.Emission.(*PoissonEmission)
	em.Mean[1] = 5

	ds, states := GenDataset(hmm, 4, 10, rnd)
	sd := &SimData{Model: hmm, Data: ds, States: states}

	fname := filepath.Join(t.TempDir(), "sim.gob.gz")
	if err := WriteSimData(sd, fname); err != nil {
		t.Fatal(err)
	}
	back, err := ReadSimData(fname)
	if err != nil {
		t.Fatal(err)
	}

	if back.Data.NSeq != 4 || back.Data.NTime != 10 || back.Data.NComp != 1 {
		t.Fatalf("reloaded dataset has shape %d x %d x %d",
			back.Data.NSeq, back.Data.NTime, back.Data.NComp)
	}
	for p := range states {
		for t1 := range states[p] {
			if back.States[p][t1] != states[p][t1] {
				t.Fatalf("states differ at sequence %d position %d", p, t1)
			}
		}
		for i := range ds.Obs[p] {
			if back.Data.Obs[p][i] != ds.Obs[p][i] {
				t.Fatalf("observations differ at sequence %d index %d", p, i)
			}
		}
	}
	if back.Model.Warnings == nil {
		t.Errorf("reloaded model has nil warning counters")
	}
}

package hmmlib

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"
)

// genDiscrete generates a discrete random variable from the given
// probability vector, which must sum to 1.
func genDiscrete(pr []float64, rnd *rand.Rand) int {

	u := rnd.Float64()
	p := 0.0
	for j := range pr {
		p += pr[j]
		if u < p {
			return j
		}
	}

	return len(pr) - 1
}

// genPoisson generates a Poisson random variable with the given mean.
func genPoisson(lambda float64, rnd *rand.Rand) float64 {

	if lambda <= 0 {
		return 0
	}

	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= rnd.Float64()
		if p <= l {
			break
		}
		k++
	}

	return float64(k)
}

// GenDataset samples nseq independent sequences of length ntime from the
// model, returning the batch and the true state sequences.
func GenDataset(hmm *HMM, nseq, ntime int, rnd *rand.Rand) (*Dataset, [][]int) {

	nc := hmm.Emission.NumComp()
	obs := makeFloatArray(nseq, ntime*nc)
	states := makeIntArray(nseq, ntime)

	for p := 0; p < nseq; p++ {
		st, ob := hmm.Sample(ntime, rnd)
		copy(states[p], st)
		copy(obs[p], ob)
	}

	return NewDataset(obs, ntime, nc), states
}

// SimData bundles a generated dataset with the model and states that
// produced it, for transfer between the generate and estimate programs.
type SimData struct {
	Model  *HMM
	Data   *Dataset
	States [][]int
}

// WriteSimData writes a gzip-compressed gob file.
func WriteSimData(sd *SimData, fname string) error {

	fid, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer fid.Close()

	gid := gzip.NewWriter(fid)
	defer gid.Close()

	if err := gob.NewEncoder(gid).Encode(sd); err != nil {
		return fmt.Errorf("writing simulated data: %w", err)
	}

	return nil
}

// ReadSimData reads a file written by WriteSimData.
func ReadSimData(fname string) (*SimData, error) {

	fid, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	gid, err := gzip.NewReader(fid)
	if err != nil {
		return nil, err
	}
	defer gid.Close()

	var sd SimData
	if err := gob.NewDecoder(gid).Decode(&sd); err != nil {
		return nil, fmt.Errorf("reading simulated data: %w", err)
	}
	if sd.Model != nil && sd.Model.Warnings == nil {
		sd.Model.Warnings = &Warnings{}
	}

	return &sd, nil
}

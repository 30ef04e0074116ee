package hmmlib

import "fmt"

// Dataset is a batch of independent observation sequences that follow the
// same HMM law.  All sequences have the same length; ragged batches must
// be split by the caller before fitting.
type Dataset struct {

	// Number of sequences in the batch
	NSeq int

	// Number of time points per sequence
	NTime int

	// Number of components of the emission vector
	NComp int

	// Obs[p] is the flattened NTime x NComp observation matrix for
	// sequence p.
	Obs [][]float64
}

// NewDataset wraps a batch of flattened sequences, checking that every
// sequence has the expected uniform shape.
func NewDataset(obs [][]float64, ntime, ncomp int) *Dataset {

	if len(obs) == 0 {
		panic("NewDataset: empty batch")
	}

	for p, seq := range obs {
		if len(seq) != ntime*ncomp {
			panic(fmt.Sprintf("NewDataset: sequence %d has length %d, expected %d x %d",
				p, len(seq), ntime, ncomp))
		}
	}

	return &Dataset{
		NSeq:  len(obs),
		NTime: ntime,
		NComp: ncomp,
		Obs:   obs,
	}
}

// SingleSequence lifts one unbatched sequence to a batch of size 1.
func SingleSequence(seq []float64, ncomp int) *Dataset {

	if ncomp <= 0 || len(seq)%ncomp != 0 {
		panic(fmt.Sprintf("SingleSequence: length %d is not a multiple of ncomp=%d",
			len(seq), ncomp))
	}

	return NewDataset([][]float64{seq}, len(seq)/ncomp, ncomp)
}

// Pooled returns all observation rows of the batch concatenated into a
// single (NSeq*NTime) x NComp matrix, packed by row.
func (ds *Dataset) Pooled() []float64 {

	x := make([]float64, ds.NSeq*ds.NTime*ds.NComp)
	ii := 0
	for _, seq := range ds.Obs {
		copy(x[ii:], seq)
		ii += len(seq)
	}

	return x
}

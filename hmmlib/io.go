package hmmlib

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
)

func init() {
	gob.Register(&GaussianEmission{})
	gob.Register(&PoissonEmission{})
	gob.Register(&ARGaussianEmission{})
}

// Save writes the model parameters to a gzip-compressed gob file.
// Reloading with ReadHMM reproduces identical inference output.
func (hmm *HMM) Save(fname string) error {

	fid, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer fid.Close()

	gid := gzip.NewWriter(fid)
	defer gid.Close()

	enc := gob.NewEncoder(gid)
	if err := enc.Encode(hmm); err != nil {
		return fmt.Errorf("saving HMM: %w", err)
	}

	return nil
}

// ReadHMM reads an HMM value from a gzip-compressed gob file.
func ReadHMM(fname string) (*HMM, error) {

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

	dec := gob.NewDecoder(gid)

	var hmm HMM
	if err := dec.Decode(&hmm); err != nil {
		return nil, fmt.Errorf("reading HMM: %w", err)
	}
	if hmm.Warnings == nil {
		hmm.Warnings = &Warnings{}
	}

	return &hmm, nil
}

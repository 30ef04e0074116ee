package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/lx704612715/ssmgo/hmmlib"
)

func main() {

	var obsmodel, outname string
	flag.StringVar(&obsmodel, "obsmodel", "gaussian", "Observation distribution (gaussian, poisson, ar)")
	flag.StringVar(&outname, "outname", "", "Output file name")

	var nseq, ntime, nstate, ncomp, nlag int
	flag.IntVar(&nseq, "nseq", 100, "Number of sequences")
	flag.IntVar(&ntime, "ntime", 50, "Number of time points per sequence")
	flag.IntVar(&nstate, "nstate", 2, "Number of states")
	flag.IntVar(&ncomp, "ncomp", 1, "Number of components per emission")
	flag.IntVar(&nlag, "nlag", 1, "Autoregressive lag (ar only)")

	var selfprob, sep float64
	flag.Float64Var(&selfprob, "selfprob", 0.9, "Self-transition probability")
	flag.Float64Var(&sep, "sep", 3, "Separation between state means")

	var seed int64
	flag.Int64Var(&seed, "seed", 1, "Random seed")
	flag.Parse()

	if outname == "" {
		fmt.Fprintf(os.Stderr, "generate: outname is required\n")
		os.Exit(1)
	}

	var emission hmmlib.EmissionModel
	switch obsmodel {
	case "gaussian":
		em := hmmlib.NewGaussianEmission(nstate, ncomp)
		for st := 0; st < nstate; st++ {
			for j := 0; j < ncomp; j++ {
				em.Mean[st*ncomp+j] = float64(st) * sep
			}
		}
		emission = em
	case "poisson":
		em := hmmlib.NewPoissonEmission(nstate, ncomp)
		for st := 0; st < nstate; st++ {
			for j := 0; j < ncomp; j++ {
				em.Mean[st*ncomp+j] = float64(st+1) * sep
			}
		}
		emission = em
	case "ar":
		em := hmmlib.NewARGaussianEmission(nstate, ncomp, nlag)
		p0 := nlag * ncomp
		for st := 0; st < nstate; st++ {
			for j := 0; j < ncomp; j++ {
				// Weight on the most recent lag of the same component
				em.Weights[st*ncomp*p0+j*p0+(nlag-1)*ncomp+j] = 0.5
				em.Bias[st*ncomp+j] = float64(st) * sep
				em.ScaleTril[st*ncomp*ncomp+j*ncomp+j] = 0.5
			}
		}
		emission = em
	default:
		fmt.Fprintf(os.Stderr, "generate: unknown obsmodel '%s'\n", obsmodel)
		os.Exit(1)
	}

	hmm := hmmlib.New(hmmlib.UniformInit(nstate), hmmlib.StickyTrans(nstate, selfprob), emission)

	rnd := rand.New(rand.NewSource(seed))
	data, states := hmmlib.GenDataset(hmm, nseq, ntime, rnd)

	sd := &hmmlib.SimData{Model: hmm, Data: data, States: states}
	if err := hmmlib.WriteSimData(sd, outname); err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d sequences of length %d to %s\n", nseq, ntime, outname)
}

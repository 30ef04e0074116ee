package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lx704612715/ssmgo/hmmlib"
)

// freshModel returns an unfitted model of the same family and shape as
// the generating model.
func freshModel(truth *hmmlib.HMM) *hmmlib.HMM {

	ns := truth.NState

	var emission hmmlib.EmissionModel
	switch em := truth.Emission.(type) {
	case *hmmlib.GaussianEmission:
		emission = hmmlib.NewGaussianEmission(ns, em.NComp)
	case *hmmlib.PoissonEmission:
		emission = hmmlib.NewPoissonEmission(ns, em.NComp)
	case *hmmlib.ARGaussianEmission:
		emission = hmmlib.NewARGaussianEmission(ns, em.NComp, em.NLag)
	default:
		panic(fmt.Sprintf("estimate: unknown emission family %T", truth.Emission))
	}

	return hmmlib.New(hmmlib.UniformInit(ns), hmmlib.StickyTrans(ns, 0.8), emission)
}

func main() {

	var gobfile, initmethod, logname, outname string
	flag.StringVar(&gobfile, "gobfile", "", "The data file")
	flag.StringVar(&initmethod, "init", "kmeans", "Initialization method (kmeans or random)")
	flag.StringVar(&logname, "logname", "hmm", "Prefix of log file")
	flag.StringVar(&outname, "outname", "", "Output file for the fitted model")

	var maxiter int
	flag.IntVar(&maxiter, "maxiter", 100, "Maximum number of iterations")

	var tol float64
	flag.Float64Var(&tol, "tol", 1e-4, "Convergence tolerance")
	flag.Parse()

	if gobfile == "" {
		fmt.Fprintf(os.Stderr, "estimate: gobfile is required\n")
		os.Exit(1)
	}

	fid, err := os.Create(logname + "_msg.log")
	if err != nil {
		panic(err)
	}
	defer fid.Close()
	logger := log.New(fid, "", log.Ltime)

	sd, err := hmmlib.ReadSimData(gobfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "estimate: %v\n", err)
		os.Exit(1)
	}

	model := freshModel(sd.Model)
	model.SetLogger(logger)

	trace, fitted, _, err := model.Fit(sd.Data, maxiter, tol, initmethod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "estimate: %v\n", err)
		os.Exit(1)
	}

	logger.Printf("Log-likelihood trace:")
	for i, v := range trace {
		logger.Printf("%5d  %16.4f", i, v)
	}

	// Concatenate the reconstructed and true state sequences and score
	// the agreement up to a state relabeling.
	ds := sd.Data
	var ztrue, zhat []int
	for p := 0; p < ds.NSeq; p++ {
		zhat = append(zhat, fitted.ReconstructStates(ds.Obs[p], ds.NTime)...)
		ztrue = append(ztrue, sd.States[p]...)
	}
	frac := hmmlib.MatchFraction(ztrue, zhat, sd.Model.NState, fitted.NState)

	fmt.Printf("llf=%.4f after %d iterations\n", trace[len(trace)-1], len(trace))
	fmt.Printf("state agreement (after permutation matching): %.1f%%\n", 100*frac)
	logger.Printf("state agreement: %.4f", frac)
	if fitted.Warnings.LogLikeDecreased > 0 {
		fmt.Printf("warning: log-likelihood decreased %d times\n", fitted.Warnings.LogLikeDecreased)
	}

	if outname != "" {
		if err := fitted.Save(outname); err != nil {
			fmt.Fprintf(os.Stderr, "estimate: %v\n", err)
			os.Exit(1)
		}
	}
}

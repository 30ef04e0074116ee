package hmmlib

// ReconstructStates returns the most probable latent state path for one
// flattened sequence using the Viterbi algorithm.
func (hmm *HMM) ReconstructStates(seq []float64, ntime int) []int {

	ns := hmm.NState
	ll := hmm.LogLikelihoods(seq, ntime)
	li := hmm.logInit()
	lt := hmm.logTrans()

	lpr := make([]float64, ntime*ns)
	lpt := make([]int, ntime*ns)
	wk := make([]float64, ns)

	for st := 0; st < ns; st++ {
		lpr[st] = li[st] + ll[st]
	}

	for t := 1; t < ntime; t++ {
		for st2 := 0; st2 < ns; st2++ {
			for st1 := 0; st1 < ns; st1++ {
				wk[st1] = lpr[(t-1)*ns+st1] + lt[st1*ns+st2]
			}
			jj := argmax(wk)
			lpt[t*ns+st2] = jj
			lpr[t*ns+st2] = wk[jj] + ll[t*ns+st2]
		}
	}

	y := make([]int, ntime)
	y[ntime-1] = argmax(lpr[(ntime-1)*ns : ntime*ns])
	for t := ntime - 2; t >= 0; t-- {
		y[t] = lpt[(t+1)*ns+y[t+1]]
	}

	return y
}

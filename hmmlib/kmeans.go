package hmmlib

import "math/rand"

// kMeans clusters the n rows of the flattened n x d matrix x into k
// groups with Lloyd iterations and returns the per-row assignments.
// Centers are seeded from distinct random rows; a cluster that empties is
// reseeded from a random row.
func kMeans(x []float64, n, d, k, maxiter int, rnd *rand.Rand) []int {

	centers := make([]float64, k*d)
	for j, r := range rnd.Perm(n)[0:min(k, n)] {
		copy(centers[j*d:(j+1)*d], x[r*d:(r+1)*d])
	}

	assign := make([]int, n)
	counts := make([]float64, k)
	sums := make([]float64, k*d)

	dist2 := func(row, c int) float64 {
		var s float64
		for j := 0; j < d; j++ {
			v := x[row*d+j] - centers[c*d+j]
			s += v * v
		}
		return s
	}

	for it := 0; it < maxiter; it++ {

		changed := false
		for i := 0; i < n; i++ {
			best, bd := 0, dist2(i, 0)
			for c := 1; c < k; c++ {
				if v := dist2(i, c); v < bd {
					best, bd = c, v
				}
			}
			if assign[i] != best || it == 0 {
				changed = true
			}
			assign[i] = best
		}
		if !changed {
			break
		}

		zero(sums)
		zero(counts)
		for i := 0; i < n; i++ {
			c := assign[i]
			counts[c]++
			for j := 0; j < d; j++ {
				sums[c*d+j] += x[i*d+j]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				r := rnd.Intn(n)
				copy(centers[c*d:(c+1)*d], x[r*d:(r+1)*d])
				continue
			}
			for j := 0; j < d; j++ {
				centers[c*d+j] = sums[c*d+j] / counts[c]
			}
		}
	}

	return assign
}

package hmmlib

import "fmt"

// StateOverlap returns the k1 x k2 matrix, packed by row, counting the
// positions where z1 is in state i and z2 is in state j.  The sequences
// must have equal length and nonnegative entries below their bounds.
func StateOverlap(z1, z2 []int, k1, k2 int) []int {

	if len(z1) != len(z2) {
		panic(fmt.Sprintf("StateOverlap: lengths %d and %d differ", len(z1), len(z2)))
	}

	overlap := make([]int, k1*k2)
	for t := range z1 {
		if z1[t] < 0 || z1[t] >= k1 || z2[t] < 0 || z2[t] >= k2 {
			panic(fmt.Sprintf("StateOverlap: state out of range at position %d", t))
		}
		overlap[z1[t]*k2+z2[t]]++
	}

	return overlap
}

// FindPermutation returns the permutation perm of the states of z2 that
// maximizes overlap with z1: perm[i] is the z2 state matched to z1 state
// i.  Requires k1 <= k2.  When k1 < k2 the unmatched z2 states are
// appended in ascending order so the result is deterministic.
func FindPermutation(z1, z2 []int, k1, k2 int) []int {

	if k1 > k2 {
		panic(fmt.Sprintf("FindPermutation: k1=%d exceeds k2=%d", k1, k2))
	}

	overlap := StateOverlap(z1, z2, k1, k2)

	// Pad to a square cost matrix; minimizing -overlap maximizes the
	// total agreement.
	n := k2
	cost := make([]float64, n*n)
	for i := 0; i < k1; i++ {
		for j := 0; j < k2; j++ {
			cost[i*n+j] = -float64(overlap[i*k2+j])
		}
	}

	match := hungarian(cost, n)

	perm := make([]int, 0, k2)
	used := make([]bool, k2)
	for i := 0; i < k1; i++ {
		perm = append(perm, match[i])
		used[match[i]] = true
	}
	for j := 0; j < k2; j++ {
		if !used[j] {
			perm = append(perm, j)
		}
	}

	return perm
}

// MatchFraction returns the fraction of positions where z2, relabeled by
// the overlap-maximizing permutation, agrees with z1.
func MatchFraction(z1, z2 []int, k1, k2 int) float64 {

	if len(z1) == 0 {
		return 0
	}

	overlap := StateOverlap(z1, z2, k1, k2)
	perm := FindPermutation(z1, z2, k1, k2)

	var agree int
	for i := 0; i < k1; i++ {
		agree += overlap[i*k2+perm[i]]
	}

	return float64(agree) / float64(len(z1))
}

// hungarian solves the n x n assignment problem on the row-major cost
// matrix, minimizing total cost, and returns the column assigned to each
// row.  This is the O(n^3) potentials formulation; n is a state count
// here, so the cubic bound is irrelevant.
func hungarian(cost []float64, n int) []int {

	const inf = 1e300

	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := 0; j <= n; j++ {
			minv[j] = inf
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[(i0-1)*n+(j-1)] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	match := make([]int, n)
	for j := 1; j <= n; j++ {
		if p[j] > 0 {
			match[p[j]-1] = j - 1
		}
	}

	return match
}

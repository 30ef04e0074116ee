package hmmlib

import (
	"math/rand"
	"testing"
)

func TestStateOverlap(t *testing.T) {

	z1 := []int{0, 0, 1, 1, 1}
	z2 := []int{1, 1, 0, 0, 1}

	overlap := StateOverlap(z1, z2, 2, 2)
	want := []int{0, 2, 2, 1}
	for i := range want {
		if overlap[i] != want[i] {
			t.Errorf("overlap[%d]=%d, expected %d", i, overlap[i], want[i])
		}
	}
}

func TestFindPermutation(t *testing.T) {

	rnd := rand.New(rand.NewSource(1))

	// z2 is z1 relabeled through a fixed permutation; FindPermutation
	// must recover it exactly.
	relabel := []int{2, 0, 1}
	n := 200
	z1 := make([]int, n)
	z2 := make([]int, n)
	for i := range z1 {
		z1[i] = rnd.Intn(3)
		z2[i] = relabel[z1[i]]
	}

	perm := FindPermutation(z1, z2, 3, 3)
	for i := range relabel {
		if perm[i] != relabel[i] {
			t.Errorf("perm=%v, expected %v", perm, relabel)
			break
		}
	}

	if frac := MatchFraction(z1, z2, 3, 3); frac != 1 {
		t.Errorf("match fraction %f, expected 1", frac)
	}
}

func TestFindPermutationPad(t *testing.T) {

	rnd := rand.New(rand.NewSource(2))

	// Two states of z1 map into a four state labeling of z2.  The two
	// unmatched z2 states are appended in ascending order.
	relabel := []int{3, 1}
	n := 100
	z1 := make([]int, n)
	z2 := make([]int, n)
	for i := range z1 {
		z1[i] = rnd.Intn(2)
		z2[i] = relabel[z1[i]]
	}

	perm := FindPermutation(z1, z2, 2, 4)
	want := []int{3, 1, 0, 2}
	for i := range want {
		if perm[i] != want[i] {
			t.Errorf("perm=%v, expected %v", perm, want)
			break
		}
	}
}

func TestMatchFractionPartial(t *testing.T) {

	z1 := []int{0, 1, 0, 1}
	z2 := []int{0, 1, 1, 1}

	if frac := MatchFraction(z1, z2, 2, 2); frac != 0.75 {
		t.Errorf("match fraction %f, expected 0.75", frac)
	}
}

func TestMatchFractionEmpty(t *testing.T) {

	if frac := MatchFraction(nil, nil, 2, 2); frac != 0 {
		t.Errorf("match fraction %f for empty sequences, expected 0", frac)
	}
}

package inference

import "sort"

// TopK returns the indices of the k highest probabilities, best first.
// Equal probabilities rank the higher index first: indices are ordered by
// (probability, index) ascending, the last k are taken and then reversed.
func TopK(probs []float64, k int) []int {
	if k <= 0 || len(probs) == 0 {
		return nil
	}
	if k > len(probs) {
		k = len(probs)
	}

	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		pa, pb := probs[idx[a]], probs[idx[b]]
		if pa != pb {
			return pa < pb
		}
		return idx[a] < idx[b]
	})

	top := make([]int, 0, k)
	for i := len(idx) - 1; i >= len(idx)-k; i-- {
		top = append(top, idx[i])
	}
	return top
}

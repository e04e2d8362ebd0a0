package domain

import "sort"

// DefaultSampleInterval is the stride between sampled path indices.
const DefaultSampleInterval = 8

// SampleIndices returns the sorted, unique indices to fetch data for on a path
// of n points: 0, n-1 and every interval-th index. Intervals below 1 use
// DefaultSampleInterval.
func SampleIndices(n, interval int) []int {
	if n <= 0 {
		return nil
	}
	if interval < 1 {
		interval = DefaultSampleInterval
	}
	idx := make([]int, 0, n/interval+2)
	for i := 0; i < n; i += interval {
		idx = append(idx, i)
	}
	if idx[len(idx)-1] != n-1 {
		idx = append(idx, n-1)
	}
	return idx
}

// NearestSample returns the position in samples of the sample index closest to
// i. Ties go to the lower index. samples must be sorted and non-empty.
func NearestSample(samples []int, i int) int {
	k := sort.SearchInts(samples, i)
	switch {
	case k == 0:
		return 0
	case k == len(samples):
		return k - 1
	case samples[k] == i:
		return k
	}
	if i-samples[k-1] <= samples[k]-i {
		return k - 1
	}
	return k
}

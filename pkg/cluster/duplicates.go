package cluster

import "sort"

// FindDuplicates returns, for every sequence present more than once, the
// ascending indices of all its copies. Groups are ordered by first index.
func FindDuplicates(seqs []string) [][]int {
	first := make(map[string]int, len(seqs))
	var groups [][]int
	slot := make(map[int]int)

	for i, s := range seqs {
		f, ok := first[s]
		if !ok {
			first[s] = i
			continue
		}
		g, ok := slot[f]
		if !ok {
			g = len(groups)
			slot[f] = g
			groups = append(groups, []int{f})
		}
		groups[g] = append(groups[g], i)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a][0] < groups[b][0] })
	return groups
}

package cluster

import (
	"slices"
	"sort"
)

// MergeGroups merges overlapping groups into a partition. Elements of the first
// group get label 0; each following group either takes a fresh label or joins the
// smallest label it intersects, relabelling every element carrying another
// intersecting label. Output groups are sorted, and ordered by ascending size
// (ties by first member).
func MergeGroups(groups [][]int) [][]int {
	if len(groups) == 0 {
		return nil
	}

	label := make(map[int]int)
	for _, x := range groups[0] {
		label[x] = 0
	}

	for i := 1; i < len(groups); i++ {
		hit := make(map[int]struct{})
		for _, x := range groups[i] {
			if l, ok := label[x]; ok {
				hit[l] = struct{}{}
			}
		}

		if len(hit) == 0 {
			for _, x := range groups[i] {
				label[x] = i
			}
			continue
		}

		survivor := -1
		for l := range hit {
			if survivor < 0 || l < survivor {
				survivor = l
			}
		}
		if len(hit) > 1 {
			for x, l := range label {
				if _, ok := hit[l]; ok {
					label[x] = survivor
				}
			}
		}
		for _, x := range groups[i] {
			label[x] = survivor
		}
	}

	byLabel := make(map[int][]int)
	for x, l := range label {
		byLabel[l] = append(byLabel[l], x)
	}

	out := make([][]int, 0, len(byLabel))
	for _, g := range byLabel {
		sort.Ints(g)
		out = append(out, g)
	}
	SortGroups(out)
	return out
}

// SortGroups orders groups by ascending size, ties by first member.
func SortGroups(groups [][]int) {
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) < len(groups[j])
		}
		return slices.Compare(groups[i], groups[j]) < 0
	})
}

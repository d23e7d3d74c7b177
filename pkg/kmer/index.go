// Package kmer builds fixed-length fragment indexes over a set of sequences.
//
// The index maps every fragment of length k to the ascending list of sequences
// containing it. Fragments held by a single sequence are dropped since they can
// never link two sequences.
package kmer

import "sort"

// DefaultK is the fragment length used for candidate detection.
const DefaultK = 11

// Index is a read-only fragment -> sequence index. It is safe for concurrent use
// once built.
type Index struct {
	k       int
	members map[string][]int
}

// Build indexes every fragment of length k in seqs. Sequences shorter than k
// contribute nothing. Identical input always yields an identical index.
func Build(seqs []string, k int) *Index {
	return BuildWith(seqs, k, 2)
}

// BuildWith is Build with a configurable minimal number of sequences per kept
// fragment. Indexes queried with sequences outside the set (see match.Mates)
// use minMembers 1.
func BuildWith(seqs []string, k, minMembers int) *Index {
	if k <= 0 {
		k = DefaultK
	}

	all := make(map[string][]int)
	for j, s := range seqs {
		for i := 0; i+k <= len(s); i++ {
			frag := s[i : i+k]
			m := all[frag]
			// sequences are visited in order, so a repeat within j is always last
			if n := len(m); n > 0 && m[n-1] == j {
				continue
			}
			all[frag] = append(m, j)
		}
	}

	members := make(map[string][]int, len(all)/2)
	for frag, m := range all {
		if len(m) >= minMembers {
			members[frag] = m
		}
	}

	return &Index{k: k, members: members}
}

// K returns the fragment length.
func (x *Index) K() int { return x.k }

// Len returns the number of shared fragments kept in the index.
func (x *Index) Len() int { return len(x.members) }

// Members returns the sequences holding frag, or nil. The slice must not be modified.
func (x *Index) Members(frag string) []int { return x.members[frag] }

// Counts adds to counts[j], for every fragment occurrence in query, one for each
// sequence j sharing that fragment. counts must be sized to the indexed set.
func (x *Index) Counts(query string, counts []int) {
	k := x.k
	for i := 0; i+k <= len(query); i++ {
		for _, j := range x.members[query[i:i+k]] {
			counts[j]++
		}
	}
}

// Fragments returns the indexed fragments in lexical order.
func (x *Index) Fragments() []string {
	out := make([]string, 0, len(x.members))
	for frag := range x.members {
		out = append(out, frag)
	}
	sort.Strings(out)
	return out
}

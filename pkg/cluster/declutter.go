// Package cluster partitions a sequence set at a distance threshold into
// singles, mutually confirmed pairs and merged groups.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/otus/pkg/distance"
	"github.com/thebtf/otus/pkg/kmer"
	"github.com/thebtf/otus/pkg/match"
)

// ErrCorruptState signals a violated clustering invariant. It is never recoverable.
var ErrCorruptState = errors.New("corrupt clustering state")

// Pair is two sequences that are each other's only candidate.
type Pair struct {
	I        int     `json:"i"`
	J        int     `json:"j"`
	Distance float64 `json:"distance"`
}

// Partition is the disjoint result of one clustering pass.
type Partition struct {
	Singles []int
	Pairs   []Pair
	Groups  [][]int
	Stats   PassStats
}

// PassStats are diagnostic counters of a pass.
type PassStats struct {
	Tries     int // distance evaluations
	Fails     int
	RawGroups int // groups before merging
}

// Options configures a pass.
type Options struct {
	K     int
	Match match.Params
}

// DefaultOptions returns the standard pass options.
func DefaultOptions() Options {
	return Options{K: kmer.DefaultK, Match: match.DefaultParams()}
}

type pairSlot struct {
	Pair
	alive bool
}

// pass holds the mutable state of one Declutter run. It is never shared.
type pass struct {
	m      *match.Matcher
	ds     *DisjointSet
	paired []bool
	single []bool
	pairOf map[int]*pairSlot
	pairs  []*pairSlot
	raw    [][]int
	stats  PassStats
}

// Declutter clusters seqs at threshold. Sequences are visited in index order; a
// sequence with no candidate is a single, one whose only candidate reciprocates
// forms a pair, anything else opens a group that absorbs every existing pair or
// group sharing a member. Overlapping groups are merged before returning.
//
// ctx is checked between top-level sequences.
func Declutter(ctx context.Context, seqs []string, threshold float64, dist distance.Func, opts Options) (*Partition, error) {
	n := len(seqs)
	if opts.K <= 0 {
		opts.K = kmer.DefaultK
	}
	p := &pass{
		m:      match.New(seqs, kmer.Build(seqs, opts.K), threshold, distance.Checked(dist), opts.Match),
		ds:     NewDisjointSet(n),
		paired: make([]bool, n),
		single: make([]bool, n),
		pairOf: make(map[int]*pairSlot),
	}

	for j := 0; j < n; j++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.paired[j] {
			continue
		}
		if err := p.visit(j); err != nil {
			return nil, err
		}
	}

	part := p.partition()
	if err := checkPartition(part, n); err != nil {
		return nil, err
	}
	recordPass(ctx, part.Stats)

	log.Debug().
		Int("sequences", n).
		Float64("threshold", threshold).
		Int("singles", len(part.Singles)).
		Int("pairs", len(part.Pairs)).
		Int("groups", len(part.Groups)).
		Int("tries", part.Stats.Tries).
		Int("fails", part.Stats.Fails).
		Msg("Declutter pass complete")

	return part, nil
}

func (p *pass) potentials(j int) (match.Result, error) {
	res, err := p.m.Potentials(j, p.ds.Members)
	if err != nil {
		return res, err
	}
	p.stats.Tries += res.Tries
	p.stats.Fails += res.Fails
	return res, nil
}

func (p *pass) visit(j int) error {
	res, err := p.potentials(j)
	if err != nil {
		return err
	}
	cans := res.Matched

	switch {
	case len(cans) == 0:
		p.single[j] = true
		return nil

	case len(cans) == 1 && !p.paired[cans[0]] && !p.single[cans[0]]:
		partner := cans[0]
		back, err := p.potentials(partner)
		if err != nil {
			return err
		}
		if len(back.Matched) == 1 && back.Matched[0] == j {
			return p.addPair(j, partner, back.Distances[0])
		}
		cans = unionWithout(cans, back.Matched, j)
	}

	p.addGroup(j, cans)
	return nil
}

func (p *pass) addPair(i, j int, d float64) error {
	if p.single[i] || p.single[j] || p.pairOf[i] != nil || p.pairOf[j] != nil {
		return fmt.Errorf("%w: pair (%d, %d) overlaps an existing entry", ErrCorruptState, i, j)
	}
	slot := &pairSlot{Pair: Pair{I: i, J: j, Distance: d}, alive: true}
	p.pairs = append(p.pairs, slot)
	p.pairOf[i] = slot
	p.pairOf[j] = slot
	p.paired[i] = true
	p.paired[j] = true
	return nil
}

func (p *pass) addGroup(j int, cans []int) {
	g := make([]int, 0, len(cans)+1)
	g = append(g, j)
	g = append(g, cans...)

	p.paired[j] = true
	for _, x := range cans {
		p.single[x] = false
		p.paired[x] = true
	}

	// pairs and groups stay disjoint: a pair touching the group dissolves into it
	in := make(map[int]struct{}, len(g))
	for _, x := range g {
		in[x] = struct{}{}
	}
	for k := 0; k < len(g); k++ {
		slot := p.pairOf[g[k]]
		if slot == nil || !slot.alive {
			continue
		}
		slot.alive = false
		delete(p.pairOf, slot.I)
		delete(p.pairOf, slot.J)
		for _, y := range [2]int{slot.I, slot.J} {
			if _, ok := in[y]; !ok {
				in[y] = struct{}{}
				g = append(g, y)
			}
		}
	}

	// a member already in a group brings that group's full membership
	for _, x := range g {
		p.ds.Union(j, x)
	}
	members := append([]int(nil), p.ds.Members(j)...)
	sort.Ints(members)
	p.raw = append(p.raw, members)
}

func (p *pass) partition() *Partition {
	part := &Partition{Stats: p.stats}
	for i, s := range p.single {
		if s {
			part.Singles = append(part.Singles, i)
		}
	}
	for _, slot := range p.pairs {
		if slot.alive {
			part.Pairs = append(part.Pairs, slot.Pair)
		}
	}
	part.Stats.RawGroups = len(p.raw)
	part.Groups = MergeGroups(p.raw)
	return part
}

// checkPartition verifies that every index lands in exactly one entry.
func checkPartition(part *Partition, n int) error {
	seen := make([]bool, n)
	mark := func(x int) error {
		if x < 0 || x >= n {
			return fmt.Errorf("%w: index %d out of range", ErrCorruptState, x)
		}
		if seen[x] {
			return fmt.Errorf("%w: index %d assigned twice", ErrCorruptState, x)
		}
		seen[x] = true
		return nil
	}

	for _, s := range part.Singles {
		if err := mark(s); err != nil {
			return err
		}
	}
	for _, pr := range part.Pairs {
		if err := mark(pr.I); err != nil {
			return err
		}
		if err := mark(pr.J); err != nil {
			return err
		}
	}
	for _, g := range part.Groups {
		for _, x := range g {
			if err := mark(x); err != nil {
				return err
			}
		}
	}
	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("%w: index %d unassigned", ErrCorruptState, i)
		}
	}
	return nil
}

func unionWithout(a, b []int, drop int) []int {
	set := make(map[int]struct{}, len(a)+len(b))
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, x := range b {
		set[x] = struct{}{}
	}
	delete(set, drop)

	out := make([]int, 0, len(set))
	for x := range set {
		out = append(out, x)
	}
	sort.Ints(out)
	return out
}

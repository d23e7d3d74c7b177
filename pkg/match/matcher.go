// Package match ranks candidate sequences from a fragment index and greedily
// confirms them with a distance oracle, evaluating true distances lazily.
package match

import (
	"fmt"

	"github.com/thebtf/otus/pkg/kmer"
)

// Params holds the tuned constants of the greedy scan.
type Params struct {
	// FailLimit is the fail streak after which a clearly divergent candidate stops the scan.
	FailLimit int
	// Adaptive enables the statistical early break.
	Adaptive bool
	// AdaptiveMinSamples is the number of accepted matches and of recorded fails
	// required before the adaptive break may trigger.
	AdaptiveMinSamples int
	// AdaptiveFactor scales the minimal accepted similarity in the adaptive break.
	AdaptiveFactor float64
}

// DefaultParams returns the standard scan parameters.
func DefaultParams() Params {
	return Params{
		FailLimit:          20,
		Adaptive:           true,
		AdaptiveMinSamples: 500,
		AdaptiveFactor:     0.99,
	}
}

// Stats accumulates similarity statistics across a whole clustering pass.
type Stats struct {
	MinAccepted float64 // minimal similarity of an accepted candidate
	Accepted    int
	FailSum     float64 // sum of the similarity at each query's first fail
	FailSamples int
}

// NewStats returns statistics primed with a minimal accepted similarity above
// any real one and a fail sum of 1 over no samples.
func NewStats() *Stats {
	return &Stats{MinAccepted: 2, FailSum: 1}
}

// Result is the outcome of a single scan.
type Result struct {
	Matched    []int
	Distances  []float64
	Fails      int // fail streak at exit
	Tries      int // distance evaluations
	Candidates int // candidates with a shared fragment
}

// Matcher runs greedy scans over one sequence set at a fixed threshold.
// It is not safe for concurrent use: Stats is updated by every scan.
type Matcher struct {
	Seqs      []string
	Lengths   []int
	Index     *kmer.Index
	Threshold float64
	Distance  func(i, j int) (float64, error)
	Params    Params
	Stats     *Stats

	counts []int
}

// New creates a matcher and precomputes sequence lengths.
func New(seqs []string, idx *kmer.Index, threshold float64, dist func(i, j int) (float64, error), p Params) *Matcher {
	lengths := make([]int, len(seqs))
	for i, s := range seqs {
		lengths[i] = len(s)
	}
	return &Matcher{
		Seqs:      seqs,
		Lengths:   lengths,
		Index:     idx,
		Threshold: threshold,
		Distance:  dist,
		Params:    p,
		Stats:     NewStats(),
		counts:    make([]int, len(seqs)),
	}
}

// Potentials returns the sequences within the threshold of sequence q. owned
// reports the members of the group a sequence already belongs to (nil when
// ungrouped); once a candidate is accepted its whole group is skipped.
func (m *Matcher) Potentials(q int, owned func(int) []int) (Result, error) {
	counts := m.counts
	for i := range counts {
		counts[i] = 0
	}
	m.Index.Counts(m.Seqs[q], counts)
	counts[q] = 0

	qlen := m.Lengths[q]
	queue := Rank(counts, qlen, m.Lengths)
	res := Result{Candidates: queue.Len()}

	// one mismatch removes up to k shared fragments
	divergent := qlen - 2*m.Index.K() + 1

	matched := make(map[int]struct{})
	var failSim float64
	st := m.Stats

	for {
		c, ok := queue.Next()
		if !ok {
			break
		}
		k := c.Index
		if _, seen := matched[k]; seen {
			continue
		}

		res.Tries++
		d, err := m.Distance(q, k)
		if err != nil {
			return Result{}, fmt.Errorf("potentials of %d: %w", q, err)
		}

		sim := -c.Score
		if d <= m.Threshold {
			res.Matched = append(res.Matched, k)
			res.Distances = append(res.Distances, d)
			res.Fails = 0

			if owned != nil {
				for _, x := range owned(k) {
					matched[x] = struct{}{}
				}
			}
			if st != nil {
				if sim < st.MinAccepted {
					st.MinAccepted = sim
				}
				st.Accepted++
			}
			continue
		}

		if res.Fails == 0 {
			failSim = sim
		}
		res.Fails++

		if counts[k] <= divergent {
			if res.Fails > m.Params.FailLimit {
				break
			}
			if m.adaptiveBreak(res.Fails, sim) {
				break
			}
		}
	}

	if st != nil {
		st.FailSum += failSim
		st.FailSamples++
	}
	return res, nil
}

func (m *Matcher) adaptiveBreak(fails int, sim float64) bool {
	st := m.Stats
	p := m.Params
	if !p.Adaptive || st == nil || fails <= 1 {
		return false
	}
	if st.Accepted <= p.AdaptiveMinSamples || st.FailSamples <= p.AdaptiveMinSamples || st.FailSamples == 0 {
		return false
	}
	meanFail := st.FailSum / float64(st.FailSamples)
	return sim < p.AdaptiveFactor*st.MinAccepted && sim < (meanFail+st.MinAccepted)/2
}

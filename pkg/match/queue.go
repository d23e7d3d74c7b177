package match

import "container/heap"

// Candidate is a ranked candidate: lower Score pops first, ties by Index.
type Candidate struct {
	Score float64
	Index int
}

// Queue is a min-heap of candidates.
type Queue []Candidate

func (q Queue) Len() int { return len(q) }

func (q Queue) Less(i, j int) bool {
	if q[i].Score != q[j].Score {
		return q[i].Score < q[j].Score
	}
	return q[i].Index < q[j].Index
}

func (q Queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *Queue) Push(x any) { *q = append(*q, x.(Candidate)) }

func (q *Queue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// NewQueue heapifies cands in place.
func NewQueue(cands []Candidate) *Queue {
	q := Queue(cands)
	heap.Init(&q)
	return &q
}

// Next pops the best candidate. ok is false once the queue is drained.
func (q *Queue) Next() (c Candidate, ok bool) {
	if q.Len() == 0 {
		return Candidate{}, false
	}
	return heap.Pop(q).(Candidate), true
}

// Rank scores every nonzero count as -count/min(len(query), len(candidate)).
func Rank(counts []int, qlen int, lengths []int) *Queue {
	cands := make([]Candidate, 0, 64)
	for k, c := range counts {
		if c > 0 {
			cands = append(cands, Candidate{Score: -float64(c) / float64(minLen(qlen, lengths[k])), Index: k})
		}
	}
	return NewQueue(cands)
}

func minLen(a, b int) int {
	if a <= b {
		if a == 0 {
			return 1
		}
		return a
	}
	if b == 0 {
		return 1
	}
	return b
}

package match

import (
	"fmt"

	"github.com/thebtf/otus/pkg/distance"
	"github.com/thebtf/otus/pkg/kmer"
)

// DefaultMatesFailLimit is the fail streak that ends a Mates scan.
const DefaultMatesFailLimit = 30

// Mates scans the indexed set for neighbours of an arbitrary query. The scan
// stops after failLimit consecutive rejections, or once limit matches were
// accepted when limit > 0. Indexed sequences identical to the query are
// candidates like any other. A negative or NaN distance aborts the scan.
func Mates(query string, idx *kmer.Index, lengths []int, threshold float64,
	dist func(j int) (float64, error), limit, failLimit int) (Result, error) {
	if failLimit <= 0 {
		failLimit = DefaultMatesFailLimit
	}

	counts := make([]int, len(lengths))
	idx.Counts(query, counts)
	queue := Rank(counts, len(query), lengths)
	res := Result{Candidates: queue.Len()}

	for {
		if limit > 0 && len(res.Matched) >= limit {
			break
		}
		c, ok := queue.Next()
		if !ok {
			break
		}

		res.Tries++
		d, err := dist(c.Index)
		if err != nil {
			return Result{}, err
		}
		if err := distance.Validate(d); err != nil {
			return Result{}, fmt.Errorf("distance(query, %d): %w", c.Index, err)
		}
		if d <= threshold {
			res.Matched = append(res.Matched, c.Index)
			res.Distances = append(res.Distances, d)
			res.Fails = 0
			continue
		}
		res.Fails++
		if res.Fails > failLimit {
			break
		}
	}
	return res, nil
}

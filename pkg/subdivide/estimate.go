package subdivide

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/thebtf/otus/pkg/distance"
)

// EstimateParams holds the tuned constants of threshold estimation.
type EstimateParams struct {
	Samples    int     // random pairs whose distance is evaluated
	SubSample  int     // pairs drawn from the samples per round
	Rounds     int     // resampling rounds
	Percentile float64 // percentile of the per-round solutions that is kept
	Divisor    float64 // the kept solution is divided by this
	Levels     int     // terms of the geometric size-decay model
}

// DefaultEstimateParams returns the standard estimation constants.
func DefaultEstimateParams() EstimateParams {
	return EstimateParams{
		Samples:    4000,
		SubSample:  2000,
		Rounds:     40,
		Percentile: 0.9,
		Divisor:    3,
		Levels:     50,
	}
}

func nPairs(n int) float64 {
	return float64(n) * float64(n-1) / 2
}

// pairFraction is the fraction of all pairs expected to fall inside a cluster
// when clusters sizes decay geometrically from target by q.
func pairFraction(n, target int, q float64, levels int) float64 {
	var within float64
	for i := 0; i < levels; i++ {
		within += nPairs(int(float64(target) * math.Pow(q, float64(i))))
	}
	return within / nPairs(n)
}

// EstimateThreshold picks a threshold expected to split n sequences into groups
// near target in size. Random pairs are drawn from rng and their distances
// evaluated with up to workers goroutines. ok is false when n is already close to
// the target, in which case no threshold is usable.
func EstimateThreshold(ctx context.Context, n, target int, dist distance.Func, rng *rand.Rand, p EstimateParams, workers int) (th float64, ok bool, err error) {
	if n < 2 || target <= 0 {
		return 0, false, nil
	}
	ratio := float64(n)/float64(target) - 0.5
	if ratio <= 0 {
		return 0, false, nil
	}
	q := 1 - 1/ratio
	if q <= 0 {
		return 0, false, nil
	}
	if p.Samples <= 0 || p.Rounds <= 0 {
		return 0, false, nil
	}

	type pair struct{ a, b int }
	pairs := make([]pair, p.Samples)
	for k := range pairs {
		a := rng.IntN(n)
		b := rng.IntN(n - 1)
		if b >= a {
			b++
		}
		pairs[k] = pair{a, b}
	}

	d := make([]float64, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for k, pr := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := dist(pr.a, pr.b)
			if err != nil {
				return err
			}
			if err := distance.Validate(v); err != nil {
				return err
			}
			d[k] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, false, err
	}

	frac := pairFraction(n, target, q, p.Levels)

	sub := p.SubSample
	if sub <= 0 || sub > len(d) {
		sub = len(d)
	}
	sols := make([]float64, p.Rounds)
	work := make([]float64, len(d))
	for r := range sols {
		copy(work, d)
		// partial Fisher-Yates: the first sub entries are a sample without replacement
		for i := 0; i < sub; i++ {
			j := i + rng.IntN(len(work)-i)
			work[i], work[j] = work[j], work[i]
		}
		s := work[:sub]
		sort.Float64s(s)
		sols[r] = s[quantileIndex(frac, sub)]
	}
	sort.Float64s(sols)
	sol := sols[quantileIndex(p.Percentile, len(sols))]

	div := p.Divisor
	if div <= 0 {
		div = 1
	}
	return sol / div, true, nil
}

func quantileIndex(f float64, n int) int {
	i := int(f * float64(n))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

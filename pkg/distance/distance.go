// Package distance defines the pairwise distance contract used by the clustering
// engine, together with validation, caching and alignment-backed implementations.
package distance

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrInvalidDistance is returned when an oracle reports a negative or NaN distance.
var ErrInvalidDistance = errors.New("invalid distance")

// Func returns the distance between sequences i and j. Implementations must be
// symmetric, deterministic, return 0 for i == j and be safe for concurrent use.
type Func func(i, j int) (float64, error)

// QueryFunc returns the distance between an arbitrary query and indexed sequence j.
type QueryFunc func(query string, j int) (float64, error)

// Validate checks a single distance value.
func Validate(d float64) error {
	if math.IsNaN(d) || d < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDistance, d)
	}
	return nil
}

// Checked wraps f so that negative or NaN results fail fast.
func Checked(f Func) Func {
	return func(i, j int) (float64, error) {
		d, err := f(i, j)
		if err != nil {
			return 0, err
		}
		if err := Validate(d); err != nil {
			return 0, fmt.Errorf("distance(%d, %d): %w", i, j, err)
		}
		return d, nil
	}
}

// Subset maps local indices into ids before calling f.
func Subset(f Func, ids []int) Func {
	return func(i, j int) (float64, error) {
		return f(ids[i], ids[j])
	}
}

// Cache memoizes a Func. Safe for concurrent use.
type Cache struct {
	f  Func
	mu sync.RWMutex
	m  map[[2]int]float64
}

// NewCache creates a cache in front of f.
func NewCache(f Func) *Cache {
	return &Cache{f: f, m: make(map[[2]int]float64)}
}

// Distance returns the memoized distance, computing it on a miss.
func (c *Cache) Distance(i, j int) (float64, error) {
	if i > j {
		i, j = j, i
	}
	key := [2]int{i, j}

	c.mu.RLock()
	d, ok := c.m[key]
	c.mu.RUnlock()
	if ok {
		return d, nil
	}

	d, err := c.f(i, j)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.m[key] = d
	c.mu.Unlock()
	return d, nil
}

// Len returns the number of cached pairs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// MaxCorrected caps the Jukes-Cantor distance for saturated divergences.
const MaxCorrected = 5.0

// JukesCantor converts a raw divergence p into the Jukes-Cantor corrected distance.
func JukesCantor(p float64) float64 {
	if p <= 0 {
		return 0
	}
	x := 1 - 4*p/3
	if x <= 0 {
		return MaxCorrected
	}
	return math.Min(-0.75*math.Log(x), MaxCorrected)
}

// Hamming returns a p-distance oracle over seqs: mismatching positions plus the
// length difference, divided by the longer length. Intended for pre-aligned input.
func Hamming(seqs []string) Func {
	return func(i, j int) (float64, error) {
		return pDistance(seqs[i], seqs[j]), nil
	}
}

// HammingQuery is Hamming for a query sequence outside seqs.
func HammingQuery(seqs []string) QueryFunc {
	return func(query string, j int) (float64, error) {
		return pDistance(query, seqs[j]), nil
	}
}

func pDistance(a, b string) float64 {
	n, m := len(a), len(b)
	if n > m {
		a, b = b, a
		n, m = m, n
	}
	if m == 0 {
		return 0
	}
	diff := m - n
	for k := 0; k < n; k++ {
		if a[k] != b[k] {
			diff++
		}
	}
	return float64(diff) / float64(m)
}

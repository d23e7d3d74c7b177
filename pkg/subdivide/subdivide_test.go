package subdivide

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/otus/pkg/distance"
)

const bases = "ACGT"

func mutate(rng *rand.Rand, s string, rate float64) string {
	b := []byte(s)
	for i := range b {
		if rng.Float64() < rate {
			b[i] = bases[rng.IntN(4)]
		}
	}
	return string(b)
}

// hierarchy generates clades within clades: each root spawns children, each
// child spawns leaves, all interleaved.
func hierarchy(seed uint64, roots, children, leaves, length int) []string {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	var out []string
	for r := 0; r < roots; r++ {
		var b strings.Builder
		for i := 0; i < length; i++ {
			b.WriteByte(bases[rng.IntN(4)])
		}
		root := b.String()
		for c := 0; c < children; c++ {
			child := mutate(rng, root, 0.08)
			for l := 0; l < leaves; l++ {
				out = append(out, mutate(rng, child, 0.01))
			}
		}
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func TestEstimateThreshold_NearTargetIsUnusable(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	dist := func(i, j int) (float64, error) { return 0.1, nil }

	_, ok, err := EstimateThreshold(context.Background(), 60, 50, dist, rng, DefaultEstimateParams(), 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = EstimateThreshold(context.Background(), 1, 50, dist, rng, DefaultEstimateParams(), 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEstimateThreshold_Deterministic(t *testing.T) {
	seqs := hierarchy(3, 4, 4, 20, 100)
	dist := distance.Hamming(seqs)
	p := DefaultEstimateParams()
	p.Samples = 800
	p.SubSample = 400

	a, ok, err := EstimateThreshold(context.Background(), len(seqs), 20, dist, rand.New(rand.NewPCG(9, 9)), p, 4)
	require.NoError(t, err)
	require.True(t, ok)
	b, _, err := EstimateThreshold(context.Background(), len(seqs), 20, dist, rand.New(rand.NewPCG(9, 9)), p, 1)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Greater(t, a, 0.0)
	assert.Less(t, a, 1.0)
}

func TestEstimateThreshold_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	dist := func(i, j int) (float64, error) { return 0, boom }

	_, _, err := EstimateThreshold(context.Background(), 500, 10, dist, rand.New(rand.NewPCG(1, 1)), DefaultEstimateParams(), 2)
	assert.ErrorIs(t, err, boom)

	nan := func(i, j int) (float64, error) { return -1, nil }
	_, _, err = EstimateThreshold(context.Background(), 500, 10, nan, rand.New(rand.NewPCG(1, 1)), DefaultEstimateParams(), 2)
	assert.ErrorIs(t, err, distance.ErrInvalidDistance)
}

func TestPairFraction(t *testing.T) {
	// a single term of target size
	assert.InDelta(t, nPairs(10)/nPairs(100), pairFraction(100, 10, 0.5, 1), 1e-12)
	assert.Greater(t, pairFraction(100, 10, 0.9, 50), pairFraction(100, 10, 0.5, 50))
}

func TestBreakdown_FitsUnsplit(t *testing.T) {
	seqs := []string{"ACGT", "ACGA", "TTTT"}
	levels, err := Breakdown(context.Background(), seqs, 5, distance.Hamming(seqs), DefaultOptions())
	require.NoError(t, err)

	require.Len(t, levels, 1)
	assert.Empty(t, levels[0].Path)
	assert.Equal(t, [][]int{{0, 1, 2}}, levels[0].Groups)
	assert.Equal(t, 1.0, levels[0].Threshold())
}

func TestBreakdown_InvalidMaxClade(t *testing.T) {
	_, err := Breakdown(context.Background(), []string{"A"}, 0, distance.Hamming(nil), DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidMaxClade)
}

func TestBreakdown_IdenticalSequencesEndUnresolved(t *testing.T) {
	s := "ACGTTGCAACGTTGCAACGTTGCAACGT"
	seqs := make([]string, 40)
	for i := range seqs {
		seqs[i] = s
	}

	levels, err := Breakdown(context.Background(), seqs, 10, distance.Hamming(seqs), DefaultOptions())
	require.NoError(t, err)

	var unresolved []Level
	for _, lv := range levels {
		if lv.Unresolved {
			unresolved = append(unresolved, lv)
		}
	}
	require.Len(t, unresolved, 1)
	assert.Len(t, unresolved[0].Groups[0], 40)
	assertCovers(t, levels, len(seqs))
}

func TestBreakdown_ExplicitThresholds(t *testing.T) {
	seqs := hierarchy(5, 3, 3, 10, 80)
	opts := DefaultOptions()
	opts.Thresholds = []float64{0.3, 0.05}

	levels, err := Breakdown(context.Background(), seqs, 12, distance.Hamming(seqs), opts)
	require.NoError(t, err)

	require.NotEmpty(t, levels)
	assert.Equal(t, []int{0}, levels[0].Path)
	assert.Equal(t, []float64{0.3}, levels[0].Thresholds)
	for _, lv := range levels {
		if len(lv.Thresholds) >= 2 {
			assert.Equal(t, 0.05, lv.Thresholds[1])
		}
	}
	assertCovers(t, levels, len(seqs))
	assertBounded(t, levels, 12)
}

func TestBreakdown_NestedLevelsReclusterSubsets(t *testing.T) {
	seqs := hierarchy(5, 3, 3, 10, 80)
	opts := DefaultOptions()
	opts.Thresholds = []float64{0.3, 0.05}

	levels, err := Breakdown(context.Background(), seqs, 3, distance.Hamming(seqs), opts)
	require.NoError(t, err)

	deepest := 0
	for _, lv := range levels {
		deepest = max(deepest, len(lv.Thresholds))
	}
	assert.GreaterOrEqual(t, deepest, 2)
	assertCovers(t, levels, len(seqs))
	assertBounded(t, levels, 3)
}

func TestBreakdown_RejectsUnhalvedThresholds(t *testing.T) {
	seqs := hierarchy(5, 2, 2, 5, 40)
	opts := DefaultOptions()
	opts.Thresholds = []float64{0.05, 0.2}

	_, err := Breakdown(context.Background(), seqs, 3, distance.Hamming(seqs), opts)
	assert.ErrorIs(t, err, ErrInvalidThresholds)
}

func TestCheckThresholds(t *testing.T) {
	assert.NoError(t, CheckThresholds(nil))
	assert.NoError(t, CheckThresholds([]float64{0.1, 0.05, 0.025}))
	assert.ErrorIs(t, CheckThresholds([]float64{0.1, 0.06}), ErrInvalidThresholds)
	assert.ErrorIs(t, CheckThresholds([]float64{-0.1}), ErrInvalidThresholds)
	assert.ErrorIs(t, CheckThresholds([]float64{1.5}), ErrInvalidThresholds)
}

func TestFloor3(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.58 / 2, 0.29},
		{0.3, 0.3},
		{0.0299999, 0.029},
		{0.1234, 0.123},
		{0.0009, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, floor3(tt.in), "floor3(%v)", tt.in)
	}
}

func TestBreakdown_ThousandSequences(t *testing.T) {
	seqs := hierarchy(17, 4, 5, 50, 150)
	require.Len(t, seqs, 1000)

	levels, err := Breakdown(context.Background(), seqs, 50, distance.Hamming(seqs), DefaultOptions())
	require.NoError(t, err)

	assertCovers(t, levels, len(seqs))
	assertBounded(t, levels, 50)

	for _, lv := range levels {
		for i := 1; i < len(lv.Thresholds); i++ {
			assert.LessOrEqual(t, lv.Thresholds[i], lv.Thresholds[i-1]/2,
				"path %v thresholds %v", lv.Path, lv.Thresholds)
		}
	}

	again, err := Breakdown(context.Background(), seqs, 50, distance.Hamming(seqs), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, levels, again)
}

func TestBreakdown_Cancelled(t *testing.T) {
	seqs := hierarchy(2, 2, 2, 10, 60)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	levels, err := Breakdown(ctx, seqs, 5, distance.Hamming(seqs), DefaultOptions())
	assert.Nil(t, levels)
	assert.ErrorIs(t, err, context.Canceled)
}

func assertCovers(t *testing.T, levels []Level, n int) {
	t.Helper()
	seen := make(map[int]int)
	for _, lv := range levels {
		for _, s := range lv.Singles {
			seen[s]++
		}
		for _, p := range lv.Pairs {
			seen[p.I]++
			seen[p.J]++
		}
		for _, g := range lv.Groups {
			for _, x := range g {
				seen[x]++
			}
		}
	}
	require.Len(t, seen, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, 1, seen[i], "index %d", i)
	}
}

func assertBounded(t *testing.T, levels []Level, maxClade int) {
	t.Helper()
	for _, lv := range levels {
		if lv.Unresolved {
			continue
		}
		for _, g := range lv.Groups {
			assert.LessOrEqual(t, len(g), maxClade, "path %v", lv.Path)
		}
	}
}

package cluster

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/otus/pkg/distance"
)

func assertPartition(t *testing.T, part *Partition, n int) {
	t.Helper()
	seen := make(map[int]int)
	for _, s := range part.Singles {
		seen[s]++
	}
	for _, p := range part.Pairs {
		seen[p.I]++
		seen[p.J]++
	}
	for _, g := range part.Groups {
		for _, x := range g {
			seen[x]++
		}
	}
	require.Len(t, seen, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, 1, seen[i], "index %d", i)
	}
}

func TestDeclutter_PairAndSingle(t *testing.T) {
	seqs := []string{
		"AAAAAAAAAAAAAAA",
		"AAAAAAAAAAAAAAA",
		"CCCCCCCCCCCCCCC",
	}

	part, err := Declutter(context.Background(), seqs, 0, distance.Hamming(seqs), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []int{2}, part.Singles)
	assert.Equal(t, []Pair{{I: 0, J: 1, Distance: 0}}, part.Pairs)
	assert.Empty(t, part.Groups)
}

func TestDeclutter_MutuallyCloseTripleIsGroup(t *testing.T) {
	s := "ACGTTGCAACGTTGCAACGT"
	seqs := []string{s, s, s}

	part, err := Declutter(context.Background(), seqs, 0, distance.Hamming(seqs), DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, part.Singles)
	assert.Empty(t, part.Pairs)
	assert.Equal(t, [][]int{{0, 1, 2}}, part.Groups)
}

func TestDeclutter_GroupDissolvesExistingPair(t *testing.T) {
	base := "GGATCACAGTCTACACTGCTCACTCCAACCCCGGCCCCTGAGTCCGAGGAGAGGGTGCTT"
	seqs := []string{
		base,
		base,
		base[:20] + strings.Repeat("T", 40),
		base[:12] + strings.Repeat("G", 48),
	}
	// 0 and 1 stop scanning at 2 before reaching 3, so they pair up;
	// 3 then finds 0 and pulls the pair into its group
	dist := matrixOracle(map[[2]int]float64{
		{0, 1}: 0,
		{0, 3}: 0,
	})
	opts := DefaultOptions()
	opts.Match.FailLimit = 0

	part, err := Declutter(context.Background(), seqs, 0, dist, opts)
	require.NoError(t, err)

	assert.Empty(t, part.Pairs, "pair (0,1) must be absorbed")
	assert.Equal(t, []int{2}, part.Singles)
	assert.Equal(t, [][]int{{0, 1, 3}}, part.Groups)
	assert.Equal(t, 1, part.Stats.RawGroups)
}

func TestDeclutter_NonMutualCandidateFormsGroup(t *testing.T) {
	s := "ACGTTGCAACGTTGCAACGT"
	seqs := []string{s, s, s}
	// 0 sees only 1, but 1 also sees 2
	dist := matrixOracle(map[[2]int]float64{
		{0, 1}: 0,
		{1, 2}: 0,
	})

	part, err := Declutter(context.Background(), seqs, 0, dist, DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, part.Pairs)
	assert.Equal(t, [][]int{{0, 1, 2}}, part.Groups)
}

func TestDeclutter_ThresholdControlsMembership(t *testing.T) {
	a := "ACGTTGCAACGTTGCAACGT"
	seqs := []string{a, a, a}
	dist := matrixOracle(map[[2]int]float64{
		{0, 1}: 0.1,
		{1, 2}: 0.1,
		{0, 2}: 0.5,
	})
	opts := DefaultOptions()

	part, err := Declutter(context.Background(), seqs, 0.05, dist, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, part.Singles)

	part, err = Declutter(context.Background(), seqs, 0.2, dist, opts)
	require.NoError(t, err)
	assert.Empty(t, part.Singles)
	assert.Equal(t, [][]int{{0, 1, 2}}, part.Groups)
}

func TestDeclutter_PartitionOnFamilies(t *testing.T) {
	seqs := families(7, 12, 15, 120, 0.02)
	dist := distance.Hamming(seqs)

	for _, th := range []float64{0, 0.02, 0.05, 0.2} {
		part, err := Declutter(context.Background(), seqs, th, dist, DefaultOptions())
		require.NoError(t, err)
		assertPartition(t, part, len(seqs))

		for _, p := range part.Pairs {
			d, err := dist(p.I, p.J)
			require.NoError(t, err)
			assert.Equal(t, d, p.Distance)
			assert.LessOrEqual(t, p.Distance, th)
		}
		for k := 1; k < len(part.Groups); k++ {
			assert.LessOrEqual(t, len(part.Groups[k-1]), len(part.Groups[k]))
		}
	}
}

func TestDeclutter_Idempotent(t *testing.T) {
	seqs := families(11, 8, 10, 100, 0.03)
	dist := distance.Hamming(seqs)

	a, err := Declutter(context.Background(), seqs, 0.05, dist, DefaultOptions())
	require.NoError(t, err)
	b, err := Declutter(context.Background(), seqs, 0.05, dist, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, a.Singles, b.Singles)
	assert.Equal(t, a.Pairs, b.Pairs)
	assert.Equal(t, a.Groups, b.Groups)
}

func TestDeclutter_InvalidDistanceFailsFast(t *testing.T) {
	s := "ACGTTGCAACGTTGCAACGT"
	seqs := []string{s, s}
	dist := func(i, j int) (float64, error) { return -0.5, nil }

	part, err := Declutter(context.Background(), seqs, 0.1, dist, DefaultOptions())
	assert.Nil(t, part)
	assert.ErrorIs(t, err, distance.ErrInvalidDistance)
}

func TestDeclutter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Declutter(ctx, []string{strings.Repeat("A", 20)}, 0, distance.Hamming(nil), DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeclutter_Empty(t *testing.T) {
	part, err := Declutter(context.Background(), nil, 0.1, distance.Hamming(nil), DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, part.Singles)
	assert.Empty(t, part.Pairs)
	assert.Empty(t, part.Groups)
}

func TestCheckPartition(t *testing.T) {
	tests := []struct {
		name    string
		part    *Partition
		n       int
		wantErr bool
	}{
		{name: "valid", part: &Partition{Singles: []int{0}, Pairs: []Pair{{I: 1, J: 2}}, Groups: [][]int{{3, 4}}}, n: 5},
		{name: "duplicate", part: &Partition{Singles: []int{0}, Groups: [][]int{{0, 1}}}, n: 2, wantErr: true},
		{name: "missing", part: &Partition{Singles: []int{0}}, n: 2, wantErr: true},
		{name: "out of range", part: &Partition{Singles: []int{0, 5}}, n: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkPartition(tt.part, tt.n)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCorruptState)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

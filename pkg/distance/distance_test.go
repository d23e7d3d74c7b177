package distance

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		d       float64
		wantErr bool
	}{
		{name: "zero", d: 0},
		{name: "positive", d: 0.25},
		{name: "negative", d: -0.1, wantErr: true},
		{name: "nan", d: math.NaN(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.d)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDistance)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChecked(t *testing.T) {
	bad := Checked(func(i, j int) (float64, error) { return -1, nil })
	_, err := bad(0, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDistance)
	assert.Contains(t, err.Error(), "distance(0, 1)")

	boom := errors.New("boom")
	failing := Checked(func(i, j int) (float64, error) { return 0, boom })
	_, err = failing(0, 1)
	assert.ErrorIs(t, err, boom)

	ok := Checked(func(i, j int) (float64, error) { return 0.5, nil })
	d, err := ok(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.5, d)
}

func TestSubset(t *testing.T) {
	var got [2]int
	f := Subset(func(i, j int) (float64, error) {
		got = [2]int{i, j}
		return 0, nil
	}, []int{7, 3, 9})

	_, _ = f(0, 2)
	assert.Equal(t, [2]int{7, 9}, got)
}

func TestCache(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	c := NewCache(func(i, j int) (float64, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return float64(i + j), nil
	})

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := c.Distance(2, 1)
			assert.NoError(t, err)
			assert.Equal(t, 3.0, d)
		}()
	}
	wg.Wait()

	d, err := c.Distance(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3.0, d)
	assert.Equal(t, 1, c.Len(), "(1,2) and (2,1) share one entry")
	assert.GreaterOrEqual(t, calls, 1)
}

func TestJukesCantor(t *testing.T) {
	assert.Equal(t, 0.0, JukesCantor(0))
	assert.Equal(t, 0.0, JukesCantor(-1))
	assert.InDelta(t, 0.1073, JukesCantor(0.1), 1e-4)
	assert.Equal(t, MaxCorrected, JukesCantor(0.75))
	assert.Equal(t, MaxCorrected, JukesCantor(0.9))
	assert.Greater(t, JukesCantor(0.2), JukesCantor(0.1))
}

func TestHamming(t *testing.T) {
	f := Hamming([]string{"ACGTACGTAC", "ACGTACGTAA", "ACGTA", ""})

	tests := []struct {
		name     string
		i, j     int
		expected float64
	}{
		{name: "self", i: 0, j: 0, expected: 0},
		{name: "one mismatch", i: 0, j: 1, expected: 0.1},
		{name: "symmetric", i: 1, j: 0, expected: 0.1},
		{name: "length difference", i: 0, j: 2, expected: 0.5},
		{name: "empty", i: 3, j: 3, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f(tt.i, tt.j)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, d, 1e-9)
		})
	}
}

func TestHammingQuery(t *testing.T) {
	q := HammingQuery([]string{"ACGTACGTAC", "TTTT"})

	d, err := q("ACGTACGTAA", 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, d, 1e-9)

	d, err = q("TTTT", 1)
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestDivergence_EmptyInputs(t *testing.T) {
	d, err := Divergence(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)

	d, err = Divergence([]byte("ACGT"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)
}

func TestAligner(t *testing.T) {
	seqs := []string{
		"ACGTACGTTGCAACGTACGTTGCA",
		"ACGTACGTTGCAACGTACGTTGCA",
		"ACGTACGTTGCAACCTACGTTGCA",
	}
	a := NewAligner(seqs, true)

	d, err := a.Distance(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)

	d, err = a.Distance(0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, d, 1e-9)

	d, err = a.Distance(0, 2)
	require.NoError(t, err)
	assert.Greater(t, d, 0.0)
	assert.Less(t, d, 0.2)

	q, err := a.QueryDistance(seqs[2], 0)
	require.NoError(t, err)
	assert.InDelta(t, d, q, 1e-9)
}

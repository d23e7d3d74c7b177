package cluster

import (
	"math/rand/v2"
	"strings"
)

const bases = "ACGT"

// families generates nFam ancestral sequences and perFam mutated copies of each,
// interleaved so that family members are not adjacent.
func families(seed uint64, nFam, perFam, length int, rate float64) []string {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	anc := make([]string, nFam)
	for f := range anc {
		var b strings.Builder
		for i := 0; i < length; i++ {
			b.WriteByte(bases[rng.IntN(4)])
		}
		anc[f] = b.String()
	}

	seqs := make([]string, 0, nFam*perFam)
	for c := 0; c < perFam; c++ {
		for f := 0; f < nFam; f++ {
			s := []byte(anc[f])
			for i := range s {
				if rng.Float64() < rate {
					s[i] = bases[rng.IntN(4)]
				}
			}
			seqs = append(seqs, string(s))
		}
	}
	return seqs
}

// matrixOracle serves distances from a symmetric table, defaulting to 1.
func matrixOracle(pairs map[[2]int]float64) func(i, j int) (float64, error) {
	return func(i, j int) (float64, error) {
		if i == j {
			return 0, nil
		}
		if i > j {
			i, j = j, i
		}
		if d, ok := pairs[[2]int{i, j}]; ok {
			return d, nil
		}
		return 1, nil
	}
}

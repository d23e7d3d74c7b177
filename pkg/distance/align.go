package distance

import (
	"fmt"

	"github.com/shenwei356/wfa"
)

var globalAlignment = &wfa.Options{GlobalAlignment: true}

// Divergence globally aligns a and b with the wavefront aligner and returns the
// fraction of aligned columns that are not matches.
func Divergence(a, b []byte) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		if len(a) == len(b) {
			return 0, nil
		}
		return 1, nil
	}

	algn := wfa.New(wfa.DefaultPenalties, globalAlignment)
	defer wfa.RecycleAligner(algn)

	res, err := algn.Align(a, b)
	if err != nil {
		return 0, fmt.Errorf("align: %w", err)
	}
	defer wfa.RecycleAlignmentResult(res)

	alen := int(res.AlignLen)
	if alen == 0 {
		return 1, nil
	}
	return 1 - float64(res.Matches)/float64(alen), nil
}

// Aligner is an alignment-backed oracle over a fixed sequence set.
type Aligner struct {
	seqs       [][]byte
	correction bool
}

// NewAligner creates an oracle over seqs. With correction the Jukes-Cantor
// distance is reported, otherwise the raw divergence.
func NewAligner(seqs []string, correction bool) *Aligner {
	bs := make([][]byte, len(seqs))
	for i, s := range seqs {
		bs[i] = []byte(s)
	}
	return &Aligner{seqs: bs, correction: correction}
}

// Distance implements Func.
func (a *Aligner) Distance(i, j int) (float64, error) {
	if i == j {
		return 0, nil
	}
	return a.report(a.seqs[i], a.seqs[j])
}

// QueryDistance implements QueryFunc.
func (a *Aligner) QueryDistance(query string, j int) (float64, error) {
	return a.report([]byte(query), a.seqs[j])
}

func (a *Aligner) report(x, y []byte) (float64, error) {
	p, err := Divergence(x, y)
	if err != nil {
		return 0, err
	}
	if a.correction {
		return JukesCantor(p), nil
	}
	return p, nil
}

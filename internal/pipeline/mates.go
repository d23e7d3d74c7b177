package pipeline

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/otus/internal/fasta"
	"github.com/thebtf/otus/pkg/kmer"
	"github.com/thebtf/otus/pkg/match"
)

// Mate is a reference record within the threshold of a query.
type Mate struct {
	Query     string  `json:"query"`
	Reference string  `json:"reference"`
	Distance  float64 `json:"distance"`
}

// Mates finds, for every query, the reference records within threshold.
// limit > 0 caps the matches per query. Output follows query order, then scan order.
func (p *Pipeline) Mates(ctx context.Context, queries, refs []fasta.Record, threshold float64, limit int) ([]Mate, error) {
	refIDs, refSeqs := fasta.Split(refs)
	idx := kmer.BuildWith(refSeqs, p.cfg.K, 1)
	lengths := make([]int, len(refSeqs))
	for i, s := range refSeqs {
		lengths[i] = len(s)
	}
	qd := p.queryOracle(refSeqs)

	found := make([][]Mate, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	if p.cfg.Workers > 0 {
		g.SetLimit(p.cfg.Workers)
	}
	for i, q := range queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := match.Mates(q.Seq, idx, lengths, threshold, func(j int) (float64, error) {
				return qd(q.Seq, j)
			}, limit, match.DefaultMatesFailLimit)
			if err != nil {
				return err
			}
			for k, j := range res.Matched {
				found[i] = append(found[i], Mate{Query: q.ID, Reference: refIDs[j], Distance: res.Distances[k]})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Mate
	for _, m := range found {
		out = append(out, m...)
	}
	log.Info().
		Str("queries", humanize.Comma(int64(len(queries)))).
		Str("references", humanize.Comma(int64(len(refs)))).
		Str("mates", humanize.Comma(int64(len(out)))).
		Msg("Mate search complete")
	return out, nil
}

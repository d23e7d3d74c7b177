// Package pipeline runs the load, collapse, subdivide and render steps of a
// clustering job and optionally records the outcome.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/otus/internal/config"
	"github.com/thebtf/otus/internal/db/gorm"
	"github.com/thebtf/otus/internal/fasta"
	"github.com/thebtf/otus/pkg/distance"
	"github.com/thebtf/otus/pkg/newick"
	"github.com/thebtf/otus/pkg/subdivide"
)

// Cluster is one rendered cluster. Leaves hold record indices and Members the
// matching record ids.
type Cluster struct {
	newick.Tree
	Members []string `json:"members"`
}

// Result is the outcome of one clustering job.
type Result struct {
	RunID     string        `json:"run_id,omitempty"`
	Input     string        `json:"input"`
	Sequences int           `json:"sequences"`
	Unique    int           `json:"unique"`
	Clusters  []Cluster     `json:"clusters"`
	Levels    int           `json:"levels"`
	Duration  time.Duration `json:"duration_ns"`
}

// Unresolved counts clusters whose size bound could not be met.
func (r *Result) Unresolved() int {
	n := 0
	for _, c := range r.Clusters {
		if c.Unresolved {
			n++
		}
	}
	return n
}

// Pipeline executes clustering jobs with one configuration.
type Pipeline struct {
	cfg  *config.Config
	runs *gorm.RunStore
}

// New creates a pipeline. runs may be nil to skip persistence.
func New(cfg *config.Config, runs *gorm.RunStore) *Pipeline {
	return &Pipeline{cfg: cfg, runs: runs}
}

// ClusterFile loads input and clusters its records.
func (p *Pipeline) ClusterFile(ctx context.Context, input string) (*Result, error) {
	records, err := fasta.Load(input)
	if err != nil {
		return nil, err
	}
	return p.Cluster(ctx, input, records)
}

// Cluster subdivides records into clusters of at most MaxClade leaves.
func (p *Pipeline) Cluster(ctx context.Context, input string, records []fasta.Record) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	start := time.Now()

	ids, seqs := fasta.Split(records)
	col := identity(len(seqs))
	if p.cfg.Dedupe {
		col = Collapse(seqs)
	}
	uniq := col.Sequences(seqs)

	log.Info().
		Str("input", input).
		Str("sequences", humanize.Comma(int64(len(seqs)))).
		Str("unique", humanize.Comma(int64(len(uniq)))).
		Int("max_clade", p.cfg.MaxClade).
		Str("distance", p.cfg.Distance).
		Msg("Clustering")

	cache := distance.NewCache(p.oracle(uniq))
	levels, err := subdivide.Breakdown(ctx, uniq, p.cfg.MaxClade, cache.Distance, p.cfg.BreakdownOptions())
	if err != nil {
		return nil, p.fail(ctx, input, len(seqs), len(uniq), start, err)
	}

	trees, err := newick.Trees(levels, col.Labeler(ids))
	if err != nil {
		return nil, p.fail(ctx, input, len(seqs), len(uniq), start, err)
	}

	res := &Result{
		Input:     input,
		Sequences: len(seqs),
		Unique:    len(uniq),
		Levels:    len(levels),
		Clusters:  make([]Cluster, len(trees)),
	}
	for i, t := range trees {
		idx := col.Expand(t.Leaves)
		members := make([]string, len(idx))
		for j, x := range idx {
			members[j] = ids[x]
		}
		t.Leaves = idx
		t.Size = len(idx)
		res.Clusters[i] = Cluster{Tree: t, Members: members}
	}
	res.Duration = time.Since(start)

	log.Info().
		Str("clusters", humanize.Comma(int64(len(res.Clusters)))).
		Int("unresolved", res.Unresolved()).
		Int("levels", res.Levels).
		Str("distances", humanize.Comma(int64(cache.Len()))).
		Dur("took", res.Duration).
		Msg("Clustering complete")

	if p.runs != nil {
		id, err := p.runs.SaveRun(ctx, p.runRecord(res, start), toRows(res.Clusters))
		if err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
		res.RunID = id
	}
	return res, nil
}

func (p *Pipeline) oracle(seqs []string) distance.Func {
	if p.cfg.Distance == "hamming" {
		return distance.Hamming(seqs)
	}
	return distance.NewAligner(seqs, p.cfg.Correction).Distance
}

func (p *Pipeline) queryOracle(seqs []string) distance.QueryFunc {
	if p.cfg.Distance == "hamming" {
		return distance.HammingQuery(seqs)
	}
	return distance.NewAligner(seqs, p.cfg.Correction).QueryDistance
}

func (p *Pipeline) runRecord(res *Result, start time.Time) *gorm.Run {
	return &gorm.Run{
		Input:          res.Input,
		Sequences:      res.Sequences,
		Unique:         res.Unique,
		MaxClade:       p.cfg.MaxClade,
		Thresholds:     gorm.JSONFloatArray(p.cfg.Thresholds),
		Distance:       p.cfg.Distance,
		Seed:           p.cfg.Seed,
		Clusters:       len(res.Clusters),
		Unresolved:     res.Unresolved(),
		Status:         "completed",
		DurationMs:     res.Duration.Milliseconds(),
		StartedAtEpoch: start.UnixMilli(),
	}
}

// fail records a failed run when a store is attached and returns err.
func (p *Pipeline) fail(ctx context.Context, input string, n, unique int, start time.Time, err error) error {
	if p.runs == nil || ctx.Err() != nil {
		return err
	}
	run := &gorm.Run{
		Input:          input,
		Sequences:      n,
		Unique:         unique,
		MaxClade:       p.cfg.MaxClade,
		Thresholds:     gorm.JSONFloatArray(p.cfg.Thresholds),
		Distance:       p.cfg.Distance,
		Seed:           p.cfg.Seed,
		Status:         "failed",
		Error:          err.Error(),
		DurationMs:     time.Since(start).Milliseconds(),
		StartedAtEpoch: start.UnixMilli(),
	}
	if _, saveErr := p.runs.SaveRun(ctx, run, nil); saveErr != nil {
		log.Warn().Err(saveErr).Msg("Failed to record failed run")
	}
	return err
}

func toRows(clusters []Cluster) []gorm.Cluster {
	rows := make([]gorm.Cluster, len(clusters))
	for i, c := range clusters {
		rows[i] = gorm.Cluster{
			Name:       c.Name,
			Size:       c.Size,
			Threshold:  c.Threshold,
			Unresolved: c.Unresolved,
			Members:    gorm.JSONIntArray(c.Leaves),
			Tree:       c.Text,
		}
	}
	return rows
}

// Package subdivide recursively re-clusters oversized groups at strictly tighter
// thresholds until every group fits under a size bound.
package subdivide

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/wyhash"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/otus/pkg/cluster"
	"github.com/thebtf/otus/pkg/distance"
)

var (
	// ErrCorruptState signals a violated subdivision invariant.
	ErrCorruptState = errors.New("corrupt subdivision state")
	// ErrInvalidMaxClade is returned for a non-positive size bound.
	ErrInvalidMaxClade = errors.New("max clade must be positive")
	// ErrInvalidThresholds is returned for explicit thresholds that leave [0, 1]
	// or exceed half of the preceding level.
	ErrInvalidThresholds = errors.New("invalid thresholds")
)

// DefaultMaxDepth bounds the recursion depth.
const DefaultMaxDepth = 32

var tracer = otel.Tracer("github.com/thebtf/otus/pkg/subdivide")

// Level is one emitted node of the hierarchy: the clustering of a group at the
// last threshold of Thresholds, located by Path. Indices are global.
type Level struct {
	Path       []int          `json:"path"`
	Thresholds []float64      `json:"thresholds"`
	Singles    []int          `json:"singles,omitempty"`
	Pairs      []cluster.Pair `json:"pairs,omitempty"`
	Groups     [][]int        `json:"groups,omitempty"`
	// Unresolved marks a group emitted as is because no tighter threshold was usable.
	Unresolved bool `json:"unresolved,omitempty"`
}

// Threshold returns the threshold of the level, 1 for the top level.
func (l Level) Threshold() float64 {
	if len(l.Thresholds) == 0 {
		return 1
	}
	return l.Thresholds[len(l.Thresholds)-1]
}

// Size returns the number of sequences in the level.
func (l Level) Size() int {
	n := len(l.Singles) + 2*len(l.Pairs)
	for _, g := range l.Groups {
		n += len(g)
	}
	return n
}

// Options configures Breakdown.
type Options struct {
	Cluster cluster.Options
	// Thresholds are explicit thresholds for the first levels; deeper levels are estimated.
	Thresholds []float64
	Estimate   EstimateParams
	Seed       uint64
	// Workers bounds concurrent work; <= 0 means unbounded.
	Workers  int
	MaxDepth int
}

// DefaultOptions returns the standard options.
func DefaultOptions() Options {
	return Options{
		Cluster:  cluster.DefaultOptions(),
		Estimate: DefaultEstimateParams(),
		Seed:     1,
		Workers:  4,
		MaxDepth: DefaultMaxDepth,
	}
}

type item struct {
	group      []int
	path       []int
	thresholds []float64
	depth      int
}

type outcome struct {
	levels   []Level
	children []item
}

type breaker struct {
	seqs     []string
	dist     distance.Func
	maxClade int
	opts     Options
}

// Breakdown clusters seqs and recursively splits every group larger than
// maxClade. Oversized groups of one level are independent and processed
// concurrently. Levels are returned ordered by path.
func Breakdown(ctx context.Context, seqs []string, maxClade int, dist distance.Func, opts Options) (levels []Level, err error) {
	if maxClade <= 0 {
		return nil, ErrInvalidMaxClade
	}
	if err := CheckThresholds(opts.Thresholds); err != nil {
		return nil, err
	}
	n := len(seqs)
	if n <= maxClade {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		lv := Level{}
		if n > 0 {
			lv.Groups = [][]int{all}
		}
		return []Level{lv}, nil
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}

	ctx, span := tracer.Start(ctx, "subdivide.Breakdown", trace.WithAttributes(
		attribute.Int("sequences", n),
		attribute.Int("max_clade", maxClade),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	b := &breaker{seqs: seqs, dist: dist, maxClade: maxClade, opts: opts}

	root := make([]int, n)
	for i := range root {
		root[i] = i
	}
	wave := []item{{group: root}}

	for len(wave) > 0 {
		results := make([]outcome, len(wave))
		g, gctx := errgroup.WithContext(ctx)
		if opts.Workers > 0 {
			g.SetLimit(opts.Workers)
		}
		for i, it := range wave {
			g.Go(func() error {
				out, err := b.split(gctx, it)
				if err != nil {
					return err
				}
				results[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var next []item
		for _, out := range results {
			levels = append(levels, out.levels...)
			next = append(next, out.children...)
		}
		wave = next
	}

	slices.SortStableFunc(levels, func(a, b Level) int { return slices.Compare(a.Path, b.Path) })
	return levels, nil
}

// split clusters one oversized group and returns its level plus the groups that
// still need splitting.
func (b *breaker) split(ctx context.Context, it item) (outcome, error) {
	ctx, span := tracer.Start(ctx, "subdivide.split", trace.WithAttributes(
		attribute.Int("size", len(it.group)),
		attribute.Int("depth", it.depth),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}

	local := distance.Subset(b.dist, it.group)
	th, ok, err := b.threshold(ctx, it, local)
	if err != nil {
		return outcome{}, err
	}
	if !ok {
		log.Info().
			Ints("path", it.path).
			Int("size", len(it.group)).
			Msg("No usable tighter threshold, emitting group unresolved")
		return outcome{levels: []Level{{
			Path:       it.path,
			Thresholds: it.thresholds,
			Groups:     [][]int{it.group},
			Unresolved: true,
		}}}, nil
	}
	span.SetAttributes(attribute.Float64("threshold", th))

	sub := make([]string, len(it.group))
	for i, x := range it.group {
		sub[i] = b.seqs[x]
	}
	part, err := cluster.Declutter(ctx, sub, th, local, b.opts.Cluster)
	if err != nil {
		return outcome{}, fmt.Errorf("declutter %d sequences at %g: %w", len(sub), th, err)
	}

	singles, pairs, groups := translate(part, it.group)

	fit := len(groups)
	for fit > 0 && len(groups[fit-1]) > b.maxClade {
		fit--
	}

	thresholds := appendFloat(it.thresholds, th)
	out := outcome{levels: []Level{{
		Path:       appendInt(it.path, 0),
		Thresholds: thresholds,
		Singles:    singles,
		Pairs:      pairs,
		Groups:     groups[:fit],
	}}}

	// children are numbered after the entries already emitted at this level
	emitted := len(singles) + len(pairs) + fit
	for k, g := range groups[fit:] {
		out.children = append(out.children, item{
			group:      g,
			path:       appendInt(it.path, emitted+k),
			thresholds: thresholds,
			depth:      it.depth + 1,
		})
	}

	log.Debug().
		Ints("path", it.path).
		Float64("threshold", th).
		Int("size", len(it.group)).
		Int("oversized", len(out.children)).
		Msg("Split group")

	return out, nil
}

// threshold returns the threshold for the next level of it: an explicit one when
// configured, otherwise an estimate capped at half the parent's threshold.
func (b *breaker) threshold(ctx context.Context, it item, dist distance.Func) (float64, bool, error) {
	level := len(it.thresholds)
	if level < len(b.opts.Thresholds) {
		return b.opts.Thresholds[level], true, nil
	}
	if it.depth >= b.opts.MaxDepth {
		return 0, false, nil
	}

	var parent float64
	hasParent := level > 0
	if hasParent {
		parent = it.thresholds[level-1]
		if parent <= 0 {
			return 0, false, nil
		}
	}

	rng := rand.New(rand.NewPCG(b.opts.Seed, wyhash.HashString(fmt.Sprint(it.path), b.opts.Seed)))
	th, ok, err := EstimateThreshold(ctx, len(it.group), b.maxClade, dist, rng, b.opts.Estimate, b.opts.Workers)
	if err != nil || !ok {
		return 0, ok, err
	}

	limit := 1.0
	if hasParent {
		limit = parent / 2
	}
	th = floor3(math.Min(th, limit))
	if th > limit {
		th = math.Max(th-0.001, 0)
	}
	if th > limit {
		return 0, false, fmt.Errorf("%w: threshold %g above half of parent %g", ErrCorruptState, th, parent)
	}
	return th, true, nil
}

// CheckThresholds verifies that explicit thresholds lie in [0, 1] and that each
// is at most half of the one before it.
func CheckThresholds(ths []float64) error {
	for i, th := range ths {
		if th < 0 || th > 1 || math.IsNaN(th) {
			return fmt.Errorf("%w: %g outside [0, 1]", ErrInvalidThresholds, th)
		}
		if i > 0 && th > ths[i-1]/2 {
			return fmt.Errorf("%w: %g above half of %g", ErrInvalidThresholds, th, ths[i-1])
		}
	}
	return nil
}

// floor3 truncates to three decimals so that thresholds print compactly. The
// epsilon keeps values such as 0.58/2 from losing a thousandth to rounding.
func floor3(th float64) float64 {
	return math.Floor(th*1000+1e-9) / 1000
}

func translate(part *cluster.Partition, ids []int) ([]int, []cluster.Pair, [][]int) {
	var singles []int
	for _, s := range part.Singles {
		singles = append(singles, ids[s])
	}
	var pairs []cluster.Pair
	for _, p := range part.Pairs {
		pairs = append(pairs, cluster.Pair{I: ids[p.I], J: ids[p.J], Distance: p.Distance})
	}
	groups := make([][]int, len(part.Groups))
	for k, g := range part.Groups {
		gg := make([]int, len(g))
		for i, x := range g {
			gg[i] = ids[x]
		}
		groups[k] = gg
	}
	return singles, pairs, groups
}

func appendInt(s []int, v int) []int {
	out := make([]int, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}

func appendFloat(s []float64, v float64) []float64 {
	out := make([]float64, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}

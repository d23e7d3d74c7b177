package pipeline

import (
	"strings"

	"github.com/thebtf/otus/pkg/cluster"
	"github.com/thebtf/otus/pkg/newick"
)

// Collapsed maps unique sequences back to the records carrying them.
type Collapsed struct {
	// Copies[u] lists the record indices of unique sequence u, ascending.
	Copies [][]int
}

func identity(n int) *Collapsed {
	c := &Collapsed{Copies: make([][]int, n)}
	for i := range c.Copies {
		c.Copies[i] = []int{i}
	}
	return c
}

// Collapse keeps the first copy of every repeated sequence.
func Collapse(seqs []string) *Collapsed {
	dupOf := make(map[int][]int)
	skip := make(map[int]bool)
	for _, g := range cluster.FindDuplicates(seqs) {
		dupOf[g[0]] = g
		for _, x := range g[1:] {
			skip[x] = true
		}
	}

	c := &Collapsed{Copies: make([][]int, 0, len(seqs)-len(skip))}
	for i := range seqs {
		if skip[i] {
			continue
		}
		if g, ok := dupOf[i]; ok {
			c.Copies = append(c.Copies, g)
		} else {
			c.Copies = append(c.Copies, []int{i})
		}
	}
	return c
}

// Sequences returns the unique sequences in representative order.
func (c *Collapsed) Sequences(seqs []string) []string {
	out := make([]string, len(c.Copies))
	for u, g := range c.Copies {
		out[u] = seqs[g[0]]
	}
	return out
}

// Expand maps unique indices to all record indices they stand for.
func (c *Collapsed) Expand(unique []int) []int {
	var out []int
	for _, u := range unique {
		out = append(out, c.Copies[u]...)
	}
	return out
}

// Labeler labels a unique leaf with its record id, or with a zero-length
// subtree over all copies when the sequence was repeated.
func (c *Collapsed) Labeler(ids []string) newick.Labeler {
	return func(u int) string {
		g := c.Copies[u]
		if len(g) == 1 {
			return newick.SafeLabel(ids[g[0]])
		}
		parts := make([]string, len(g))
		for i, x := range g {
			parts[i] = newick.SafeLabel(ids[x]) + ":0.000000"
		}
		return "(" + strings.Join(parts, ",") + ")"
	}
}

package cluster

// DisjointSet is a union-find over sequence indices with path compression and
// union by size. Roots keep the member list of their set.
type DisjointSet struct {
	parent  []int
	members [][]int
}

// NewDisjointSet creates n singleton sets.
func NewDisjointSet(n int) *DisjointSet {
	d := &DisjointSet{
		parent:  make([]int, n),
		members: make([][]int, n),
	}
	for i := range d.parent {
		d.parent[i] = i
	}
	return d
}

// Find returns the representative of x's set.
func (d *DisjointSet) Find(x int) int {
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[x] != root {
		d.parent[x], x = root, d.parent[x]
	}
	return root
}

// Union merges the sets of a and b and returns the surviving root.
func (d *DisjointSet) Union(a, b int) int {
	ra, rb := d.Find(a), d.Find(b)
	if ra == rb {
		return ra
	}
	if d.size(ra) < d.size(rb) {
		ra, rb = rb, ra
	}
	d.parent[rb] = ra
	d.members[ra] = append(d.ensure(ra), d.ensure(rb)...)
	d.members[rb] = nil
	return ra
}

// Members returns the members of x's set, or nil while x is alone.
// The slice must not be modified.
func (d *DisjointSet) Members(x int) []int {
	return d.members[d.Find(x)]
}

func (d *DisjointSet) size(root int) int {
	if m := d.members[root]; m != nil {
		return len(m)
	}
	return 1
}

func (d *DisjointSet) ensure(root int) []int {
	if d.members[root] == nil {
		return []int{root}
	}
	return d.members[root]
}

// Package newick renders a subdivision hierarchy as bracket-parenthesis tree
// strings with synthetic, threshold-derived branch lengths.
package newick

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/thebtf/otus/pkg/subdivide"
)

// ErrThresholdRange is returned for thresholds outside [0, 1].
var ErrThresholdRange = errors.New("threshold out of range")

// Tree is one rendered cluster.
type Tree struct {
	Name       string  `json:"name"`
	Text       string  `json:"tree"`
	Size       int     `json:"size"`
	Leaves     []int   `json:"leaves"`
	Threshold  float64 `json:"threshold"`
	Unresolved bool    `json:"unresolved,omitempty"`
}

// Labeler returns the text of leaf i. It may return a subtree.
type Labeler func(i int) string

// Index labels leaves by their sequence index.
func Index(i int) string { return strconv.Itoa(i) }

// ThresholdToken encodes a threshold for cluster names: "1" for 1, otherwise
// "p" followed by the decimal digits, so 0.025 becomes "p025".
func ThresholdToken(th float64) (string, error) {
	if th == 1 {
		return "1", nil
	}
	if th < 0 || th > 1 {
		return "", fmt.Errorf("%w: %g", ErrThresholdRange, th)
	}
	s := strconv.FormatFloat(th, 'f', -1, 64)
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		return "p" + s[dot+1:], nil
	}
	return "p0", nil
}

// ParseThresholdToken reverses ThresholdToken.
func ParseThresholdToken(tok string) (float64, error) {
	if tok == "1" {
		return 1, nil
	}
	if len(tok) < 2 || tok[0] != 'p' {
		return 0, fmt.Errorf("bad threshold token %q", tok)
	}
	for _, c := range tok[1:] {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("bad threshold token %q", tok)
		}
	}
	return strconv.ParseFloat("0."+tok[1:], 64)
}

func length(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

// Caterpillar builds a left-deep tree over members in which every rung has length
// th/(m-1), so each leaf is exactly th from the root.
func Caterpillar(members []int, th float64, label Labeler) string {
	m := len(members)
	if m == 1 {
		return label(members[0])
	}
	d := th / float64(m-1)
	dl := length(d)

	var b strings.Builder
	b.WriteString(strings.Repeat("(", m-1))
	b.WriteString(label(members[0]))
	b.WriteByte(':')
	b.WriteString(dl)
	b.WriteByte(',')
	b.WriteString(label(members[1]))
	b.WriteByte(':')
	b.WriteString(dl)
	b.WriteByte(')')

	h := d
	for _, x := range members[2:] {
		h += d
		b.WriteByte(':')
		b.WriteString(dl)
		b.WriteByte(',')
		b.WriteString(label(x))
		b.WriteByte(':')
		b.WriteString(length(h))
		b.WriteByte(')')
	}
	return b.String()
}

// Cherry builds a two-leaf tree with both branches d/2.
func Cherry(i, j int, d float64, label Labeler) string {
	h := length(d / 2)
	return "(" + label(i) + ":" + h + "," + label(j) + ":" + h + ")"
}

// Name builds a cluster name from a path and its thresholds.
func Name(path []int, thresholds []float64) (string, error) {
	if len(path) != len(thresholds) {
		return "", fmt.Errorf("path %v and thresholds %v differ in length", path, thresholds)
	}
	parts := make([]string, 0, 2*len(path))
	for i, p := range path {
		tok, err := ThresholdToken(thresholds[i])
		if err != nil {
			return "", err
		}
		parts = append(parts, strconv.Itoa(p), tok)
	}
	return "cluster_" + strings.Join(parts, "_"), nil
}

// Trees renders every level: groups first, then pairs, then singles, numbering
// entries from the level's path index. The top level uses threshold 1.
func Trees(levels []subdivide.Level, label Labeler) ([]Tree, error) {
	if label == nil {
		label = Index
	}

	var out []Tree
	for _, lv := range levels {
		path := lv.Path
		ths := lv.Thresholds
		if len(path) == 0 {
			path = []int{0}
			ths = []float64{1}
		}
		th := ths[len(ths)-1]
		cnt := path[len(path)-1]
		prefix := path[:len(path)-1]

		add := func(text string, leaves []int) error {
			name, err := Name(append(append([]int(nil), prefix...), cnt), ths)
			if err != nil {
				return err
			}
			out = append(out, Tree{
				Name:       name,
				Text:       text,
				Size:       len(leaves),
				Leaves:     leaves,
				Threshold:  th,
				Unresolved: lv.Unresolved,
			})
			cnt++
			return nil
		}

		for _, g := range lv.Groups {
			if len(g) == 0 {
				continue
			}
			if err := add(Caterpillar(g, th, label), append([]int(nil), g...)); err != nil {
				return nil, err
			}
		}
		for _, p := range lv.Pairs {
			if err := add(Cherry(p.I, p.J, p.Distance, label), []int{p.I, p.J}); err != nil {
				return nil, err
			}
		}
		for _, s := range lv.Singles {
			if err := add(label(s), []int{s}); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// SafeLabel quotes a taxon name unless it is already quoted or consists of
// letters, digits and underscores only.
func SafeLabel(name string) string {
	if name == "" {
		return "''"
	}
	if name[0] == '\'' || name[0] == '"' {
		return name
	}
	plain := true
	for _, c := range name {
		if !(c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	if !strings.Contains(name, "'") {
		return "'" + name + "'"
	}
	if !strings.Contains(name, `"`) {
		return `"` + name + `"`
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// Package presets manages named, YAML-defined parameter sets for clustering runs.
package presets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thebtf/otus/internal/config"
)

// Preset is a named set of overrides applied on top of the loaded config.
// Zero fields leave the config untouched.
type Preset struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Thresholds  []float64 `yaml:"thresholds"`
	MaxClade    int       `yaml:"max_clade"`
	Distance    string    `yaml:"distance"`
	K           int       `yaml:"k"`
	FailLimit   int       `yaml:"fail_limit"`
	Dedupe      *bool     `yaml:"dedupe"`
	Correction  *bool     `yaml:"correction"`
	// Inputs lists path prefixes the preset applies to when none is named.
	Inputs []string `yaml:"inputs"`
}

// File is the top-level YAML structure.
type File struct {
	Presets []Preset `yaml:"presets"`
}

// Registry holds loaded presets, keyed by name.
type Registry struct {
	byName map[string]*Preset
	order  []string // preserves definition order
}

// Path returns the default presets file location.
func Path() string {
	return filepath.Join(config.DataDir(), "presets.yaml")
}

// Load reads the YAML file at path and returns a Registry.
// If the file does not exist, Load returns an empty Registry (not an error).
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{byName: make(map[string]*Preset)}, nil
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	r := &Registry{
		byName: make(map[string]*Preset, len(f.Presets)),
	}
	for i := range f.Presets {
		p := &f.Presets[i]
		if _, dup := r.byName[p.Name]; !dup {
			r.order = append(r.order, p.Name)
		}
		r.byName[p.Name] = p
	}
	return r, nil
}

// Get returns a preset by name. Returns (nil, false) if not found.
func (r *Registry) Get(name string) (*Preset, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// All returns all presets in definition order.
func (r *Registry) All() []*Preset {
	result := make([]*Preset, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.byName[name])
	}
	return result
}

// Names returns a sorted list of preset names.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// ForInput returns the preset with the longest Inputs prefix of path.
// Ties go to the preset defined first.
func (r *Registry) ForInput(path string) (*Preset, bool) {
	var (
		best    *Preset
		bestLen = -1
	)
	for _, name := range r.order {
		p := r.byName[name]
		for _, prefix := range p.Inputs {
			if strings.HasPrefix(path, prefix) && len(prefix) > bestLen {
				best, bestLen = p, len(prefix)
			}
		}
	}
	return best, best != nil
}

// Apply copies the preset's set fields onto cfg.
func (p *Preset) Apply(cfg *config.Config) {
	if p == nil {
		return
	}
	if len(p.Thresholds) > 0 {
		cfg.Thresholds = append([]float64(nil), p.Thresholds...)
	}
	if p.MaxClade > 0 {
		cfg.MaxClade = p.MaxClade
	}
	if p.Distance != "" {
		cfg.Distance = p.Distance
	}
	if p.K > 0 {
		cfg.K = p.K
	}
	if p.FailLimit > 0 {
		cfg.FailLimit = p.FailLimit
	}
	if p.Dedupe != nil {
		cfg.Dedupe = *p.Dedupe
	}
	if p.Correction != nil {
		cfg.Correction = *p.Correction
	}
}

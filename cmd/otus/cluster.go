package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/thebtf/otus/internal/config"
	"github.com/thebtf/otus/internal/pipeline"
	"github.com/thebtf/otus/internal/presets"
)

// clusterFlags are command line overrides of the loaded configuration.
type clusterFlags struct {
	maxClade   int
	thresholds string
	distance   string
	format     string
	output     string
	seed       uint64
	workers    int
	k          int
	noDedupe   bool
	noCorrect  bool
	preset     string
}

func (f *clusterFlags) register(fs *pflag.FlagSet) {
	fs.IntVarP(&f.maxClade, "max-clade", "m", config.DefaultMaxClade, "Maximum leaves per cluster")
	fs.StringVarP(&f.thresholds, "thresholds", "t", "", "Comma separated thresholds for the first levels, e.g. 0.1,0.03")
	fs.StringVarP(&f.distance, "distance", "d", config.DefaultDistance, "Distance oracle: align or hamming")
	fs.StringVarP(&f.format, "format", "f", config.DefaultOutputFormat, "Output format: nexus or json")
	fs.StringVarP(&f.output, "output", "o", "", "Output file (default: stdout)")
	fs.Uint64Var(&f.seed, "seed", 1, "Random seed for threshold estimation")
	fs.IntVarP(&f.workers, "workers", "j", 4, "Concurrent subdivisions")
	fs.IntVar(&f.k, "k", 11, "Fragment length")
	fs.BoolVar(&f.noDedupe, "no-dedupe", false, "Keep identical sequences as separate leaves")
	fs.BoolVar(&f.noCorrect, "no-correction", false, "Report raw divergence instead of Jukes-Cantor distance")
	fs.StringVarP(&f.preset, "preset", "p", "", "Named preset from ~/.otus/presets.yaml (default: matched by input path)")
}

// applyPreset applies the named preset, or the one whose inputs match input.
func (f *clusterFlags) applyPreset(cfg *config.Config, input string) error {
	reg, err := presets.Load(presets.Path())
	if err != nil {
		return fmt.Errorf("load presets: %w", err)
	}
	if f.preset != "" {
		p, ok := reg.Get(f.preset)
		if !ok {
			return fmt.Errorf("unknown preset %q (available: %v)", f.preset, reg.Names())
		}
		p.Apply(cfg)
		return nil
	}
	if p, ok := reg.ForInput(input); ok {
		log.Info().Str("preset", p.Name).Str("input", input).Msg("Using preset")
		p.Apply(cfg)
	}
	return nil
}

// apply applies the preset for input, then copies explicitly set flags onto cfg.
func (f *clusterFlags) apply(fs *pflag.FlagSet, cfg *config.Config, input string) error {
	if err := f.applyPreset(cfg, input); err != nil {
		return err
	}
	if fs.Changed("max-clade") {
		cfg.MaxClade = f.maxClade
	}
	if fs.Changed("thresholds") {
		ths, err := config.ParseThresholds(f.thresholds)
		if err != nil {
			return err
		}
		cfg.Thresholds = ths
	}
	if fs.Changed("distance") {
		cfg.Distance = f.distance
	}
	if fs.Changed("format") {
		cfg.OutputFormat = f.format
	}
	if fs.Changed("seed") {
		cfg.Seed = f.seed
	}
	if fs.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fs.Changed("k") {
		cfg.K = f.k
	}
	if f.noDedupe {
		cfg.Dedupe = false
	}
	if f.noCorrect {
		cfg.Correction = false
	}
	return cfg.Validate()
}

func clusterCommand(a *app) *cobra.Command {
	f := &clusterFlags{}
	cmd := &cobra.Command{
		Use:   "cluster <input.fa>",
		Short: "Split sequences into clusters of bounded size and print their trees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.apply(cmd.Flags(), a.cfg, args[0]); err != nil {
				return err
			}
			runs, closeRuns, err := a.openRuns()
			if err != nil {
				return err
			}
			defer closeRuns()

			return runCluster(cmd.Context(), pipeline.New(a.cfg, runs), args[0], a.cfg.OutputFormat, f.output)
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func runCluster(ctx context.Context, p *pipeline.Pipeline, input, format, output string) error {
	res, err := p.ClusterFile(ctx, input)
	if err != nil {
		return err
	}
	if res.RunID != "" {
		log.Info().Str("run", res.RunID).Msg("Run recorded")
	}

	var w io.Writer = os.Stdout
	if output != "" {
		fh, err := os.Create(output)
		if err != nil {
			return err
		}
		defer fh.Close()
		w = fh
	}
	if err := pipeline.Write(w, format, res); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	return nil
}

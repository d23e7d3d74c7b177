package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thebtf/otus/internal/fasta"
	"github.com/thebtf/otus/internal/pipeline"
)

func matesCommand(a *app) *cobra.Command {
	var (
		threshold float64
		limit     int
		distance  string
	)
	cmd := &cobra.Command{
		Use:   "mates <queries.fa> <references.fa>",
		Short: "List reference sequences within a distance threshold of each query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("distance") {
				a.cfg.Distance = distance
			}
			if threshold < 0 {
				return fmt.Errorf("threshold must be non-negative, got %g", threshold)
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			queries, err := fasta.Load(args[0])
			if err != nil {
				return err
			}
			refs, err := fasta.Load(args[1])
			if err != nil {
				return err
			}

			mates, err := pipeline.New(a.cfg, nil).Mates(cmd.Context(), queries, refs, threshold, limit)
			if err != nil {
				return err
			}

			w := bufio.NewWriter(os.Stdout)
			for _, m := range mates {
				fmt.Fprintf(w, "%s\t%s\t%.6f\n", m.Query, m.Reference, m.Distance)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0.03, "Maximum distance of a mate")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum mates per query (0: unlimited)")
	cmd.Flags().StringVarP(&distance, "distance", "d", "align", "Distance oracle: align or hamming")
	return cmd
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/otus/internal/db/gorm"
)

func runsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded clustering runs",
	}
	cmd.AddCommand(runsListCommand(a), runsShowCommand(a), runsDeleteCommand(a), runsPruneCommand(a))
	return cmd
}

func (a *app) requireRuns() (*gorm.RunStore, func(), error) {
	runs, closeRuns, err := a.openRuns()
	if err != nil {
		return nil, nil, err
	}
	if runs == nil {
		return nil, nil, fmt.Errorf("run store disabled")
	}
	return runs, closeRuns, nil
}

func runsListCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, closeRuns, err := a.requireRuns()
			if err != nil {
				return err
			}
			defer closeRuns()

			list, err := runs.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tINPUT\tSEQUENCES\tCLUSTERS\tUNRESOLVED\tSTATUS")
			for _, r := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					shortID(r.ID),
					humanize.Time(time.UnixMilli(r.StartedAtEpoch)),
					r.Input,
					humanize.Comma(int64(r.Sequences)),
					r.Clusters,
					r.Unresolved,
					r.Status,
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0: all)")
	return cmd
}

func runsShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the trees of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, closeRuns, err := a.requireRuns()
			if err != nil {
				return err
			}
			defer closeRuns()

			run, err := runs.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			clusters, err := runs.Clusters(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			fmt.Printf("#NEXUS\n[run %s input %s]\nbegin trees;\n", run.ID, run.Input)
			for _, c := range clusters {
				fmt.Printf("\ttree %s = %s;\n", c.Name, c.Tree)
			}
			fmt.Println("end;")
			return nil
		},
	}
}

func runsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, closeRuns, err := a.requireRuns()
			if err != nil {
				return err
			}
			defer closeRuns()

			run, err := runs.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := runs.DeleteRun(cmd.Context(), run.ID); err != nil {
				return err
			}
			log.Info().Str("run", run.ID).Msg("Run deleted")
			return nil
		},
	}
}

func runsPruneCommand(a *app) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the most recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, closeRuns, err := a.requireRuns()
			if err != nil {
				return err
			}
			defer closeRuns()

			deleted, err := runs.PruneRuns(cmd.Context(), keep)
			if err != nil {
				return err
			}
			log.Info().Int("deleted", len(deleted)).Int("kept", keep).Msg("Runs pruned")
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 50, "Number of recent runs to keep")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package main

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/otus/internal/pipeline"
	"github.com/thebtf/otus/internal/watcher"
)

func watchCommand(a *app) *cobra.Command {
	f := &clusterFlags{}
	cmd := &cobra.Command{
		Use:   "watch <input.fa>",
		Short: "Cluster the input and re-cluster whenever it changes",
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

			ctx := cmd.Context()
			p := pipeline.New(a.cfg, runs)
			trigger := make(chan struct{}, 1)
			trigger <- struct{}{}

			w, err := watcher.New(args[0], func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				return err
			}
			defer w.Stop()

			var (
				wg     sync.WaitGroup
				cancel context.CancelFunc = func() {}
			)
			defer wg.Wait()
			for {
				select {
				case <-ctx.Done():
					cancel()
					log.Info().Msg("Stopped watching")
					return nil
				case <-trigger:
					// A newer input supersedes the run in flight.
					cancel()
					wg.Wait()
					var runCtx context.Context
					runCtx, cancel = context.WithCancel(ctx)
					wg.Add(1)
					go func() {
						defer wg.Done()
						err := runCluster(runCtx, p, args[0], a.cfg.OutputFormat, f.output)
						switch {
						case errors.Is(err, context.Canceled):
							log.Info().Msg("Run superseded")
						case err != nil:
							log.Error().Err(err).Msg("Run failed")
						}
					}()
				}
			}
		},
	}
	f.register(cmd.Flags())
	return cmd
}

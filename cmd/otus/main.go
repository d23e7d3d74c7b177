// Package main provides the otus command line entry point.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"

	"github.com/thebtf/otus/internal/config"
	"github.com/thebtf/otus/internal/db/gorm"
)

// Version is set at build time via ldflags.
var Version = "dev"

type app struct {
	cfg        *config.Config
	configPath string
	debug      bool
	noStore    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("otus failed")
		stop()
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "otus",
		Short:         "Approximate threshold-based OTU clustering of nucleotide sequences",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Settings file (default: ~/.otus/settings.json or settings.yaml)")
	root.PersistentFlags().BoolVar(&a.noStore, "no-store", false, "Do not record runs in the database")

	root.AddCommand(clusterCommand(a))
	root.AddCommand(matesCommand(a))
	root.AddCommand(watchCommand(a))
	root.AddCommand(runsCommand(a))
	root.AddCommand(initCommand())
	root.AddCommand(versionCommand())
	return root
}

func (a *app) setup() error {
	// stdout carries results, so log to stderr
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if a.debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	return err
}

// openRuns opens the run store unless disabled. The returned close func is never nil.
func (a *app) openRuns() (*gorm.RunStore, func(), error) {
	if a.noStore || a.cfg.DBPath == "" {
		return nil, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0750); err != nil {
		return nil, nil, err
	}
	store, err := gorm.NewStore(gorm.Config{Path: a.cfg.DBPath, LogLevel: logger.Silent})
	if err != nil {
		return nil, nil, err
	}
	return gorm.NewRunStore(store), func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close run store")
		}
	}, nil
}

func initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the data directory and a default settings file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.EnsureAll(); err != nil {
				return err
			}
			log.Info().Str("settings", config.SettingsPath()).Msg("Initialized")
			return nil
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("otus " + Version)
		},
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/manualqa/internal/config"
)

var (
	profilePath string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "manualqa",
	Short: "Ask questions about a vehicle owner's manual",
	Long: `manualqa indexes an owner's manual into a vector store and answers questions
about it with a local or hosted language model, citing the pages it used.

Configuration comes from the environment (and a .env file when present).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "Manual profile YAML (overrides MANUAL_PROFILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by all commands.
// quiet starts the logger at warn level so interactive output stays readable.
func setup(quiet bool) (config.Config, *slog.Logger, *slog.LevelVar, error) {
	cfg := config.Load()
	if profilePath != "" {
		cfg.ProfilePath = profilePath
	}
	level := new(slog.LevelVar)
	switch {
	case verbose:
		level.Set(slog.LevelDebug)
	case quiet:
		level.Set(slog.LevelWarn)
	}
	out := os.Stdout
	if quiet {
		out = os.Stderr
	}
	log := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	if err := cfg.Validate(); err != nil {
		return cfg, log, level, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, log, level, nil
}

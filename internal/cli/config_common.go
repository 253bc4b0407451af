package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vvka-141/pgcopy/internal/config"
)

// loadProjectConfig loads .env and pgcopy.yaml from dir.
// Returns nil config if pgcopy.yaml does not exist (not an error).
func loadProjectConfig(dir string) (*config.ProjectConfig, error) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	projectCfg, err := config.Load(dir)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", config.ConfigFileName, err)
	}
	return projectCfg, nil
}

// resolveEffectiveTimeout returns the effective timeout, preferring
// pgcopy.yaml if the flag wasn't set.
func resolveEffectiveTimeout(cmd *cobra.Command, projectCfg *config.ProjectConfig, flagTimeout time.Duration) (time.Duration, error) {
	if cmd.Flags().Changed("timeout") {
		return flagTimeout, nil
	}
	fromFile, err := projectCfg.Timeout()
	if err != nil {
		return 0, err
	}
	if fromFile > 0 {
		return fromFile, nil
	}
	return flagTimeout, nil
}

// signalContext returns a context cancelled on timeout, Ctrl+C or SIGTERM.
// Cancellation rolls back an in-flight load.
func signalContext(timeout time.Duration, what string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintf(os.Stderr, "\n[INTERRUPT] Received interrupt signal, cancelling %s...\n", what)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

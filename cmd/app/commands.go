package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"BandPilot/internal/di"
	"BandPilot/pkg/config"
	xutil "BandPilot/pkg/util"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "bandpilot",
		Short:         "Market regime bands and band driven strategy decisions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the band API and /metrics",
		RunE:  runServe,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path; empty uses defaults and environment")
	rootCmd.AddCommand(serveCmd, bandCmd, buildCmd, replayCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

// withCore loads config, wires the domain and runs fn with it.
func withCore(fn func(core *di.Core) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	core, cleanup, err := di.InitializeCore(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cleanup()
	return fn(core)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()
	return app.Run()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDateFlag parses an optional date flag. Empty yields the zero time.
func parseDateFlag(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, ok := xutil.ParseDate(s)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid --%s %q, want YYYY-MM-DD", name, s)
	}
	return t, nil
}

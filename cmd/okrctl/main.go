package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abbasKakoolvand/OKR-analyze/internal/app"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/config"
	appLogger "github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

var (
	configPath string
	verbose    bool
	timeout    time.Duration
)

// rootCmd is the operator CLI for the scoring pipeline.
var rootCmd = &cobra.Command{
	Use:   "okrctl",
	Short: "Import team tasks and score them against key results",
	Long: `okrctl drives the OKR scoring pipeline from the command line.

It shares configuration with the API server (config.yaml, OKR_* environment
variables and .env) and writes to the same database.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Operation timeout")

	rootCmd.AddCommand(importTasksCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(personsCmd)
	rootCmd.AddCommand(scoresCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// openApp loads configuration and wires the application. Logs go to stderr so
// command output on stdout stays machine readable.
func openApp() (*app.App, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	if err := appLogger.Init(level, "console", "stderr"); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return app.New(cfg)
}

// withApp runs fn against a freshly wired application and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	defer appLogger.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	return fn(ctx, a)
}

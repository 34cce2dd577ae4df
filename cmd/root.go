package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openauditlabs/sentry/internal/config"
	"github.com/openauditlabs/sentry/internal/engine"
	"github.com/openauditlabs/sentry/internal/telemetry"
)

var (
	// Global flags
	configPath string
	jsonOutput bool
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sentry",
	Short: "Smart contract audit orchestration CLI",
	Long: `sentry coordinates heterogeneous vulnerability-detection tools into one
audit pipeline for Solidity contracts.

It runs static analyzers and dynamic testing tools in parallel, normalizes
their output into a single finding schema, calibrates per-tool confidence
into trust levels, scores findings by severity and confidence, and archives
results for listing, search and export (SARIF, JSON, Markdown).

Run 'sentry audit <contract.sol>' for a one-shot audit, or 'sentry watch'
to re-audit contracts as they change.`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFile, "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

// loadConfig reads the configuration named by --config
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitError("%v", err)
	}
	return cfg
}

// newLogger builds the CLI logger honoring --verbose
func newLogger(cfg *config.Config) *zap.SugaredLogger {
	logger, err := telemetry.NewLogger(cfg.LogLevel, verbose)
	if err != nil {
		exitError("failed to build logger: %v", err)
	}
	return logger
}

// newEngine wires an audit engine from the configuration
func newEngine(cfg *config.Config) *engine.Engine {
	return engine.New(cfg, newLogger(cfg), telemetry.NewMetrics())
}

// outputJSON outputs data as JSON
func outputJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// exitError prints an error message and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

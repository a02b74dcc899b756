package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dbPath string
	owner  string
)

var rootCmd = &cobra.Command{
	Use:   "absweep",
	Short: "absweep - a self-hosted A/B test evaluation engine",
	Long: `absweep owns the lifecycle of server-side A/B experiments and runs the
periodic significance sweep that auto-declares winners.

Variant metrics arrive from an external ingestion pipeline; absweep reads the
cumulative counters, scores each running test with a two-proportion z-test,
and completes tests that reach significance or their scheduled end.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("ABSWEEP_DB_PATH", "./absweep.db"), "database path")
	rootCmd.PersistentFlags().StringVar(&owner, "owner", getEnvOrDefault("ABSWEEP_OWNER", "default"), "owner the command acts for")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// newLogger builds the logger used by the engine and server. CLI output for
// humans stays on stdout via fmt; zap carries the operational log.
func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

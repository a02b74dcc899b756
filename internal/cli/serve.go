package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/absweep/absweep/internal/engine"
	"github.com/absweep/absweep/internal/server"
	"github.com/absweep/absweep/internal/store"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the absweep HTTP server.

The server provides:
  - Tests API for dashboards
  - Sweep trigger endpoint for an external scheduler (POST /api/sweep)
  - Health check and Prometheus metrics

Set ABSWEEP_SWEEP_TOKEN to require a bearer token on the sweep endpoint.

Example:
  absweep serve --port 8080`,
	RunE: runServe,
}

func init() {
	defaultPort := 8080
	if p := os.Getenv("ABSWEEP_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			defaultPort = parsed
		}
	}

	serveCmd.Flags().IntVarP(&port, "port", "p", defaultPort, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	logger := newLogger()
	defer logger.Sync()

	sweeper := engine.NewSweeper(s, engine.Config{}, logger)
	srv := server.New(s, sweeper, port, os.Getenv("ABSWEEP_SWEEP_TOKEN"), logger)

	fmt.Printf("absweep running on http://localhost:%d\n", port)
	fmt.Println("Press Ctrl+C to stop")

	return srv.Start()
}

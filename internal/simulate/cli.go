package simulate

import (
	"fmt"
	"os"

	"github.com/okian/courtside/pkg/logger"
)

// SetupLogging initializes the global logger at the given level.
func SetupLogging(level string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if level == "" {
		return nil
	}
	if err := logger.SetLevelString(level); err != nil {
		return fmt.Errorf("failed to set log level: %w", err)
	}
	return nil
}

// ShowHelp prints usage information for the simulate tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Courtside Game Simulator
========================

Generates deterministic play-by-play games with matching box scores.

Usage:
  go run ./cmd/simulate [options]

Options:
  -games int
        Number of games to generate (default 10)
  -seed uint
        Seed shared by every game of the run (default 1)
  -periods int
        Periods per game (default 4)
  -possessions int
        Possessions per period (default 50)
  -out string
        Directory to write <game_id>.json files to
  -url string
        Base URL of a running service to submit games to
  -workers int
        Concurrent writers or submitters (default CPU cores)
  -timeout duration
        HTTP request timeout (default 30s)
  -log-level string
        Log level (default "info")
  -verbose
        Log every generated game
  -help
        Show this help message

Examples:
  # Write 100 games for a batch run
  go run ./cmd/simulate -games 100 -out ./games

  # Submit games to a running service
  go run ./cmd/simulate -games 50 -url http://localhost:9080
`)
}

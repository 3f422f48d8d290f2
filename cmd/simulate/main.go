package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/courtside/internal/simulate"
)

// Default configuration constants.
const (
	defaultGames      = 10
	defaultSeed       = 1
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		games       = flag.Int("games", defaultGames, "Number of games to generate")
		seed        = flag.Uint64("seed", defaultSeed, "Seed shared by every game of the run")
		periods     = flag.Int("periods", simulate.DefaultPeriods, "Periods per game")
		possessions = flag.Int("possessions", simulate.DefaultPerPeriod, "Possessions per period")
		outDir      = flag.String("out", "", "Directory to write game files to")
		baseURL     = flag.String("url", "", "Base URL of a running service to submit games to")
		workers     = flag.Int("workers", runtime.NumCPU(), "Concurrent writers or submitters")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logLevel    = flag.String("log-level", "info", "Log level")
		verbose     = flag.Bool("verbose", false, "Log every generated game")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logLevel); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if *outDir == "" && *baseURL == "" {
		_, _ = os.Stderr.WriteString("Nothing to do: set -out or -url\n")
		os.Exit(2)
	}

	config := &simulate.Config{
		Games:     *games,
		Seed:      *seed,
		Periods:   *periods,
		PerPeriod: *possessions,
		OutputDir: *outDir,
		BaseURL:   *baseURL,
		Workers:   *workers,
		Timeout:   *timeout,
		Verbose:   *verbose,
	}

	if err := run(config); err != nil {
		_, _ = os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(config *simulate.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	_, err := simulate.Run(ctx, config)
	return err
}

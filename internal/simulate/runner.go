package simulate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o640
)

// Run generates the configured games, writes them to OutputDir when set
// and submits them to BaseURL when set.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("simulate")

	log.Info(ctx, "starting simulation",
		logger.Int("games", config.Games),
		logger.Int64("seed", int64(config.Seed)), //nolint:gosec // logged only
		logger.Int("periods", config.Periods),
		logger.Int("perPeriod", config.PerPeriod),
		logger.String("outputDir", config.OutputDir),
		logger.String("baseURL", config.BaseURL),
		logger.Int("workers", config.Workers))

	gen := NewGenerator(
		WithSeed(config.Seed),
		WithPeriods(config.Periods),
		WithPossessionsPerPeriod(config.PerPeriod),
	)

	games := make([]model.RawGame, config.Games)
	for i := range games {
		var sum Summary
		games[i], sum = gen.Game(i)
		stats.EventsGenerated += sum.Events
		if config.Verbose {
			log.Info(ctx, "generated game",
				logger.String("game_id", sum.GameID),
				logger.Int("possessions", sum.Possessions),
				logger.Any("points", sum.Points),
				logger.Int("substitutions", sum.Substitutions))
		}
	}
	stats.GamesGenerated = len(games)

	if config.OutputDir != "" {
		n, err := WriteGames(ctx, config.OutputDir, games, config.Workers)
		stats.FilesWritten = n
		if err != nil {
			return stats, fmt.Errorf("writing games failed: %w", err)
		}
	}

	if config.BaseURL != "" {
		client := NewHTTPClient(config.BaseURL, config.Timeout)
		if err := client.Health(ctx); err != nil {
			return stats, fmt.Errorf("service health check failed: %w", err)
		}
		if err := submitGames(ctx, client, games, config.Workers, stats); err != nil {
			return stats, err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// WriteGames writes one <game_id>.json file per game into dir.
func WriteGames(ctx context.Context, dir string, games []model.RawGame, workers int) (int, error) {
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range games {
		game := games[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := json.Marshal(game)
			if err != nil {
				return fmt.Errorf("failed to marshal game %s: %w", game.GameID, err)
			}
			path := filepath.Join(dir, game.GameID+".json")
			if err := os.WriteFile(path, data, filePermission); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	logger.Get().Info(ctx, "games saved", logger.String("dir", dir), logger.Int("files", len(games)))
	return len(games), nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var gamesPerSecond float64
	if stats.Duration > 0 {
		gamesPerSecond = float64(stats.GamesGenerated) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("gamesGenerated", stats.GamesGenerated),
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("filesWritten", stats.FilesWritten),
		logger.Int("gamesSubmitted", stats.GamesSubmitted),
		logger.Int("gamesAccepted", stats.GamesAccepted),
		logger.Int("gamesRejected", stats.GamesRejected),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("gamesPerSecond", gamesPerSecond))
}

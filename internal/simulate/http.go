package simulate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a client for the service at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Health checks GET /healthz.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// Submit posts one game to POST /api/v1/games.
func (c *HTTPClient) Submit(ctx context.Context, g model.RawGame) error { //nolint:gocritic // hugeParam: marshaled once
	body, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal game %s: %w", g.GameID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/games", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit game %s: %w", g.GameID, err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != StatusAccepted {
		return fmt.Errorf("game %s rejected with status %d: %s", g.GameID, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// submitGames posts games with at most workers requests in flight. A
// rejected game is counted, not fatal.
func submitGames(ctx context.Context, client *HTTPClient, games []model.RawGame, workers int, stats *Stats) error {
	var accepted, rejected atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range games {
		game := games[i]
		g.Go(func() error {
			if err := client.Submit(gctx, game); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				rejected.Add(1)
				logger.Get().Warn(gctx, "game rejected", logger.String("game_id", game.GameID), logger.Error(err))
				return nil
			}
			accepted.Add(1)
			return nil
		})
	}
	err := g.Wait()

	stats.GamesSubmitted = int(accepted.Load() + rejected.Load())
	stats.GamesAccepted = int(accepted.Load())
	stats.GamesRejected = int(rejected.Load())
	if err != nil {
		return fmt.Errorf("submission interrupted: %w", err)
	}
	return nil
}

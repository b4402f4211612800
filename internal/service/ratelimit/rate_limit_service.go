package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/noteflow/noteflow/internal/ports"
	"github.com/noteflow/noteflow/internal/service/logger"
	"github.com/noteflow/noteflow/pkg/apperror"
)

// Service is the admission controller: a fixed-window counter per client key
// on the shared coordination substrate, so the limit holds across process
// instances. Exhausted capacity rejects with apperror.ErrRateLimited until
// the window rolls over.
type Service interface {
	// TryConsume spends one token for clientKey. Returns
	// apperror.ErrRateLimited when the window's capacity is exhausted.
	TryConsume(ctx context.Context, clientKey string) error
}

// Config sets the per-window capacity and the window length.
type Config struct {
	Enabled  bool
	Capacity int
	Window   time.Duration
}

type service struct {
	store  ports.KVStore
	config Config
	logger logger.Logger
}

// NewService creates the admission controller. With Enabled false every
// request is admitted.
func NewService(store ports.KVStore, config Config, log logger.Logger) Service {
	if !config.Enabled {
		log.Info(context.Background(), "Rate limiting disabled", nil)
		return &noopService{}
	}
	return &service{store: store, config: config, logger: log}
}

func (s *service) TryConsume(ctx context.Context, clientKey string) error {
	key := fmt.Sprintf("ratelimit:%s", clientKey)

	count, err := s.store.Incr(ctx, key)
	if err != nil {
		// The limiter never takes the API down with it: on substrate
		// failure the request is admitted and the failure logged.
		s.logger.Error(ctx, "Failed to increment rate limit counter", err, map[string]interface{}{
			"key": key,
		})
		return nil
	}

	if count == 1 {
		if err := s.store.Expire(ctx, key, s.config.Window); err != nil {
			s.logger.Error(ctx, "Failed to set rate limit window", err, map[string]interface{}{
				"key": key,
			})
		}
	}

	if count > int64(s.config.Capacity) {
		s.logger.Warn(ctx, "Rate limit exceeded", map[string]interface{}{
			"key":      clientKey,
			"count":    count,
			"capacity": s.config.Capacity,
			"window":   s.config.Window.String(),
		})
		return apperror.ErrRateLimited
	}

	return nil
}

type noopService struct{}

func (n *noopService) TryConsume(ctx context.Context, clientKey string) error {
	return nil
}

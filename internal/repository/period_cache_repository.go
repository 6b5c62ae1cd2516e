package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campus-suite/academics-api/internal/models"
	appErrors "github.com/campus-suite/academics-api/pkg/errors"
)

const openPeriodsKey = "selection:periods:enabled"

// PeriodCacheRepository caches the enabled selection-period set in Redis so
// every selection request does not hit Postgres. A nil client degrades to
// cache misses.
type PeriodCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewPeriodCacheRepository constructs a period cache repository.
func NewPeriodCacheRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *PeriodCacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodCacheRepository{client: client, ttl: ttl, logger: logger}
}

// GetEnabled returns the cached enabled-period set.
func (r *PeriodCacheRepository) GetEnabled(ctx context.Context) ([]models.SelectionPeriod, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, openPeriodsKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", openPeriodsKey, err)
	}

	var periods []models.SelectionPeriod
	if err := json.Unmarshal(raw, &periods); err != nil {
		return nil, fmt.Errorf("unmarshal cached periods: %w", err)
	}
	return periods, nil
}

// SetEnabled stores the enabled-period set with the configured TTL.
func (r *PeriodCacheRepository) SetEnabled(ctx context.Context, periods []models.SelectionPeriod) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(periods)
	if err != nil {
		return fmt.Errorf("marshal periods for cache: %w", err)
	}

	if err := r.client.Set(ctx, openPeriodsKey, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", openPeriodsKey, err)
	}
	return nil
}

// Invalidate drops the cached set after a period mutation.
func (r *PeriodCacheRepository) Invalidate(ctx context.Context) {
	if r.client == nil {
		return
	}
	if err := r.client.Del(ctx, openPeriodsKey).Err(); err != nil {
		r.logger.Warn("failed to invalidate period cache", zap.Error(err))
	}
}

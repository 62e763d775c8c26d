package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"imitate-server/shared/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const leaderboardCacheKey = "leaderboard:top"

// LeaderboardCache кэширует таблицу лидеров в Redis.
// Таблица читается часто и меняется редко, короткого TTL достаточно.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewLeaderboardCache создает кэш таблицы лидеров.
func NewLeaderboardCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *LeaderboardCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LeaderboardCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("LeaderboardCache"),
	}
}

// Get возвращает закэшированную таблицу или (nil, nil) при промахе.
func (c *LeaderboardCache) Get(ctx context.Context) ([]models.LeaderboardEntry, error) {
	data, err := c.client.Get(ctx, leaderboardCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		c.logger.Warn("Ошибка чтения кэша таблицы лидеров", zap.Error(err))
		return nil, fmt.Errorf("failed to read leaderboard cache: %w", err)
	}

	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("Битые данные в кэше таблицы лидеров", zap.Error(err))
		return nil, nil
	}
	return entries, nil
}

// Set сохраняет таблицу лидеров с TTL.
func (c *LeaderboardCache) Set(ctx context.Context, entries []models.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}
	if err := c.client.Set(ctx, leaderboardCacheKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Ошибка записи кэша таблицы лидеров", zap.Error(err))
		return fmt.Errorf("failed to write leaderboard cache: %w", err)
	}
	return nil
}

// Invalidate сбрасывает кэш. Вызывается после записи нового счета.
func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, leaderboardCacheKey).Err(); err != nil {
		c.logger.Warn("Не удалось сбросить кэш таблицы лидеров", zap.Error(err))
	}
}

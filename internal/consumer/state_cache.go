package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"spendwell-biometrics/internal/config"
	"spendwell-biometrics/internal/models"
)

// StateCache Redis 状态缓存管理器
//
// 每次状态重算后把快照写入带 TTL 的键（仪表盘同步读取），
// 同时追加到 Redis Stream（提醒渲染器等外部消费方的订阅流）。
type StateCache struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewStateCache 创建状态缓存管理器
func NewStateCache(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *StateCache {
	return &StateCache{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// stateKey 构建状态缓存键
func (c *StateCache) stateKey(userID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Biometrics.Cache.StateKeyPrefix,
		userID,
		c.config.Biometrics.Cache.StateSuffix,
	)
}

// UpdateState 写入最新状态并发布到状态流
func (c *StateCache) UpdateState(ctx context.Context, userID string, state models.BiometricsState) error {
	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal biometrics state: %w", err)
	}

	key := c.stateKey(userID)
	ttl := time.Duration(c.config.Biometrics.Cache.StateTTL) * time.Second
	if err := c.redisClient.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set state cache: %w", err)
	}

	if err := c.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: c.config.Biometrics.Cache.StateStream,
		Values: map[string]interface{}{
			"user_id":   userID,
			"data":      string(jsonData),
			"timestamp": state.Timestamp.Unix(),
		},
	}).Err(); err != nil {
		return fmt.Errorf("failed to publish state to stream: %w", err)
	}

	c.logger.Debug("Updated state cache",
		zap.String("user_id", userID),
		zap.String("key", key),
		zap.Float64("stress_index", state.StressIndex),
	)

	return nil
}

// GetState 读取最新缓存状态；无缓存时返回 (nil, nil)，不是错误
func (c *StateCache) GetState(ctx context.Context, userID string) (*models.BiometricsState, error) {
	val, err := c.redisClient.Get(ctx, c.stateKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get state cache: %w", err)
	}

	var state models.BiometricsState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal biometrics state: %w", err)
	}

	return &state, nil
}

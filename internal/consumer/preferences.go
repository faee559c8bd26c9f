package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"spendwell-biometrics/internal/config"
	"spendwell-biometrics/internal/models"
)

// PreferencesStore 用户偏好存储（Redis，JSON 序列化，不设 TTL）
type PreferencesStore struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewPreferencesStore 创建偏好存储
func NewPreferencesStore(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *PreferencesStore {
	return &PreferencesStore{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (s *PreferencesStore) prefsKey(userID string) string {
	return fmt.Sprintf("%s%s%s",
		s.config.Biometrics.Cache.PrefsKeyPrefix,
		userID,
		s.config.Biometrics.Cache.PrefsSuffix,
	)
}

// Get 读取偏好；尚未保存过时返回默认偏好
func (s *PreferencesStore) Get(ctx context.Context, userID string) (models.BiometricPreferences, error) {
	val, err := s.redisClient.Get(ctx, s.prefsKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return models.DefaultPreferences(), nil
		}
		return models.BiometricPreferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}

	var prefs models.BiometricPreferences
	if err := json.Unmarshal([]byte(val), &prefs); err != nil {
		return models.BiometricPreferences{}, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}

	return prefs, nil
}

// Set 保存偏好
func (s *PreferencesStore) Set(ctx context.Context, userID string, prefs models.BiometricPreferences) error {
	jsonData, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	if err := s.redisClient.Set(ctx, s.prefsKey(userID), jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to set preferences: %w", err)
	}

	return nil
}

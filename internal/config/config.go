package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig PostgreSQL 配置
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT 配置（可穿戴桥接入口，可选）
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      byte
}

// Config 生物特征服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 引擎特定配置
	Biometrics struct {
		UserID string // 当前仪表盘用户（单用户部署时为 "local"）

		SampleInterval int // 采样间隔（秒），默认 5
		HistorySize    int // 读数历史缓冲上限，默认 50

		// 派生子流的变化抑制阈值
		StressEpsilon    float64 // 压力指数，默认 2
		HeartRateEpsilon float64 // 心率，默认 1
		WellnessEpsilon  float64 // 健康评分，默认 1

		ComputeWarnMillis int // 读数到状态的延迟告警阈值（毫秒），默认 50

		// Redis 缓存配置
		Cache struct {
			StateKeyPrefix string // 状态缓存键前缀，如 "spendwell:biometrics:"
			StateSuffix    string // 状态缓存键后缀，如 ":state"
			StateTTL       int    // 状态缓存 TTL（秒），默认 30
			StateStream    string // 状态发布流，如 "spendwell:biometrics:states"
			PrefsKeyPrefix string // 偏好设置键前缀
			PrefsSuffix    string // 偏好设置键后缀
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Enabled = getEnvBool("DB_ENABLED", true)
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "spendwell")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Enabled = getEnvBool("MQTT_ENABLED", false)
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "spendwell-biometrics")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "spendwell/biometrics/readings")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.Biometrics.UserID = getEnv("USER_ID", "local")
	cfg.Biometrics.SampleInterval = getEnvInt("SAMPLE_INTERVAL", 5)
	cfg.Biometrics.HistorySize = getEnvInt("HISTORY_SIZE", 50)
	cfg.Biometrics.StressEpsilon = 2
	cfg.Biometrics.HeartRateEpsilon = 1
	cfg.Biometrics.WellnessEpsilon = 1
	cfg.Biometrics.ComputeWarnMillis = getEnvInt("COMPUTE_WARN_MILLIS", 50)

	cfg.Biometrics.Cache.StateKeyPrefix = getEnv("CACHE_STATE_PREFIX", "spendwell:biometrics:")
	cfg.Biometrics.Cache.StateSuffix = ":state"
	cfg.Biometrics.Cache.StateTTL = getEnvInt("CACHE_STATE_TTL", 30)
	cfg.Biometrics.Cache.StateStream = getEnv("CACHE_STATE_STREAM", "spendwell:biometrics:states")
	cfg.Biometrics.Cache.PrefsKeyPrefix = getEnv("CACHE_PREFS_PREFIX", "spendwell:biometrics:")
	cfg.Biometrics.Cache.PrefsSuffix = ":preferences"

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

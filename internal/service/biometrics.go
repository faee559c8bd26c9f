package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"spendwell-biometrics/internal/channel"
	"spendwell-biometrics/internal/config"
	"spendwell-biometrics/internal/consumer"
	"spendwell-biometrics/internal/engine"
	"spendwell-biometrics/internal/intervention"
	"spendwell-biometrics/internal/models"
	mqttc "spendwell-biometrics/internal/mqtt"
	"spendwell-biometrics/internal/producer"
	"spendwell-biometrics/internal/repository"
)

// BiometricsService 生物特征服务（整合各层）
//
// 显式构造、显式生命周期：所有组件由构造函数注入，
// 没有包级单例，测试可以创建彼此隔离的实例。
type BiometricsService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttc.Client

	channel      *channel.Channel
	engine       *engine.Engine
	store        *intervention.Store
	stateCache   *consumer.StateCache
	prefs        *consumer.PreferencesStore
	mqttConsumer *consumer.MQTTConsumer
}

// NewBiometricsService 创建生物特征服务
func NewBiometricsService(cfg *config.Config, logger *zap.Logger) (*BiometricsService, error) {
	// 1. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 2. 连接数据库（可选）
	var db *sql.DB
	var eventsRepo *repository.InterventionEventsRepository
	var policyRepo *repository.InterventionPoliciesRepository
	if cfg.Database.Enabled {
		var err error
		db, err = sql.Open("postgres", cfg.Database.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if cfg.Database.MaxConns > 0 {
			db.SetMaxOpenConns(cfg.Database.MaxConns)
		}
		if cfg.Database.MaxIdle > 0 {
			db.SetMaxIdleConns(cfg.Database.MaxIdle)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		eventsRepo = repository.NewInterventionEventsRepository(db, logger)
		policyRepo = repository.NewInterventionPoliciesRepository(db, logger)
	} else {
		logger.Warn("Database disabled, running with in-memory policies and events only")
	}

	// 3. 创建采样链路：生产者 -> 通道 -> 引擎
	prod := producer.NewSyntheticProducer("synthetic-1", time.Now().UnixNano())
	ch := channel.New(cfg, prod, logger)
	eng := engine.New(cfg, ch, logger)

	// 4. 创建 Redis 侧组件
	stateCache := consumer.NewStateCache(cfg, redisClient, logger)
	prefs := consumer.NewPreferencesStore(cfg, redisClient, logger)

	// 5. 创建策略存储
	store := intervention.NewStore(cfg, eng, eventsRepo, policyRepo, prefs, logger)

	s := &BiometricsService{
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
		channel:     ch,
		engine:      eng,
		store:       store,
		stateCache:  stateCache,
		prefs:       prefs,
	}

	// 6. 出站状态流：每个状态快照写入缓存并发布
	userID := cfg.Biometrics.UserID
	eng.SubscribeState(func(state models.BiometricsState) {
		// 缓存失败吸收并记录，不反压采样链路
		if err := stateCache.UpdateState(context.Background(), userID, state); err != nil {
			logger.Error("Failed to update state cache",
				zap.Error(err),
			)
		}
	})

	// 7. MQTT 桥接入口（可选）
	if cfg.MQTT.Enabled {
		mqttClient, err := mqttc.NewClient(&cfg.MQTT, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create mqtt client: %w", err)
		}
		s.mqttClient = mqttClient
		s.mqttConsumer = consumer.NewMQTTConsumer(cfg, mqttClient, ch, logger)
	}

	return s, nil
}

// Start 启动服务，阻塞直到上下文取消
func (s *BiometricsService) Start(ctx context.Context) error {
	s.logger.Info("Starting biometrics service",
		zap.String("user_id", s.config.Biometrics.UserID),
		zap.Bool("mqtt_enabled", s.config.MQTT.Enabled),
		zap.Bool("db_enabled", s.config.Database.Enabled),
	)

	if err := s.store.LoadPolicies(ctx); err != nil {
		return err
	}

	s.engine.Start()

	if s.mqttConsumer != nil {
		go func() {
			if err := s.mqttConsumer.Start(ctx); err != nil {
				s.logger.Error("MQTT consumer failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()

	s.engine.Stop()
	return nil
}

// Stop 释放全部资源
func (s *BiometricsService) Stop() {
	s.engine.Stop()

	if s.mqttConsumer != nil {
		s.mqttConsumer.Stop()
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.Error(err))
		}
	}
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis client", zap.Error(err))
	}
}

// Engine 暴露健康引擎（供进程内调用方订阅/手动检查）
func (s *BiometricsService) Engine() *engine.Engine {
	return s.engine
}

// Store 暴露策略存储（供消费流水线调用 CheckStressIntervention）
func (s *BiometricsService) Store() *intervention.Store {
	return s.store
}

// Channel 暴露广播通道（设备管理与手动录入）
func (s *BiometricsService) Channel() *channel.Channel {
	return s.channel
}

// Preferences 暴露偏好存储
func (s *BiometricsService) Preferences() *consumer.PreferencesStore {
	return s.prefs
}

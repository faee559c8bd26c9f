// Package intervention 实现消费守护的策略存储与干预判定
//
// CheckStressIntervention 对一笔候选消费按插入顺序求值启用的策略，
// 首个同时满足压力阈值和金额阈值的策略命中：记录一条干预事件并
// 返回 true，每次调用至多命中一次。事件历史上限50条，最新在前。
//
// 事件历史是唯一被外部调用方同时读和写（dismiss）的结构，
// 全部操作在内部锁下原子完成。
package intervention

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spendwell-biometrics/internal/config"
	"spendwell-biometrics/internal/consumer"
	"spendwell-biometrics/internal/engine"
	"spendwell-biometrics/internal/models"
	"spendwell-biometrics/internal/repository"
)

// maxEventHistory 事件历史上限（最旧的被丢弃）
const maxEventHistory = 50

// actionNudgeDisplayed 策略命中时的默认动作
const actionNudgeDisplayed = "nudge_displayed"

// Store 干预策略存储
//
// 仓库为可选依赖（nil 表示纯内存运行）：CRUD 路径的持久化错误
// 原样返回给调用方；检查路径的持久化错误吸收并记录，判定结果
// 不受影响。
type Store struct {
	cfg        *config.Config
	engine     *engine.Engine
	eventsRepo *repository.InterventionEventsRepository
	policyRepo *repository.InterventionPoliciesRepository
	prefs      *consumer.PreferencesStore
	logger     *zap.Logger

	mu       sync.Mutex
	policies []models.InterventionPolicy // 插入顺序即求值顺序
	events   []models.InterventionEvent  // 最新在前，上限 maxEventHistory
}

// NewStore 创建策略存储
func NewStore(
	cfg *config.Config,
	eng *engine.Engine,
	eventsRepo *repository.InterventionEventsRepository,
	policyRepo *repository.InterventionPoliciesRepository,
	prefs *consumer.PreferencesStore,
	logger *zap.Logger,
) *Store {
	return &Store{
		cfg:        cfg,
		engine:     eng,
		eventsRepo: eventsRepo,
		policyRepo: policyRepo,
		prefs:      prefs,
		logger:     logger,
	}
}

// LoadPolicies 从仓库加载已配置的策略（启动时调用）
func (s *Store) LoadPolicies(ctx context.Context) error {
	if s.policyRepo == nil {
		return nil
	}

	policies, err := s.policyRepo.ListPolicies(ctx, s.cfg.Biometrics.UserID)
	if err != nil {
		return fmt.Errorf("failed to load intervention policies: %w", err)
	}

	s.mu.Lock()
	s.policies = policies
	s.mu.Unlock()

	s.logger.Info("Loaded intervention policies",
		zap.Int("policy_count", len(policies)),
	)
	return nil
}

// AddPolicy 添加策略；ID 为空时自动生成
//
// 阈值不做符号校验（已知缺口，原样保留）。
func (s *Store) AddPolicy(ctx context.Context, p models.InterventionPolicy) (models.InterventionPolicy, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	if s.policyRepo != nil {
		if err := s.policyRepo.CreatePolicy(ctx, s.cfg.Biometrics.UserID, &p); err != nil {
			return models.InterventionPolicy{}, err
		}
	}

	s.mu.Lock()
	s.policies = append(s.policies, p)
	s.mu.Unlock()

	return p, nil
}

// UpdatePolicy 按 ID 整体替换策略（ID 未知时为静默空操作）
func (s *Store) UpdatePolicy(ctx context.Context, p models.InterventionPolicy) error {
	s.mu.Lock()
	idx := -1
	for i, existing := range s.policies {
		if existing.ID == p.ID {
			idx = i
			break
		}
	}
	s.mu.Unlock()
	if idx < 0 {
		return nil
	}

	if s.policyRepo != nil {
		if err := s.policyRepo.UpdatePolicy(ctx, s.cfg.Biometrics.UserID, &p); err != nil {
			return err
		}
	}

	s.mu.Lock()
	// 并发删除后索引可能失效，重新定位
	for i, existing := range s.policies {
		if existing.ID == p.ID {
			s.policies[i] = p
			break
		}
	}
	s.mu.Unlock()

	return nil
}

// DeletePolicy 按 ID 删除策略（ID 未知时为静默空操作）
func (s *Store) DeletePolicy(ctx context.Context, id string) error {
	s.mu.Lock()
	found := false
	for _, existing := range s.policies {
		if existing.ID == id {
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return nil
	}

	if s.policyRepo != nil {
		if err := s.policyRepo.DeletePolicy(ctx, s.cfg.Biometrics.UserID, id); err != nil {
			return err
		}
	}

	s.mu.Lock()
	for i, existing := range s.policies {
		if existing.ID == id {
			s.policies = append(s.policies[:i], s.policies[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	return nil
}

// Policies 当前策略列表快照（插入顺序）
func (s *Store) Policies() []models.InterventionPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.InterventionPolicy, len(s.policies))
	copy(out, s.policies)
	return out
}

// CheckStressIntervention 判定一笔候选消费是否需要干预
//
// 引擎未在采样、或尚无状态快照时立即返回 false（陈旧缓存值
// 不得触发干预）。首个命中的启用策略记录一条事件并返回 true，
// 之后的策略不再求值。
func (s *Store) CheckStressIntervention(ctx context.Context, spendingAmount float64) bool {
	if !s.engine.IsActive() {
		return false
	}
	state := s.engine.CurrentState()
	if state == nil {
		return false
	}

	var fired *models.InterventionEvent

	s.mu.Lock()
	for _, p := range s.policies {
		if !p.Enabled {
			continue
		}
		if p.Triggers.StressThreshold <= state.StressIndex && spendingAmount >= p.Triggers.SpendingAmount {
			event := models.InterventionEvent{
				ID:          uuid.New().String(),
				StressLevel: state.StressIndex,
				Policy:      p,
				Action:      actionNudgeDisplayed,
				Timestamp:   time.Now(),
			}
			s.events = append([]models.InterventionEvent{event}, s.events...)
			if len(s.events) > maxEventHistory {
				s.events = s.events[:maxEventHistory]
			}
			fired = &event
			break
		}
	}
	s.mu.Unlock()

	if fired == nil {
		return false
	}

	s.logger.Info("Intervention fired",
		zap.String("event_id", fired.ID),
		zap.String("policy_id", fired.Policy.ID),
		zap.Float64("stress_level", fired.StressLevel),
		zap.Float64("spending_amount", spendingAmount),
	)

	// 检查路径的持久化失败只记录，不影响判定结果
	if s.eventsRepo != nil {
		if err := s.eventsRepo.CreateEvent(ctx, s.cfg.Biometrics.UserID, fired); err != nil {
			s.logger.Error("Failed to persist intervention event",
				zap.String("event_id", fired.ID),
				zap.Error(err),
			)
		}
	}

	return true
}

// DismissIntervention 将事件的处理结果置为 dismissed（ID 未知时为空操作）
func (s *Store) DismissIntervention(ctx context.Context, eventID string) {
	s.mu.Lock()
	found := false
	for i := range s.events {
		if s.events[i].ID == eventID {
			s.events[i].Outcome = models.OutcomeDismissed
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return
	}

	if s.eventsRepo != nil {
		if err := s.eventsRepo.UpdateOutcome(ctx, s.cfg.Biometrics.UserID, eventID, models.OutcomeDismissed); err != nil {
			s.logger.Error("Failed to persist intervention outcome",
				zap.String("event_id", eventID),
				zap.Error(err),
			)
		}
	}
}

// Events 事件历史快照（最新在前）
func (s *Store) Events() []models.InterventionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.InterventionEvent, len(s.events))
	copy(out, s.events)
	return out
}

// exportDocument 导出文档结构
type exportDocument struct {
	ExportedAt  time.Time                   `json:"exported_at"`
	UserID      string                      `json:"user_id"`
	Policies    []models.InterventionPolicy `json:"policies"`
	Preferences models.BiometricPreferences `json:"preferences"`
	Events      []models.InterventionEvent  `json:"events"`
}

// ExportData 把当前策略、偏好和事件历史序列化为单个 JSON 文档
func (s *Store) ExportData(ctx context.Context) ([]byte, error) {
	prefs := models.DefaultPreferences()
	if s.prefs != nil {
		loaded, err := s.prefs.Get(ctx, s.cfg.Biometrics.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load preferences for export: %w", err)
		}
		prefs = loaded
	}

	s.mu.Lock()
	doc := exportDocument{
		ExportedAt:  time.Now(),
		UserID:      s.cfg.Biometrics.UserID,
		Policies:    append([]models.InterventionPolicy(nil), s.policies...),
		Preferences: prefs,
		Events:      append([]models.InterventionEvent(nil), s.events...),
	}
	s.mu.Unlock()

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export document: %w", err)
	}

	return data, nil
}

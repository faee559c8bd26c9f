// Package engine 把读数流转化为可执行的压力/健康状态
//
// 主要功能：
// - 有界历史缓冲（FIFO，默认50条），严格按接受顺序追加
// - 压力/健康趋势分类与干预级别推导（纯计算在 wellness 包）
// - 触发器注册表：每次状态重算对全部启用触发器求值并运行回调
// - 状态广播（replay-of-one）与手动检查的时间戳关联
//
// 历史缓冲和触发器注册表由本包独占持有，只通过公开方法修改。
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"spendwell-biometrics/internal/channel"
	"spendwell-biometrics/internal/config"
	"spendwell-biometrics/internal/models"
	"spendwell-biometrics/internal/wellness"
)

// StateHandler 状态订阅回调
type StateHandler func(models.BiometricsState)

// Engine 健康引擎
type Engine struct {
	cfg     *config.Config
	channel *channel.Channel
	logger  *zap.Logger

	mu              sync.Mutex
	history         []models.BiometricReading // 读数历史，FIFO 上限 cfg.Biometrics.HistorySize
	wellnessHistory []float64                 // 每条读数对应的健康评分，与 history 同步封顶
	current         *models.BiometricsState
	triggers        []models.WellnessTrigger
	stateSubs       []StateHandler
	waiters         map[int64]chan models.BiometricsState // 手动检查等待者，按读数时间戳(纳秒)索引
}

// New 创建引擎并订阅通道的读数广播
func New(cfg *config.Config, ch *channel.Channel, logger *zap.Logger) *Engine {
	e := &Engine{
		cfg:     cfg,
		channel: ch,
		logger:  logger,
		waiters: make(map[int64]chan models.BiometricsState),
	}
	ch.SubscribeReadings(e.onReading)
	return e
}

// Start 启动引擎（委托给通道）
func (e *Engine) Start() {
	e.channel.Start()
}

// Stop 停止引擎（委托给通道）
//
// 未完成的手动检查不会被取消，由调用方通过 context 决定放弃时机。
func (e *Engine) Stop() {
	e.channel.Stop()
}

// IsActive 引擎是否在采样
func (e *Engine) IsActive() bool {
	return e.channel.IsActive()
}

// CurrentState 最后一次计算的状态快照；尚无读数时返回 nil（不是错误）
func (e *Engine) CurrentState() *models.BiometricsState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	st := *e.current
	return &st
}

// History 当前历史缓冲快照
func (e *Engine) History() []models.BiometricReading {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.BiometricReading, len(e.history))
	copy(out, e.history)
	return out
}

// AddTrigger 追加触发器（注册表为有序列表，后加入的不覆盖先加入的）
func (e *Engine) AddTrigger(t models.WellnessTrigger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.triggers = append(e.triggers, t)
}

// RemoveTrigger 按 ID 移除触发器（ID 未知时为空操作）
func (e *Engine) RemoveTrigger(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, t := range e.triggers {
		if t.ID == id {
			e.triggers = append(e.triggers[:i], e.triggers[i+1:]...)
			return
		}
	}
}

// UpdateTrigger 按 ID 原位替换触发器（ID 未知时为空操作）
func (e *Engine) UpdateTrigger(t models.WellnessTrigger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.triggers {
		if existing.ID == t.ID {
			e.triggers[i] = t
			return
		}
	}
}

// Triggers 触发器注册表快照
func (e *Engine) Triggers() []models.WellnessTrigger {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.WellnessTrigger, len(e.triggers))
	copy(out, e.triggers)
	return out
}

// SubscribeState 订阅状态广播（replay-of-one：立即回放当前状态）
func (e *Engine) SubscribeState(h StateHandler) {
	e.mu.Lock()
	e.stateSubs = append(e.stateSubs, h)
	var replay *models.BiometricsState
	if e.current != nil {
		st := *e.current
		replay = &st
	}
	e.mu.Unlock()
	if replay != nil {
		h(*replay)
	}
}

// TriggerManualCheck 请求一次带外采样并等待对应状态
//
// 关联契约：等待者在采样时间戳最终确定后、广播投递前注册，
// 用读数时间戳做键，每次调用恰好解析一次，并发手动检查互不串扰。
// 引擎不设内部超时，放弃等待由调用方的 ctx 决定。
func (e *Engine) TriggerManualCheck(ctx context.Context) (*models.BiometricsState, error) {
	resultCh := make(chan models.BiometricsState, 1)
	var key int64

	_, err := e.channel.RequestSample(func(r models.BiometricReading) {
		key = r.Timestamp.UnixNano()
		e.mu.Lock()
		e.waiters[key] = resultCh
		e.mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf("manual check sample rejected: %w", err)
	}

	select {
	case st := <-resultCh:
		return &st, nil
	case <-ctx.Done():
		e.mu.Lock()
		delete(e.waiters, key)
		e.mu.Unlock()
		return nil, ctx.Err()
	}
}

// onReading 通道读数回调：追加历史、重算状态、求值触发器、广播
func (e *Engine) onReading(u channel.ReadingUpdate) {
	r := u.Reading

	e.mu.Lock()

	// 历史缓冲 FIFO 封顶
	limit := e.cfg.Biometrics.HistorySize
	e.history = append(e.history, r)
	if len(e.history) > limit {
		e.history = e.history[len(e.history)-limit:]
	}

	stress := wellness.NeutralStress
	if r.StressIndex != nil {
		stress = *r.StressIndex
	}
	score := wellness.ScoreFromReading(r)
	e.wellnessHistory = append(e.wellnessHistory, score)
	if len(e.wellnessHistory) > limit {
		e.wellnessHistory = e.wellnessHistory[len(e.wellnessHistory)-limit:]
	}

	stressValues := make([]float64, len(e.history))
	for i, h := range e.history {
		if h.StressIndex != nil {
			stressValues[i] = *h.StressIndex
		} else {
			stressValues[i] = wellness.NeutralStress
		}
	}

	stressTrend := wellness.StressTrend(stressValues)
	wellnessTrend := wellness.WellnessTrend(e.wellnessHistory)
	level := wellness.LevelFor(stress, stressTrend)

	state := models.BiometricsState{
		StressIndex:          stress,
		WellnessScore:        score,
		HeartRate:            r.HeartRate,
		HeartRateVariability: r.HeartRateVariability,
		StressTrend:          stressTrend,
		WellnessTrend:        wellnessTrend,
		IsActive:             u.Active,
		ConnectedDevices:     u.Devices,
		InterventionLevel:    level,
		LastReading:          r.Timestamp,
		ConfidenceScore:      r.ConfidenceScore,
		Timestamp:            time.Now(),
	}

	// 触发器求值：所有启用的触发器都参与，任一匹配则标记干预；
	// 无触发器命中时回落到干预级别判断
	var callbacks []func(models.BiometricsState)
	fired := false
	for _, t := range e.triggers {
		if !t.Enabled {
			continue
		}
		if triggerMatches(t, state) {
			fired = true
			if t.Callback != nil {
				callbacks = append(callbacks, t.Callback)
			}
		}
	}
	if fired {
		state.ShouldIntervene = true
	} else {
		state.ShouldIntervene = level != models.InterventionNone
	}

	e.current = &state
	subs := append([]StateHandler(nil), e.stateSubs...)

	key := r.Timestamp.UnixNano()
	waiter, hasWaiter := e.waiters[key]
	if hasWaiter {
		delete(e.waiters, key)
	}
	e.mu.Unlock()

	// 回调与订阅投递在锁外执行
	for _, cb := range callbacks {
		cb(state)
	}
	for _, h := range subs {
		h(state)
	}
	if hasWaiter {
		waiter <- state
	}

	// 可观测性契约：读数时间戳到状态完成的延迟超阈值时告警
	lag := time.Since(r.Timestamp)
	warnAfter := time.Duration(e.cfg.Biometrics.ComputeWarnMillis) * time.Millisecond
	if lag > warnAfter {
		e.logger.Warn("State computation lagged behind reading",
			zap.Duration("lag", lag),
			zap.Duration("threshold", warnAfter),
			zap.String("device_id", r.DeviceID),
		)
	}
}

// triggerMatches 单个触发器对状态快照的求值
//
// trend 类型的触发器比较压力趋势方向（above=rising, below=falling,
// equal=stable），阈值不参与；其余类型按 condition 比较对应数值。
func triggerMatches(t models.WellnessTrigger, st models.BiometricsState) bool {
	if t.Type == models.TriggerTypeTrend {
		switch t.Condition {
		case models.ConditionAbove:
			return st.StressTrend == models.StressTrendRising
		case models.ConditionBelow:
			return st.StressTrend == models.StressTrendFalling
		case models.ConditionEqual:
			return st.StressTrend == models.StressTrendStable
		}
		return false
	}

	var value float64
	switch t.Type {
	case models.TriggerTypeStress:
		value = st.StressIndex
	case models.TriggerTypeWellness:
		value = st.WellnessScore
	case models.TriggerTypeHeartRate:
		if st.HeartRate == nil {
			return false
		}
		value = *st.HeartRate
	default:
		return false
	}

	switch t.Condition {
	case models.ConditionAbove:
		return value > t.Threshold
	case models.ConditionBelow:
		return value < t.Threshold
	case models.ConditionEqual:
		return value == t.Threshold
	}
	return false
}

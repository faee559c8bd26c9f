package models

// TriggerType 触发器作用的指标
type TriggerType string

const (
	TriggerTypeStress    TriggerType = "stress"
	TriggerTypeWellness  TriggerType = "wellness"
	TriggerTypeHeartRate TriggerType = "heartrate"
	TriggerTypeTrend     TriggerType = "trend"
)

// TriggerCondition 阈值比较方向
type TriggerCondition string

const (
	ConditionAbove TriggerCondition = "above"
	ConditionBelow TriggerCondition = "below"
	ConditionEqual TriggerCondition = "equal"
)

// WellnessTrigger 通用阈值规则，每次状态重算时求值
//
// Callback 为可选副作用回调，匹配时在状态快照上调用（不参与序列化）。
type WellnessTrigger struct {
	ID        string                      `json:"id"`
	Type      TriggerType                 `json:"type"`
	Threshold float64                     `json:"threshold"`
	Condition TriggerCondition            `json:"condition"`
	Enabled   bool                        `json:"enabled"`
	Callback  func(state BiometricsState) `json:"-"`
}

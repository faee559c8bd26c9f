package models

import "time"

// StressTrend 压力趋势分类（3对3滑动窗口比较的结果）
type StressTrend string

const (
	StressTrendRising  StressTrend = "rising"
	StressTrendFalling StressTrend = "falling"
	StressTrendStable  StressTrend = "stable"
)

// WellnessTrend 健康评分趋势分类
type WellnessTrend string

const (
	WellnessTrendImproving WellnessTrend = "improving"
	WellnessTrendDeclining WellnessTrend = "declining"
	WellnessTrendStable    WellnessTrend = "stable"
)

// InterventionLevel 干预级别（none < mild < moderate < severe）
type InterventionLevel string

const (
	InterventionNone     InterventionLevel = "none"
	InterventionMild     InterventionLevel = "mild"
	InterventionModerate InterventionLevel = "moderate"
	InterventionSevere   InterventionLevel = "severe"
)

// Rank 返回级别的序数，用于级别比较
func (l InterventionLevel) Rank() int {
	switch l {
	case InterventionMild:
		return 1
	case InterventionModerate:
		return 2
	case InterventionSevere:
		return 3
	default:
		return 0
	}
}

// BiometricsState 每次接受读数后重新计算的整合状态快照
//
// ShouldIntervene 始终由 InterventionLevel 和触发器在同一快照上
// 的求值结果决定，不会被独立设置。
type BiometricsState struct {
	StressIndex          float64               `json:"stress_index"`
	WellnessScore        float64               `json:"wellness_score"`
	HeartRate            *float64              `json:"heart_rate,omitempty"`
	HeartRateVariability *float64              `json:"heart_rate_variability,omitempty"`
	StressTrend          StressTrend           `json:"stress_trend"`
	WellnessTrend        WellnessTrend         `json:"wellness_trend"`
	IsActive             bool                  `json:"is_active"`
	ConnectedDevices     []BiometricDataSource `json:"connected_devices"`
	ShouldIntervene      bool                  `json:"should_intervene"`
	InterventionLevel    InterventionLevel     `json:"intervention_level"`
	LastReading          time.Time             `json:"last_reading"`
	ConfidenceScore      *float64              `json:"confidence_score,omitempty"`
	Timestamp            time.Time             `json:"timestamp"`
}

package models

import "time"

// PolicyTriggers 策略的触发条件（压力阈值 × 消费金额阈值）
type PolicyTriggers struct {
	StressThreshold float64 `json:"stress_threshold"`
	SpendingAmount  float64 `json:"spending_amount"`
}

// InterventionPolicy 消费守护策略
//
// 注意：阈值不做符号校验，负数阈值会被原样接受（与前端行为一致的已知缺口）。
type InterventionPolicy struct {
	ID       string         `json:"id"`
	Enabled  bool           `json:"enabled"`
	Triggers PolicyTriggers `json:"triggers"`
}

// InterventionOutcome 干预事件的用户处理结果
type InterventionOutcome string

const (
	OutcomePreventedPurchase InterventionOutcome = "prevented_purchase"
	OutcomeDismissed         InterventionOutcome = "dismissed"
	OutcomeIgnored           InterventionOutcome = "ignored"
)

// InterventionEvent 一次策略命中的记录
//
// 创建后不可变，仅 Outcome 可被用户操作（如 dismiss）覆盖。
type InterventionEvent struct {
	ID          string              `json:"id"`
	StressLevel float64             `json:"stress_level"` // 触发时刻的压力指数快照
	Policy      InterventionPolicy  `json:"policy"`
	Action      string              `json:"action"` // 如 "nudge_displayed"
	Outcome     InterventionOutcome `json:"outcome,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}

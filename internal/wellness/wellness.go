// Package wellness 提供压力/健康状态的纯计算函数
//
// 主要功能：
// - 健康评分：压力、HRV、心率的加权组合，映射到 [0,100]
// - 趋势分类：3对3滑动窗口均值比较（压力死区 ±5，健康死区 ±8）
// - 干预级别：(压力指数, 压力趋势) 到四级严重度的状态机
//
// 这些函数无状态、无副作用，由 engine 负责历史缓冲与编排，
// channel 的派生健康评分子流也复用 Score。
package wellness

import (
	"math"

	"spendwell-biometrics/internal/models"
)

// 缺失输入的中性默认值
const (
	NeutralStress    = 50.0
	NeutralHRV       = 50.0
	NeutralHeartRate = 70.0
)

// 趋势死区：健康评分本身是复合信号、噪声更大，死区更宽
const (
	StressTrendDeadband   = 5.0
	WellnessTrendDeadband = 8.0
)

// Score 计算健康评分
//
// wellness = 0.4*(100−stress) + 0.3*min(100, hrv*2) + 0.3*max(0, 100−|hr−70|*2)
// 四舍五入取整并钳制到 [0,100]；缺失输入取中性中位值。
func Score(stress, hrv, heartRate *float64) float64 {
	s := NeutralStress
	if stress != nil {
		s = *stress
	}
	h := NeutralHRV
	if hrv != nil {
		h = *hrv
	}
	hr := NeutralHeartRate
	if heartRate != nil {
		hr = *heartRate
	}

	raw := 0.4*(100-s) + 0.3*math.Min(100, h*2) + 0.3*math.Max(0, 100-math.Abs(hr-70)*2)
	return clamp(math.Round(raw), 0, 100)
}

// ScoreFromReading 直接从一条读数计算健康评分
func ScoreFromReading(r models.BiometricReading) float64 {
	return Score(r.StressIndex, r.HeartRateVariability, r.HeartRate)
}

// windowDelta 计算最近3个值的均值与其前面至多3个值的均值之差
//
// 历史不足3个值、或前置窗口为空时返回 ok=false（趋势视为 stable）。
func windowDelta(values []float64) (float64, bool) {
	n := len(values)
	if n < 3 {
		return 0, false
	}
	recent := values[n-3:]
	start := n - 6
	if start < 0 {
		start = 0
	}
	previous := values[start : n-3]
	if len(previous) == 0 {
		return 0, false
	}
	return mean(recent) - mean(previous), true
}

// StressTrend 分类压力指数的趋势
func StressTrend(values []float64) models.StressTrend {
	delta, ok := windowDelta(values)
	if !ok {
		return models.StressTrendStable
	}
	switch {
	case delta > StressTrendDeadband:
		return models.StressTrendRising
	case delta < -StressTrendDeadband:
		return models.StressTrendFalling
	default:
		return models.StressTrendStable
	}
}

// WellnessTrend 分类健康评分的趋势
func WellnessTrend(values []float64) models.WellnessTrend {
	delta, ok := windowDelta(values)
	if !ok {
		return models.WellnessTrendStable
	}
	switch {
	case delta > WellnessTrendDeadband:
		return models.WellnessTrendImproving
	case delta < -WellnessTrendDeadband:
		return models.WellnessTrendDeclining
	default:
		return models.WellnessTrendStable
	}
}

// LevelFor 由当前压力指数和压力趋势推导干预级别
//
// 自上而下求值，首个匹配的档位生效。各档阈值刻意重叠：
// rising 趋势会让同一绝对压力值比平稳趋势更早升档。
func LevelFor(stress float64, trend models.StressTrend) models.InterventionLevel {
	rising := trend == models.StressTrendRising
	switch {
	case stress >= 85 || (stress >= 70 && rising):
		return models.InterventionSevere
	case stress >= 70 || (stress >= 60 && rising):
		return models.InterventionModerate
	case stress >= 55 || (stress >= 45 && rising):
		return models.InterventionMild
	default:
		return models.InterventionNone
	}
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

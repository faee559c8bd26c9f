package wellness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"spendwell-biometrics/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestScore_AllNeutral(t *testing.T) {
	// stress=50, hrv=50, hr=70: 0.4*50 + 0.3*100 + 0.3*100 = 80
	score := Score(nil, nil, nil)
	assert.Equal(t, 80.0, score)
}

func TestScore_HighStress(t *testing.T) {
	// stress=100, hrv=0, hr=70: 0.4*0 + 0.3*0 + 0.3*100 = 30
	score := Score(floatPtr(100), floatPtr(0), floatPtr(70))
	assert.Equal(t, 30.0, score)
}

func TestScore_ClampedToRange(t *testing.T) {
	// 极端心率把最后一项压到0，结果仍在 [0,100]
	score := Score(floatPtr(100), floatPtr(0), floatPtr(220))
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
}

func TestScore_Rounded(t *testing.T) {
	// stress=33: 0.4*67 = 26.8; hrv=50 -> 30; hr=70 -> 30; 总和 86.8 -> 87
	score := Score(floatPtr(33), floatPtr(50), floatPtr(70))
	assert.Equal(t, 87.0, score)
}

func TestStressTrend_TooFewSamples(t *testing.T) {
	assert.Equal(t, models.StressTrendStable, StressTrend(nil))
	assert.Equal(t, models.StressTrendStable, StressTrend([]float64{50}))
	assert.Equal(t, models.StressTrendStable, StressTrend([]float64{50, 60}))
	// 恰好3个：前置窗口为空，仍为 stable
	assert.Equal(t, models.StressTrendStable, StressTrend([]float64{50, 60, 70}))
}

func TestStressTrend_Rising(t *testing.T) {
	// 前3均值 41，后3均值 75，差 > +5
	values := []float64{40, 42, 41, 70, 75, 80}
	assert.Equal(t, models.StressTrendRising, StressTrend(values))
}

func TestStressTrend_Falling(t *testing.T) {
	values := []float64{80, 78, 79, 50, 45, 40}
	assert.Equal(t, models.StressTrendFalling, StressTrend(values))
}

func TestStressTrend_StableWithinDeadband(t *testing.T) {
	// 窗口差 +3，在 ±5 死区内
	values := []float64{50, 50, 50, 53, 53, 53}
	assert.Equal(t, models.StressTrendStable, StressTrend(values))
}

func TestStressTrend_MonotonicSequences(t *testing.T) {
	rising := []float64{10, 20, 30, 40, 50, 60, 70, 80}
	assert.Equal(t, models.StressTrendRising, StressTrend(rising))

	falling := []float64{80, 70, 60, 50, 40, 30, 20, 10}
	assert.Equal(t, models.StressTrendFalling, StressTrend(falling))
}

func TestWellnessTrend_WiderDeadband(t *testing.T) {
	// 窗口差 +6：对压力而言 rising，对健康评分仍是 stable
	values := []float64{50, 50, 50, 56, 56, 56}
	assert.Equal(t, models.WellnessTrendStable, WellnessTrend(values))

	improving := []float64{50, 50, 50, 60, 60, 60}
	assert.Equal(t, models.WellnessTrendImproving, WellnessTrend(improving))

	declining := []float64{60, 60, 60, 50, 50, 50}
	assert.Equal(t, models.WellnessTrendDeclining, WellnessTrend(declining))
}

func TestLevelFor_Table(t *testing.T) {
	tests := []struct {
		name   string
		stress float64
		trend  models.StressTrend
		want   models.InterventionLevel
	}{
		{"severe by absolute stress", 85, models.StressTrendStable, models.InterventionSevere},
		{"severe by rising escalation", 70, models.StressTrendRising, models.InterventionSevere},
		{"moderate flat at 70", 70, models.StressTrendStable, models.InterventionModerate},
		{"moderate by rising escalation", 60, models.StressTrendRising, models.InterventionModerate},
		{"mild flat at 55", 55, models.StressTrendStable, models.InterventionMild},
		{"mild by rising escalation", 45, models.StressTrendRising, models.InterventionMild},
		{"none below all bands", 44, models.StressTrendRising, models.InterventionNone},
		{"none flat at 54", 54, models.StressTrendFalling, models.InterventionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelFor(tt.stress, tt.trend))
		})
	}
}

// 固定趋势下，干预级别对压力单调不减
func TestLevelFor_MonotonicInStress(t *testing.T) {
	trends := []models.StressTrend{
		models.StressTrendRising,
		models.StressTrendFalling,
		models.StressTrendStable,
	}

	for _, trend := range trends {
		prev := LevelFor(0, trend)
		for stress := 1.0; stress <= 100; stress++ {
			level := LevelFor(stress, trend)
			assert.GreaterOrEqual(t, level.Rank(), prev.Rank(),
				"level must not decrease: trend=%s stress=%v", trend, stress)
			prev = level
		}
	}
}

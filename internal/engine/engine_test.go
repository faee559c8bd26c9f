package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"spendwell-biometrics/internal/channel"
	"spendwell-biometrics/internal/config"
	"spendwell-biometrics/internal/models"
)

// scriptedProducer 依次返回脚本化的压力值（用尽后重复最后一个）
type scriptedProducer struct {
	mu     sync.Mutex
	values []float64
	idx    int
}

func (p *scriptedProducer) Next() models.BiometricReading {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.values[p.idx]
	if p.idx < len(p.values)-1 {
		p.idx++
	}
	hr := 70.0
	return models.BiometricReading{
		Timestamp:   time.Now(),
		DeviceID:    "test-device",
		StressIndex: &v,
		HeartRate:   &hr,
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Biometrics.SampleInterval = 3600
	cfg.Biometrics.HistorySize = 50
	cfg.Biometrics.StressEpsilon = 2
	cfg.Biometrics.HeartRateEpsilon = 1
	cfg.Biometrics.WellnessEpsilon = 1
	cfg.Biometrics.ComputeWarnMillis = 50
	return cfg
}

func newTestEngine(t *testing.T, values ...float64) (*Engine, *channel.Channel) {
	t.Helper()
	if len(values) == 0 {
		values = []float64{40}
	}
	cfg := testConfig()
	prod := &scriptedProducer{values: values}
	ch := channel.New(cfg, prod, zap.NewNop())
	eng := New(cfg, ch, zap.NewNop())
	return eng, ch
}

func publishStress(ch *channel.Channel, stress float64) {
	hr := 70.0
	ch.PublishReading(models.BiometricReading{
		Timestamp:   time.Now(),
		DeviceID:    "test-device",
		StressIndex: &stress,
		HeartRate:   &hr,
	})
}

func TestEngine_NoStateBeforeFirstReading(t *testing.T) {
	eng, _ := newTestEngine(t)
	assert.Nil(t, eng.CurrentState())
}

func TestEngine_StateComputedOnReading(t *testing.T) {
	eng, ch := newTestEngine(t)

	publishStress(ch, 40)

	state := eng.CurrentState()
	require.NotNil(t, state)
	assert.Equal(t, 40.0, state.StressIndex)
	assert.Equal(t, models.StressTrendStable, state.StressTrend)
	assert.Equal(t, models.InterventionNone, state.InterventionLevel)
	assert.False(t, state.ShouldIntervene)
	// stress=40, hrv缺失取50, hr=70: 0.4*60 + 30 + 30 = 84
	assert.Equal(t, 84.0, state.WellnessScore)
}

// 压力序列 [40,42,41,70,75,80]：趋势 rising，80 ≥ 70 且 rising 触发 severe 档
func TestEngine_RisingTrendEscalatesToSevere(t *testing.T) {
	eng, ch := newTestEngine(t)

	for _, stress := range []float64{40, 42, 41, 70, 75, 80} {
		publishStress(ch, stress)
	}

	state := eng.CurrentState()
	require.NotNil(t, state)
	assert.Equal(t, models.StressTrendRising, state.StressTrend)
	assert.Equal(t, models.InterventionSevere, state.InterventionLevel)
	assert.True(t, state.ShouldIntervene)
}

func TestEngine_HistoryCapped(t *testing.T) {
	eng, ch := newTestEngine(t)

	for i := 0; i < 51; i++ {
		publishStress(ch, float64(i%100))
	}

	history := eng.History()
	require.Len(t, history, 50)
	// 最旧的一条(0)被淘汰，最新的一条(50)在队尾
	assert.Equal(t, 1.0, *history[0].StressIndex)
	assert.Equal(t, 50.0, *history[49].StressIndex)
}

func TestEngine_StateSubscribeReplayOfOne(t *testing.T) {
	eng, ch := newTestEngine(t)

	publishStress(ch, 55)

	var got *models.BiometricsState
	eng.SubscribeState(func(st models.BiometricsState) { got = &st })

	require.NotNil(t, got)
	assert.Equal(t, 55.0, got.StressIndex)
}

func TestEngine_TriggerFiresCallbackAndMarksIntervene(t *testing.T) {
	eng, ch := newTestEngine(t)

	var calledWith []float64
	eng.AddTrigger(models.WellnessTrigger{
		ID:        "stress-high",
		Type:      models.TriggerTypeStress,
		Threshold: 30,
		Condition: models.ConditionAbove,
		Enabled:   true,
		Callback:  func(st models.BiometricsState) { calledWith = append(calledWith, st.StressIndex) },
	})

	publishStress(ch, 35)

	state := eng.CurrentState()
	require.NotNil(t, state)
	// 级别为 none，但触发器命中 -> shouldIntervene
	assert.Equal(t, models.InterventionNone, state.InterventionLevel)
	assert.True(t, state.ShouldIntervene)
	assert.Equal(t, []float64{35}, calledWith)
}

func TestEngine_DisabledTriggerIgnored(t *testing.T) {
	eng, ch := newTestEngine(t)

	called := false
	eng.AddTrigger(models.WellnessTrigger{
		ID:        "stress-high",
		Type:      models.TriggerTypeStress,
		Threshold: 30,
		Condition: models.ConditionAbove,
		Enabled:   false,
		Callback:  func(models.BiometricsState) { called = true },
	})

	publishStress(ch, 35)

	state := eng.CurrentState()
	require.NotNil(t, state)
	assert.False(t, called)
	assert.False(t, state.ShouldIntervene)
}

func TestEngine_AllEnabledTriggersRunCallbacks(t *testing.T) {
	eng, ch := newTestEngine(t)

	var order []string
	eng.AddTrigger(models.WellnessTrigger{
		ID: "first", Type: models.TriggerTypeStress, Threshold: 30,
		Condition: models.ConditionAbove, Enabled: true,
		Callback: func(models.BiometricsState) { order = append(order, "first") },
	})
	eng.AddTrigger(models.WellnessTrigger{
		ID: "second", Type: models.TriggerTypeWellness, Threshold: 100,
		Condition: models.ConditionBelow, Enabled: true,
		Callback: func(models.BiometricsState) { order = append(order, "second") },
	})

	publishStress(ch, 35)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEngine_RemoveAndUpdateTrigger(t *testing.T) {
	eng, _ := newTestEngine(t)

	eng.AddTrigger(models.WellnessTrigger{ID: "t1", Type: models.TriggerTypeStress, Enabled: true})
	eng.AddTrigger(models.WellnessTrigger{ID: "t2", Type: models.TriggerTypeWellness, Enabled: true})

	eng.UpdateTrigger(models.WellnessTrigger{ID: "t1", Type: models.TriggerTypeStress, Threshold: 99, Enabled: false})
	triggers := eng.Triggers()
	require.Len(t, triggers, 2)
	assert.Equal(t, 99.0, triggers[0].Threshold)
	assert.False(t, triggers[0].Enabled)

	// 未知 ID：空操作
	eng.UpdateTrigger(models.WellnessTrigger{ID: "unknown", Threshold: 1})
	eng.RemoveTrigger("unknown")
	assert.Len(t, eng.Triggers(), 2)

	eng.RemoveTrigger("t1")
	triggers = eng.Triggers()
	require.Len(t, triggers, 1)
	assert.Equal(t, "t2", triggers[0].ID)
}

func TestEngine_ManualCheckResolvesWithMatchingState(t *testing.T) {
	eng, _ := newTestEngine(t, 65)

	state, err := eng.TriggerManualCheck(context.Background())

	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 65.0, state.StressIndex)

	// 引擎当前状态就是手动检查产生的状态
	current := eng.CurrentState()
	require.NotNil(t, current)
	assert.Equal(t, state.LastReading, current.LastReading)
}

func TestEngine_ConcurrentManualChecksDoNotCrossResolve(t *testing.T) {
	eng, _ := newTestEngine(t, 10, 20, 30, 40, 50, 60, 70, 80)

	var wg sync.WaitGroup
	results := make(chan models.BiometricsState, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := eng.TriggerManualCheck(context.Background())
			if assert.NoError(t, err) {
				results <- *st
			}
		}()
	}
	wg.Wait()
	close(results)

	// 每次调用恰好解析一次，且读数时间戳两两不同
	seen := make(map[int64]bool)
	count := 0
	for st := range results {
		count++
		key := st.LastReading.UnixNano()
		assert.False(t, seen[key], "two manual checks resolved on the same reading")
		seen[key] = true
	}
	assert.Equal(t, 8, count)
}

func TestEngine_ManualCheckCancelled(t *testing.T) {
	eng, _ := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 取消的上下文：正常实现会在采样同步投递后立即解析；
	// 两种结果都合法，但不能永久阻塞
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = eng.TriggerManualCheck(ctx)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("manual check blocked forever")
	}
}

func TestEngine_SlowStateComputationWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := testConfig()
	ch := channel.New(cfg, &scriptedProducer{values: []float64{40}}, zap.NewNop())
	New(cfg, ch, zap.New(core))

	// 读数时间戳落后超过 ComputeWarnMillis：必须告警
	stress := 40.0
	_, err := ch.PublishReading(models.BiometricReading{
		Timestamp:   time.Now().Add(-200 * time.Millisecond),
		DeviceID:    "test-device",
		StressIndex: &stress,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("State computation lagged behind reading").Len())
}

func TestEngine_FreshReadingDoesNotWarn(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := testConfig()
	ch := channel.New(cfg, &scriptedProducer{values: []float64{40}}, zap.NewNop())
	New(cfg, ch, zap.New(core))

	stress := 40.0
	_, err := ch.PublishReading(models.BiometricReading{
		Timestamp:   time.Now(),
		DeviceID:    "test-device",
		StressIndex: &stress,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, logs.FilterMessage("State computation lagged behind reading").Len())
}

func TestEngine_StartStopDelegateToChannel(t *testing.T) {
	eng, ch := newTestEngine(t)

	assert.False(t, eng.IsActive())
	eng.Start()
	assert.True(t, ch.IsActive())
	eng.Stop()
	assert.False(t, eng.IsActive())
}

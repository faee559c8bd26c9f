package producer

import (
	"math/rand"
	"sync"
	"time"

	"spendwell-biometrics/internal/models"
)

// SyntheticProducer 合成读数生成器（无真实设备时的默认生产者）
//
// 压力指数做有界随机游走，心率/HRV/皮电等字段围绕压力水平
// 做相关扰动，保证每条读数都能通过 validator 的范围校验。
type SyntheticProducer struct {
	mu       sync.Mutex
	rng      *rand.Rand
	deviceID string
	stress   float64
}

// NewSyntheticProducer 创建合成生成器
func NewSyntheticProducer(deviceID string, seed int64) *SyntheticProducer {
	return &SyntheticProducer{
		rng:      rand.New(rand.NewSource(seed)),
		deviceID: deviceID,
		stress:   40,
	}
}

// Next 生成下一条读数
func (p *SyntheticProducer) Next() models.BiometricReading {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 压力随机游走，钳制在 [5, 95]
	p.stress += (p.rng.Float64() - 0.5) * 10
	if p.stress < 5 {
		p.stress = 5
	}
	if p.stress > 95 {
		p.stress = 95
	}

	stress := p.stress
	// 心率随压力上升：静息 60 + 压力分量 + 噪声
	heartRate := clampRange(60+stress*0.4+p.rng.Float64()*8, 30, 220)
	// HRV 与压力负相关
	hrv := clampRange(80-stress*0.5+p.rng.Float64()*10, 0, 100)
	gsr := clampRange(1+stress*0.05+p.rng.Float64(), 0, 10)
	skinTemp := clampRange(97.5+p.rng.Float64()*1.5, 90, 110)
	respRate := clampRange(12+stress*0.08+p.rng.Float64()*2, 8, 40)
	spo2 := clampRange(96+p.rng.Float64()*3, 0, 100)
	confidence := clampRange(0.75+p.rng.Float64()*0.25, 0, 1)

	return models.BiometricReading{
		Timestamp:             time.Now(),
		DeviceID:              p.deviceID,
		HeartRate:             &heartRate,
		HeartRateVariability:  &hrv,
		GalvanicSkinResponse:  &gsr,
		SkinTemperature:       &skinTemp,
		RespiratoryRate:       &respRate,
		BloodOxygenSaturation: &spo2,
		StressIndex:           &stress,
		ConfidenceScore:       &confidence,
	}
}

func clampRange(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

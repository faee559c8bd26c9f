package models

import "time"

// BiometricReading 一次瞬时生理采样（来自可穿戴设备或手动录入）
//
// 可选字段使用指针表示"未采集"，字段有效范围见 validator 包：
// - HeartRate: [30, 220] bpm
// - HeartRateVariability: [0, 100]
// - GalvanicSkinResponse: [0, 10]
// - SkinTemperature: [90, 110] °F
// - RespiratoryRate: [8, 40]
// - BloodOxygenSaturation: [0, 100] %
// - StressIndex: [0, 100]
// - ConfidenceScore: [0, 1]
type BiometricReading struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`

	HeartRate             *float64 `json:"heart_rate,omitempty"`
	HeartRateVariability  *float64 `json:"heart_rate_variability,omitempty"`
	GalvanicSkinResponse  *float64 `json:"galvanic_skin_response,omitempty"`
	SkinTemperature       *float64 `json:"skin_temperature,omitempty"`
	RespiratoryRate       *float64 `json:"respiratory_rate,omitempty"`
	BloodOxygenSaturation *float64 `json:"blood_oxygen_saturation,omitempty"`
	StressIndex           *float64 `json:"stress_index,omitempty"`
	ConfidenceScore       *float64 `json:"confidence_score,omitempty"`
}

// DeviceType 设备类型
type DeviceType string

const (
	DeviceTypeWatch       DeviceType = "watch"
	DeviceTypeRing        DeviceType = "ring"
	DeviceTypeFitnessBand DeviceType = "fitness-band"
	DeviceTypeManual      DeviceType = "manual"
)

// BiometricDataSource 已连接的数据源设备描述
type BiometricDataSource struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        DeviceType        `json:"type"`
	IsConnected bool              `json:"is_connected"`
	LastReading *BiometricReading `json:"last_reading,omitempty"`
}

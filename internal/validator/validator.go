// Package validator 对原始生物特征读数做逐字段范围校验
//
// 校验失败的读数必须被调用方丢弃，不得进入 Channel 或历史缓冲。
// 校验本身没有副作用。
package validator

import (
	"errors"
	"fmt"

	"spendwell-biometrics/internal/models"
)

var (
	// ErrMissingTimestamp 读数缺少时间戳
	ErrMissingTimestamp = errors.New("reading timestamp is required")
	// ErrMissingDeviceID 读数缺少设备ID
	ErrMissingDeviceID = errors.New("reading device_id is required")
)

// RangeError 某个字段超出有效范围
type RangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("field %s out of range: %v (valid: [%v, %v])", e.Field, e.Value, e.Min, e.Max)
}

// fieldBound 单个可选字段的有效范围
type fieldBound struct {
	name  string
	value *float64
	min   float64
	max   float64
}

// ValidateReading 校验一条候选读数
//
// Timestamp 和 DeviceID 为必填；每个存在的可选数值字段必须落在其
// 文档化范围内。返回 nil 表示读数有效；否则返回 *RangeError 或
// 缺失字段的哨兵错误。
func ValidateReading(r *models.BiometricReading) error {
	if r.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if r.DeviceID == "" {
		return ErrMissingDeviceID
	}

	bounds := []fieldBound{
		{"heart_rate", r.HeartRate, 30, 220},
		{"heart_rate_variability", r.HeartRateVariability, 0, 100},
		{"galvanic_skin_response", r.GalvanicSkinResponse, 0, 10},
		{"skin_temperature", r.SkinTemperature, 90, 110},
		{"respiratory_rate", r.RespiratoryRate, 8, 40},
		{"blood_oxygen_saturation", r.BloodOxygenSaturation, 0, 100},
		{"stress_index", r.StressIndex, 0, 100},
		{"confidence_score", r.ConfidenceScore, 0, 1},
	}

	for _, b := range bounds {
		if b.value == nil {
			continue
		}
		if *b.value < b.min || *b.value > b.max {
			return &RangeError{Field: b.name, Value: *b.value, Min: b.min, Max: b.max}
		}
	}

	return nil
}

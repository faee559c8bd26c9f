package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwell-biometrics/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func validReading() models.BiometricReading {
	return models.BiometricReading{
		Timestamp:             time.Now(),
		DeviceID:              "device-1",
		HeartRate:             floatPtr(72),
		HeartRateVariability:  floatPtr(55),
		GalvanicSkinResponse:  floatPtr(2.5),
		SkinTemperature:       floatPtr(98.6),
		RespiratoryRate:       floatPtr(16),
		BloodOxygenSaturation: floatPtr(98),
		StressIndex:           floatPtr(40),
		ConfidenceScore:       floatPtr(0.9),
	}
}

func TestValidateReading_Valid(t *testing.T) {
	r := validReading()
	assert.NoError(t, ValidateReading(&r))
}

func TestValidateReading_OptionalFieldsAbsent(t *testing.T) {
	r := models.BiometricReading{
		Timestamp: time.Now(),
		DeviceID:  "device-1",
	}
	assert.NoError(t, ValidateReading(&r))
}

func TestValidateReading_MissingTimestamp(t *testing.T) {
	r := validReading()
	r.Timestamp = time.Time{}
	assert.ErrorIs(t, ValidateReading(&r), ErrMissingTimestamp)
}

func TestValidateReading_MissingDeviceID(t *testing.T) {
	r := validReading()
	r.DeviceID = ""
	assert.ErrorIs(t, ValidateReading(&r), ErrMissingDeviceID)
}

func TestValidateReading_OutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.BiometricReading)
		field  string
	}{
		{"heart rate too low", func(r *models.BiometricReading) { r.HeartRate = floatPtr(25) }, "heart_rate"},
		{"heart rate too high", func(r *models.BiometricReading) { r.HeartRate = floatPtr(230) }, "heart_rate"},
		{"hrv negative", func(r *models.BiometricReading) { r.HeartRateVariability = floatPtr(-1) }, "heart_rate_variability"},
		{"gsr too high", func(r *models.BiometricReading) { r.GalvanicSkinResponse = floatPtr(10.5) }, "galvanic_skin_response"},
		{"skin temp too low", func(r *models.BiometricReading) { r.SkinTemperature = floatPtr(85) }, "skin_temperature"},
		{"respiratory rate too high", func(r *models.BiometricReading) { r.RespiratoryRate = floatPtr(45) }, "respiratory_rate"},
		{"spo2 too high", func(r *models.BiometricReading) { r.BloodOxygenSaturation = floatPtr(101) }, "blood_oxygen_saturation"},
		{"stress index too high", func(r *models.BiometricReading) { r.StressIndex = floatPtr(120) }, "stress_index"},
		{"confidence above one", func(r *models.BiometricReading) { r.ConfidenceScore = floatPtr(1.5) }, "confidence_score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReading()
			tt.mutate(&r)

			err := ValidateReading(&r)

			require.Error(t, err)
			var rangeErr *RangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, tt.field, rangeErr.Field)
		})
	}
}

func TestValidateReading_BoundaryValuesAccepted(t *testing.T) {
	r := validReading()
	r.HeartRate = floatPtr(30)
	r.HeartRateVariability = floatPtr(100)
	r.GalvanicSkinResponse = floatPtr(0)
	r.SkinTemperature = floatPtr(110)
	r.RespiratoryRate = floatPtr(8)
	r.BloodOxygenSaturation = floatPtr(100)
	r.StressIndex = floatPtr(0)
	r.ConfidenceScore = floatPtr(1)

	assert.NoError(t, ValidateReading(&r))
}

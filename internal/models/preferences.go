package models

// WearableIntegrations 可穿戴设备接入开关
type WearableIntegrations struct {
	AppleWatch  bool `json:"apple_watch"`
	OuraRing    bool `json:"oura_ring"`
	FitnessBand bool `json:"fitness_band"`
	ManualEntry bool `json:"manual_entry"`
}

// DataRetention 各类数据的保留天数
type DataRetention struct {
	RawBiometricsDays      int `json:"raw_biometrics_days"`
	StressScoresDays       int `json:"stress_scores_days"`
	InterventionEventsDays int `json:"intervention_events_days"`
}

// PrivacyFlags 隐私开关
type PrivacyFlags struct {
	ShareWithFamily    bool `json:"share_with_family"`
	AnonymousAnalytics bool `json:"anonymous_analytics"`
	ExportEnabled      bool `json:"export_enabled"`
}

// BiometricPreferences 用户的生物特征相关偏好设置
type BiometricPreferences struct {
	Wearables WearableIntegrations `json:"wearables"`
	Retention DataRetention        `json:"retention"`
	Privacy   PrivacyFlags         `json:"privacy"`
}

// DefaultPreferences 返回默认偏好（保守设置：不共享、可导出）
func DefaultPreferences() BiometricPreferences {
	return BiometricPreferences{
		Wearables: WearableIntegrations{
			ManualEntry: true,
		},
		Retention: DataRetention{
			RawBiometricsDays:      30,
			StressScoresDays:       90,
			InterventionEventsDays: 365,
		},
		Privacy: PrivacyFlags{
			ExportEnabled: true,
		},
	}
}

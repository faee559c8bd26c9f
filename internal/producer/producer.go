package producer

import "spendwell-biometrics/internal/models"

// SampleProducer 采样生产者接口
//
// Channel 在每个采样周期调用一次 Next。真实部署由 MQTT 桥接
// 旁路注入读数，Next 的实现可以是合成生成器。
type SampleProducer interface {
	Next() models.BiometricReading
}

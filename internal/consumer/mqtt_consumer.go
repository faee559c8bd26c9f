package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"spendwell-biometrics/internal/channel"
	"spendwell-biometrics/internal/config"
	"spendwell-biometrics/internal/models"
	mqttc "spendwell-biometrics/internal/mqtt"
)

// MQTTConsumer 可穿戴桥接消费者
//
// 真实设备桥把读数批量发布到 MQTT 主题（JSON 数组），
// 消费者逐条经 PublishReading 注入通道，校验由通道完成。
type MQTTConsumer struct {
	config     *config.Config
	mqttClient *mqttc.Client
	channel    *channel.Channel
	logger     *zap.Logger
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqttc.Client,
	ch *channel.Channel,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		channel:    ch,
		logger:     logger,
	}
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	topic := c.config.MQTT.Topic
	if topic == "" {
		return fmt.Errorf("mqtt topic not configured")
	}

	if err := c.mqttClient.Subscribe(topic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to readings topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", topic),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop() {
	topic := c.config.MQTT.Topic
	if topic != "" {
		if err := c.mqttClient.Unsubscribe(topic); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}

	c.logger.Info("MQTT consumer stopped")
}

// handleMessage 处理一批读数消息
//
// 单条校验失败只丢弃该条并记录，不中断整批，也不影响采样流。
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	var readings []models.BiometricReading
	if err := json.Unmarshal(payload, &readings); err != nil {
		c.logger.Error("Failed to unmarshal readings payload",
			zap.String("topic", topic),
			zap.Int("payload_size", len(payload)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal readings: %w", err)
	}

	for i := range readings {
		// 通道内部校验：失败的读数被丢弃且不广播，整批继续
		if _, err := c.channel.PublishReading(readings[i]); err != nil {
			c.logger.Warn("Reading rejected by channel",
				zap.String("device_id", readings[i].DeviceID),
				zap.Error(err),
			)
		}
	}

	return nil
}

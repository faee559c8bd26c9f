// Package channel 实现生物特征数据的广播点
//
// 主要功能：
// - 维护"最新读数 / 当前设备列表 / 采样开启标志"三个可订阅值
// - replay-of-one：订阅时立即收到最后缓存值，之后收到全部更新
// - 定时采样：Start 后按固定间隔从生产者取样、校验、广播
// - 派生子流：stressIndex / heartRate / wellnessScore，带变化抑制
//   （与上次发射差值不超过 epsilon 则不重发）
//
// 状态快照按读数被接受的顺序投递，不重排、不合批：下游趋势计算
// 依赖历史缓冲的严格时间顺序。
package channel

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"spendwell-biometrics/internal/config"
	"spendwell-biometrics/internal/models"
	"spendwell-biometrics/internal/producer"
	"spendwell-biometrics/internal/validator"
	"spendwell-biometrics/internal/wellness"
)

// ReadingUpdate 一次读数广播携带的完整快照
//
// 把设备列表和开启标志一并快照，订阅回调无需回查 Channel。
type ReadingUpdate struct {
	Reading models.BiometricReading
	Devices []models.BiometricDataSource
	Active  bool
}

// ReadingHandler 读数订阅回调
type ReadingHandler func(ReadingUpdate)

// DevicesHandler 设备列表订阅回调
type DevicesHandler func([]models.BiometricDataSource)

// ActiveHandler 开启标志订阅回调
type ActiveHandler func(bool)

// ValueHandler 派生数值子流订阅回调
type ValueHandler func(float64)

// derivedStream 单个派生子流：上次发射值 + epsilon 抑制
type derivedStream struct {
	epsilon  float64
	last     *float64
	handlers []ValueHandler
}

// shouldEmit 判断新值是否需要重发（首个值总是发射）
func (d *derivedStream) shouldEmit(v float64) bool {
	if d.last == nil {
		return true
	}
	diff := v - *d.last
	if diff < 0 {
		diff = -diff
	}
	return diff > d.epsilon
}

// Channel 生物特征广播通道
type Channel struct {
	cfg      *config.Config
	producer producer.SampleProducer
	logger   *zap.Logger

	// emitMu 串行化全部广播：投递期间持有，保证订阅者看到的
	// 更新顺序与读数被接受的顺序一致
	emitMu sync.Mutex

	mu          sync.Mutex
	active      bool
	stopCh      chan struct{}
	devices     []models.BiometricDataSource
	lastReading *models.BiometricReading

	readingSubs []ReadingHandler
	deviceSubs  []DevicesHandler
	activeSubs  []ActiveHandler

	stress    derivedStream
	heartRate derivedStream
	wellScore derivedStream
}

// New 创建通道
func New(cfg *config.Config, prod producer.SampleProducer, logger *zap.Logger) *Channel {
	return &Channel{
		cfg:       cfg,
		producer:  prod,
		logger:    logger,
		stress:    derivedStream{epsilon: cfg.Biometrics.StressEpsilon},
		heartRate: derivedStream{epsilon: cfg.Biometrics.HeartRateEpsilon},
		wellScore: derivedStream{epsilon: cfg.Biometrics.WellnessEpsilon},
	}
}

// Start 开启采样（幂等：已开启时为空操作）
//
// 首次开启时植入默认设备列表，随后每个采样间隔发射一条读数。
func (c *Channel) Start() {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return
	}
	c.active = true
	if len(c.devices) == 0 {
		c.devices = defaultDevices()
	}
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	devices := snapshotDevices(c.devices)
	activeSubs := append([]ActiveHandler(nil), c.activeSubs...)
	deviceSubs := append([]DevicesHandler(nil), c.deviceSubs...)
	c.mu.Unlock()

	for _, h := range activeSubs {
		h(true)
	}
	for _, h := range deviceSubs {
		h(devices)
	}

	c.logger.Info("Biometric channel started",
		zap.Int("sample_interval", c.cfg.Biometrics.SampleInterval),
		zap.Int("device_count", len(devices)),
	)

	go c.run(stopCh)
}

// Stop 停止采样
//
// 订阅者保留各自缓存的最后值，重启前不再收到更新。
func (c *Channel) Stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	close(c.stopCh)
	c.stopCh = nil
	activeSubs := append([]ActiveHandler(nil), c.activeSubs...)
	c.mu.Unlock()

	for _, h := range activeSubs {
		h(false)
	}

	c.logger.Info("Biometric channel stopped")
}

// IsActive 采样是否开启
func (c *Channel) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// run 采样循环
func (c *Channel) run(stopCh chan struct{}) {
	interval := time.Duration(c.cfg.Biometrics.SampleInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 启动后立即发一条，订阅者不必等一个完整周期
	c.emitSample()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			c.emitSample()
		}
	}
}

// emitSample 从生产者取样、校验并广播
func (c *Channel) emitSample() {
	r := c.producer.Next()
	if err := validator.ValidateReading(&r); err != nil {
		// 校验失败：记录并丢弃，不中断采样流
		c.logger.Warn("Dropping invalid sample",
			zap.String("device_id", r.DeviceID),
			zap.Error(err),
		)
		return
	}
	c.publish(r, nil)
}

// PublishReading 校验并广播一条读数（手动/旁路录入，独立于定时器）
//
// 校验失败时记录并丢弃：广播状态不变、订阅者收不到任何投递，
// 字段级的校验错误返回给调用方。
// 成功时返回实际被接受的读数：时间戳可能被单调递增修正，
// 保证历史缓冲严格有序且每条读数的时间戳唯一。
func (c *Channel) PublishReading(r models.BiometricReading) (models.BiometricReading, error) {
	if err := validator.ValidateReading(&r); err != nil {
		c.logger.Warn("Dropping invalid reading",
			zap.String("device_id", r.DeviceID),
			zap.Error(err),
		)
		return models.BiometricReading{}, err
	}
	return c.publish(r, nil), nil
}

// RequestSample 请求一次带外采样（手动检查路径）
//
// onAccept 在时间戳修正之后、广播投递之前被调用：调用方可以用
// 最终时间戳注册等待者，保证不会错过对应的状态广播。
func (c *Channel) RequestSample(onAccept func(models.BiometricReading)) (models.BiometricReading, error) {
	r := c.producer.Next()
	if err := validator.ValidateReading(&r); err != nil {
		return models.BiometricReading{}, err
	}
	return c.publish(r, onAccept), nil
}

// publish 广播的唯一入口
//
// 锁顺序恒为 emitMu -> mu。整个投递过程持有 emitMu，
// 并发发布不会交错，顺序保证由此而来。
func (c *Channel) publish(r models.BiometricReading, onAccept func(models.BiometricReading)) models.BiometricReading {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	// 时间戳单调修正：不晚于上一条则推后1纳秒
	if c.lastReading != nil && !r.Timestamp.After(c.lastReading.Timestamp) {
		r.Timestamp = c.lastReading.Timestamp.Add(time.Nanosecond)
	}
	stored := r
	c.lastReading = &stored

	// 更新来源设备的 LastReading
	for i := range c.devices {
		if c.devices[i].ID == r.DeviceID {
			c.devices[i].LastReading = &stored
			break
		}
	}

	update := ReadingUpdate{
		Reading: r,
		Devices: snapshotDevices(c.devices),
		Active:  c.active,
	}
	readingSubs := append([]ReadingHandler(nil), c.readingSubs...)

	stressEmit, stressSubs := c.stress.prepare(r.StressIndex)
	hrEmit, hrSubs := c.heartRate.prepare(r.HeartRate)
	score := wellness.ScoreFromReading(r)
	wellEmit, wellSubs := c.wellScore.prepare(&score)
	c.mu.Unlock()

	if onAccept != nil {
		onAccept(r)
	}

	for _, h := range readingSubs {
		h(update)
	}
	if stressEmit != nil {
		for _, h := range stressSubs {
			h(*stressEmit)
		}
	}
	if hrEmit != nil {
		for _, h := range hrSubs {
			h(*hrEmit)
		}
	}
	if wellEmit != nil {
		for _, h := range wellSubs {
			h(*wellEmit)
		}
	}

	return r
}

// prepare 在持锁状态下判定子流是否发射并快照订阅者
//
// 值缺失（nil）时不发射；通过 epsilon 抑制的值更新 last。
func (d *derivedStream) prepare(v *float64) (*float64, []ValueHandler) {
	if v == nil {
		return nil, nil
	}
	if !d.shouldEmit(*v) {
		return nil, nil
	}
	val := *v
	d.last = &val
	return &val, append([]ValueHandler(nil), d.handlers...)
}

// AddDevice 添加设备（ID 已存在时为空操作）
func (c *Channel) AddDevice(d models.BiometricDataSource) {
	c.mu.Lock()
	for _, existing := range c.devices {
		if existing.ID == d.ID {
			c.mu.Unlock()
			return
		}
	}
	c.devices = append(c.devices, d)
	devices := snapshotDevices(c.devices)
	subs := append([]DevicesHandler(nil), c.deviceSubs...)
	c.mu.Unlock()

	for _, h := range subs {
		h(devices)
	}
}

// RemoveDevice 移除设备（ID 不存在时为空操作）
func (c *Channel) RemoveDevice(id string) {
	c.mu.Lock()
	idx := -1
	for i, existing := range c.devices {
		if existing.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.devices = append(c.devices[:idx], c.devices[idx+1:]...)
	devices := snapshotDevices(c.devices)
	subs := append([]DevicesHandler(nil), c.deviceSubs...)
	c.mu.Unlock()

	for _, h := range subs {
		h(devices)
	}
}

// Devices 当前设备列表快照
func (c *Channel) Devices() []models.BiometricDataSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshotDevices(c.devices)
}

// LastReading 最后一条被接受的读数；尚无读数时返回 nil（不是错误）
func (c *Channel) LastReading() *models.BiometricReading {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastReading == nil {
		return nil
	}
	r := *c.lastReading
	return &r
}

// SubscribeReadings 订阅读数广播（replay-of-one：立即回放最后读数）
func (c *Channel) SubscribeReadings(h ReadingHandler) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	c.readingSubs = append(c.readingSubs, h)
	var replay *ReadingUpdate
	if c.lastReading != nil {
		replay = &ReadingUpdate{
			Reading: *c.lastReading,
			Devices: snapshotDevices(c.devices),
			Active:  c.active,
		}
	}
	c.mu.Unlock()

	if replay != nil {
		h(*replay)
	}
}

// SubscribeDevices 订阅设备列表变化（立即回放当前列表）
func (c *Channel) SubscribeDevices(h DevicesHandler) {
	c.mu.Lock()
	c.deviceSubs = append(c.deviceSubs, h)
	devices := snapshotDevices(c.devices)
	c.mu.Unlock()
	h(devices)
}

// SubscribeActive 订阅开启标志变化（立即回放当前标志）
func (c *Channel) SubscribeActive(h ActiveHandler) {
	c.mu.Lock()
	c.activeSubs = append(c.activeSubs, h)
	active := c.active
	c.mu.Unlock()
	h(active)
}

// SubscribeStressIndex 订阅压力指数派生子流（epsilon 抑制重复值）
func (c *Channel) SubscribeStressIndex(h ValueHandler) {
	c.subscribeDerived(&c.stress, h)
}

// SubscribeHeartRate 订阅心率派生子流
func (c *Channel) SubscribeHeartRate(h ValueHandler) {
	c.subscribeDerived(&c.heartRate, h)
}

// SubscribeWellnessScore 订阅健康评分派生子流
func (c *Channel) SubscribeWellnessScore(h ValueHandler) {
	c.subscribeDerived(&c.wellScore, h)
}

func (c *Channel) subscribeDerived(d *derivedStream, h ValueHandler) {
	c.mu.Lock()
	d.handlers = append(d.handlers, h)
	var replay *float64
	if d.last != nil {
		v := *d.last
		replay = &v
	}
	c.mu.Unlock()
	if replay != nil {
		h(*replay)
	}
}

// defaultDevices 首次启动时植入的默认设备列表
func defaultDevices() []models.BiometricDataSource {
	return []models.BiometricDataSource{
		{ID: "apple-watch-1", Name: "Apple Watch", Type: models.DeviceTypeWatch, IsConnected: true},
		{ID: "oura-ring-1", Name: "Oura Ring", Type: models.DeviceTypeRing, IsConnected: true},
	}
}

func snapshotDevices(devices []models.BiometricDataSource) []models.BiometricDataSource {
	out := make([]models.BiometricDataSource, len(devices))
	copy(out, devices)
	return out
}

package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"bms-gateway/internal/config"
	"bms-gateway/internal/observability"
)

const (
	dispatchOK      = "ok"
	dispatchError   = "error"
	dispatchDropped = "dropped"

	drainTimeout = 5 * time.Second
)

type DataDispatcher struct {
	dataChan    chan MQPayload
	producer    DataProducer
	topic       string
	logger      *zap.Logger
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	// mu 保证 Stop 之后不再有数据入队; Dispatch 持读锁完成投递
	mu     sync.RWMutex
	closed bool
}

// NewDataDispatcher 创建一个新的数据分发器
func NewDataDispatcher(producer DataProducer, cfg config.DispatcherConfig, topic string, logger *zap.Logger) *DataDispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 10000
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DataDispatcher{
		dataChan:    make(chan MQPayload, size), // 带缓冲 Channel，防止阻塞
		producer:    producer,
		topic:       topic,
		workerCount: workers,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start 启动 worker 协程池
func (d *DataDispatcher) Start() {
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("DataDispatcher started", zap.Int("workers", d.workerCount), zap.String("topic", d.topic))
}

// Stop 停止分发器, 发送完缓冲区中剩余的数据后返回
func (d *DataDispatcher) Stop() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel() // 通知 worker 退出
	d.wg.Wait()
	d.logger.Info("DataDispatcher stopped")
}

// Dispatch 将数据投递到缓冲通道 (非阻塞, 满则丢弃)。返回是否入队。
func (d *DataDispatcher) Dispatch(payload MQPayload) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		observability.RecordDispatch(dispatchDropped)
		return false
	}
	select {
	case d.dataChan <- payload:
		return true
	default:
		observability.RecordDispatch(dispatchDropped)
		d.logger.Warn("DataDispatcher channel full, dropping data", zap.String("device_id", payload.DeviceID))
		return false
	}
}

func (d *DataDispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			d.drain()
			return
		case payload := <-d.dataChan:
			d.process(d.ctx, payload)
		}
	}
}

// drain 在退出前把通道中已排队的数据发完
func (d *DataDispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case payload := <-d.dataChan:
			d.process(ctx, payload)
		default:
			return
		}
	}
}

func (d *DataDispatcher) process(ctx context.Context, payload MQPayload) {
	if err := d.producer.Produce(ctx, d.topic, payload.DeviceID, payload); err != nil {
		observability.RecordDispatch(dispatchError)
		d.logger.Error("DataDispatcher failed to send data", zap.String("device_id", payload.DeviceID), zap.Error(err))
		return
	}
	observability.RecordDispatch(dispatchOK)
}

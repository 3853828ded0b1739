// Package mq 定义消息队列生产者接口和消息体编码器, 具体实现见 kafka / rabbitmq 子包。
package mq

import (
	"context"
)

// Producer 消息队列生产者。key 为设备号, 用于分区或消息头。
type Producer interface {
	Produce(ctx context.Context, topic string, key string, data interface{}) error
	Close()
}

// NoOpProducer 未启用消息队列时使用, 丢弃所有消息
type NoOpProducer struct{}

var _ Producer = (*NoOpProducer)(nil)

func NewNoOpProducer() *NoOpProducer {
	return &NoOpProducer{}
}

func (p *NoOpProducer) Produce(ctx context.Context, topic string, key string, data interface{}) error {
	return nil
}

func (p *NoOpProducer) Close() {}

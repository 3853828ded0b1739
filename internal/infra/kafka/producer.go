package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bms-gateway/internal/config"
	"bms-gateway/internal/infra/mq"
)

// messageWriter is the subset of *kafka.Writer used by the producer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer  messageWriter
	encoder mq.Encoder
	logger  *zap.Logger
	topic   string
}

// Ensure KafkaProducer implements mq.Producer
var _ mq.Producer = (*KafkaProducer)(nil)

func NewKafkaProducer(cfg config.KafkaConfig, encoder mq.Encoder, logger *zap.Logger) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  "", // topic is set per message
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true, // Async writing for better performance
	}

	logger.Info("Initialized Kafka producer", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))

	return newKafkaProducer(w, cfg.Topic, encoder, logger), nil
}

func newKafkaProducer(w messageWriter, topic string, encoder mq.Encoder, logger *zap.Logger) *KafkaProducer {
	return &KafkaProducer{
		writer:  w,
		encoder: encoder,
		logger:  logger,
		topic:   topic,
	}
}

func (p *KafkaProducer) Produce(ctx context.Context, topic string, key string, data interface{}) error {
	body, err := p.encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	targetTopic := p.topic
	if topic != "" {
		targetTopic = topic
	}

	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic: targetTopic,
			Key:   []byte(key), // device id keeps one device on one partition
			Value: body,
			Headers: []kafka.Header{
				{Key: "content-type", Value: []byte(p.encoder.ContentType())},
			},
		},
	)

	if err != nil {
		p.logger.Error("Failed to produce message to Kafka", zap.Error(err), zap.String("topic", targetTopic))
		return err
	}

	p.logger.Debug("Produced message to Kafka", zap.String("topic", targetTopic), zap.String("key", key))
	return nil
}

func (p *KafkaProducer) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}

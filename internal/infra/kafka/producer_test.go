package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bms-gateway/internal/config"
	"bms-gateway/internal/infra/mq"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaProducer_Produce(t *testing.T) {
	enc, err := mq.NewEncoder(mq.EncodingJSON)
	require.NoError(t, err)
	w := &fakeWriter{}
	p := newKafkaProducer(w, "bms_frames", enc, zap.NewNop())

	require.NoError(t, p.Produce(context.Background(), "", "bms-01", map[string]int{"soc": 91}))
	require.NoError(t, p.Produce(context.Background(), "bms_alerts", "bms-02", map[string]int{"soc": 5}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "bms_frames", w.msgs[0].Topic)
	assert.Equal(t, "bms-01", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"soc":91}`, string(w.msgs[0].Value))
	assert.Equal(t, "application/json", string(w.msgs[0].Headers[0].Value))
	assert.Equal(t, "bms_alerts", w.msgs[1].Topic)

	p.Close()
	assert.True(t, w.closed)
}

func TestKafkaProducer_Errors(t *testing.T) {
	enc, err := mq.NewEncoder(mq.EncodingJSON)
	require.NoError(t, err)

	w := &fakeWriter{err: errors.New("broker down")}
	p := newKafkaProducer(w, "bms_frames", enc, zap.NewNop())
	assert.Error(t, p.Produce(context.Background(), "", "k", json.RawMessage(`{}`)))

	// 无法编码的数据
	assert.Error(t, p.Produce(context.Background(), "", "k", make(chan int)))
}

func TestNewKafkaProducer_RequiresBrokers(t *testing.T) {
	enc, _ := mq.NewEncoder(mq.EncodingJSON)
	_, err := NewKafkaProducer(config.KafkaConfig{}, enc, zap.NewNop())
	assert.Error(t, err)
}

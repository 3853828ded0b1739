package bms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bms-gateway/internal/observability"
	"bms-gateway/internal/protocol/dalybms"
	"bms-gateway/internal/usecase"
)

// FrameDispatcher 由 *usecase.DataDispatcher 实现
type FrameDispatcher interface {
	Dispatch(payload usecase.MQPayload) bool
}

// Service 解析日志行, 入库并投递到消息队列。store / dispatcher 为 nil 时跳过对应步骤。
type Service struct {
	decoder    *dalybms.Decoder
	store      usecase.FrameStore
	dispatcher FrameDispatcher
	logger     *zap.Logger
	transport  string

	now   func() time.Time
	newID func() string
}

func NewService(decoder *dalybms.Decoder, store usecase.FrameStore, dispatcher FrameDispatcher, logger *zap.Logger) *Service {
	if decoder == nil {
		decoder = dalybms.NewDecoder(dalybms.DefaultLayout())
	}
	return &Service{
		decoder:    decoder,
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		transport:  observability.TransportTCP,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// WithTransport 返回一个以指定来源标签记录指标的副本
func (s *Service) WithTransport(transport string) *Service {
	cp := *s
	cp.transport = transport
	return &cp
}

// Store 返回底层帧存储, 未配置时为 nil
func (s *Service) Store() usecase.FrameStore {
	return s.store
}

// Decode 只解析, 不入库也不投递
func (s *Service) Decode(line string) (*dalybms.ParsedFrame, error) {
	start := time.Now()
	frame, err := s.decoder.Decode(line)
	observability.RecordDecode(s.transport, decodeResult(frame, err), time.Since(start))
	return frame, err
}

// Ingest 解析一行日志并生成 FrameRecord。解析错误原样返回, 调用方可用 errors.As 区分。
func (s *Service) Ingest(ctx context.Context, deviceID, line string) (*usecase.FrameRecord, error) {
	frame, err := s.Decode(line)
	if err != nil {
		s.logger.Debug("Decode failed", zap.String("device_id", deviceID), zap.Error(err))
		return nil, err
	}

	rec := &usecase.FrameRecord{
		ID:             s.newID(),
		DeviceID:       deviceID,
		ReceivedAt:     s.now().UTC(),
		Recommendation: usecase.Recommend(frame),
		Truncated:      frame.Truncated(),
		Frame:          frame,
	}
	if ts, err := frame.Time(); err == nil {
		rec.RecordedAt = &ts
	}

	logger := s.logger.With(zap.String("device_id", deviceID), zap.String("frame_id", rec.ID))
	for _, w := range frame.Warnings {
		logger.Warn("Partial section", zap.String("warning", w.String()))
	}

	if s.store != nil {
		err := s.store.SaveFrame(ctx, rec)
		observability.RecordStore(err == nil)
		if err != nil {
			logger.Error("Failed to store frame", zap.Error(err))
			return nil, fmt.Errorf("store frame: %w", err)
		}
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(usecase.MQPayload{Type: usecase.PayloadTypeFrame, DeviceID: deviceID, Data: rec})
	}

	logger.Debug("Frame ingested",
		zap.String("recommendation", rec.Recommendation),
		zap.Bool("truncated", rec.Truncated))
	return rec, nil
}

func decodeResult(frame *dalybms.ParsedFrame, err error) string {
	switch {
	case err == nil && frame.Truncated():
		return observability.ResultTruncated
	case err == nil:
		return observability.ResultOK
	case errors.Is(err, dalybms.ErrMissingField):
		return observability.ResultMissingField
	case errors.Is(err, dalybms.ErrFormat):
		return observability.ResultFormatError
	default:
		return observability.ResultError
	}
}

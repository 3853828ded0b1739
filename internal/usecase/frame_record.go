package usecase

import (
	"errors"
	"time"

	"bms-gateway/internal/protocol/dalybms"
)

var ErrFrameNotFound = errors.New("frame not found")

const (
	RecommendationCoolDown = "Cool down"
	RecommendationStable   = "Stable"

	// CoolDownThreshold 最高温度超过该值 (℃) 时建议降温
	CoolDownThreshold = 30
)

// FrameRecord 一次入库/投递的帧
type FrameRecord struct {
	ID             string               `json:"id"`
	DeviceID       string               `json:"device_id"`
	ReceivedAt     time.Time            `json:"received_at"`
	RecordedAt     *time.Time           `json:"recorded_at,omitempty"`
	Recommendation string               `json:"recommendation"`
	Truncated      bool                 `json:"truncated"`
	Frame          *dalybms.ParsedFrame `json:"frame"`
}

// Recommend 根据电池包最高温度给出运维建议
func Recommend(frame *dalybms.ParsedFrame) string {
	if frame != nil && frame.Temps.MaxTemp > CoolDownThreshold {
		return RecommendationCoolDown
	}
	return RecommendationStable
}

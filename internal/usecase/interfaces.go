package usecase

import "context"

// Conn 抽象连接接口
type Conn interface {
	RemoteAddr() string
	Close() error
	Write([]byte) (int, error)
	// 登录后绑定的设备号, 未登录时为空
	SetDeviceID(string)
	DeviceID() string
}

type DataProducer interface {
	// Produce 发送数据到指定 Topic
	Produce(ctx context.Context, topic string, key string, data interface{}) error
}

// FrameStore 持久化解析后的帧
type FrameStore interface {
	SaveFrame(ctx context.Context, rec *FrameRecord) error
	// GetFrame 不存在时返回 ErrFrameNotFound
	GetFrame(ctx context.Context, id string) (*FrameRecord, error)
	// ListFrames 按接收时间倒序; deviceID 为空表示全部设备
	ListFrames(ctx context.Context, deviceID string, limit int) ([]*FrameRecord, error)
}

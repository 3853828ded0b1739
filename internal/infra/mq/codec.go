package mq

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const (
	EncodingJSON = "json"
	EncodingCBOR = "cbor"
)

// Encoder 将消息体编码为字节流, 并给出对应的 Content-Type
type Encoder interface {
	Encode(v interface{}) ([]byte, error)
	ContentType() string
}

type jsonEncoder struct{}

func (jsonEncoder) Encode(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonEncoder) ContentType() string                  { return "application/json" }

// cborEncoder 未声明 cbor tag 的字段沿用 json tag 的字段名
type cborEncoder struct {
	mode cbor.EncMode
}

func (e cborEncoder) Encode(v interface{}) ([]byte, error) {
	// 先经 JSON 归一化, 使自定义 MarshalJSON (如 MQPayload) 的字段注入同样生效
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree interface{}
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, err
	}
	return e.mode.Marshal(tree)
}

func (cborEncoder) ContentType() string { return "application/cbor" }

// NewEncoder 根据配置名称返回编码器, 空字符串视为 json
func NewEncoder(name string) (Encoder, error) {
	switch name {
	case "", EncodingJSON:
		return jsonEncoder{}, nil
	case EncodingCBOR:
		mode, err := cbor.CanonicalEncOptions().EncMode()
		if err != nil {
			return nil, fmt.Errorf("failed to build cbor encoder: %w", err)
		}
		return cborEncoder{mode: mode}, nil
	default:
		return nil, fmt.Errorf("unsupported message encoding: %q", name)
	}
}

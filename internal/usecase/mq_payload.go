package usecase

import "encoding/json"

const PayloadTypeFrame = "BMS_FRAME"

// MQPayload 包装消息, 增加类型标识和设备号
type MQPayload struct {
	Type     string      `json:"type"`
	DeviceID string      `json:"device_id"`
	Data     interface{} `json:"data"`
}

// MarshalJSON 在 Data 为对象时注入 msgType / device_id, 方便下游按字段路由
func (p MQPayload) MarshalJSON() ([]byte, error) {
	dataBytes, err := json.Marshal(p.Data)
	if err != nil {
		return nil, err
	}

	var dataMap map[string]interface{}
	if err := json.Unmarshal(dataBytes, &dataMap); err != nil || dataMap == nil {
		// 非对象 (数字/数组/null) 原样输出
		type alias MQPayload
		return json.Marshal(alias(p))
	}
	dataMap["msgType"] = p.Type
	dataMap["device_id"] = p.DeviceID

	return json.Marshal(&struct {
		Type     string                 `json:"type"`
		DeviceID string                 `json:"device_id"`
		Data     map[string]interface{} `json:"data"`
	}{
		Type:     p.Type,
		DeviceID: p.DeviceID,
		Data:     dataMap,
	})
}

package usecase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bms-gateway/internal/protocol/dalybms"
)

func TestMQPayload_MarshalJSON_InjectsFields(t *testing.T) {
	p := MQPayload{
		Type:     PayloadTypeFrame,
		DeviceID: "bms-01",
		Data:     &FrameRecord{ID: "abc", DeviceID: "bms-01", Recommendation: RecommendationStable},
	}

	body, err := json.Marshal(p)
	require.NoError(t, err)

	var out struct {
		Type     string                 `json:"type"`
		DeviceID string                 `json:"device_id"`
		Data     map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, PayloadTypeFrame, out.Type)
	assert.Equal(t, "bms-01", out.DeviceID)
	assert.Equal(t, PayloadTypeFrame, out.Data["msgType"])
	assert.Equal(t, "bms-01", out.Data["device_id"])
	assert.Equal(t, "abc", out.Data["id"])
}

func TestMQPayload_MarshalJSON_NonObjectData(t *testing.T) {
	body, err := json.Marshal(MQPayload{Type: "X", DeviceID: "d", Data: []int{1, 2}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"X","device_id":"d","data":[1,2]}`, string(body))
}

func TestRecommend(t *testing.T) {
	hot := &dalybms.ParsedFrame{Temps: dalybms.TempExtremes{MaxTemp: 31}}
	edge := &dalybms.ParsedFrame{Temps: dalybms.TempExtremes{MaxTemp: 30}}

	assert.Equal(t, RecommendationCoolDown, Recommend(hot))
	assert.Equal(t, RecommendationStable, Recommend(edge))
	assert.Equal(t, RecommendationStable, Recommend(nil))
}

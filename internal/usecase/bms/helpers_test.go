package bms

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bms-gateway/internal/client"
	"bms-gateway/internal/usecase"
)

type fakeConn struct {
	mu       sync.Mutex
	addr     string
	deviceID string
	out      strings.Builder
	closed   bool
}

func newFakeConn(addr string) *fakeConn { return &fakeConn{addr: addr} }

func (c *fakeConn) RemoteAddr() string { return c.addr }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(b)
}

func (c *fakeConn) SetDeviceID(id string) { c.deviceID = id }
func (c *fakeConn) DeviceID() string      { return c.deviceID }

// replies 返回已写出的响应行
func (c *fakeConn) replies() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := strings.TrimSuffix(c.out.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type memStore struct {
	mu      sync.Mutex
	records map[string]*usecase.FrameRecord
	err     error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*usecase.FrameRecord{}}
}

func (s *memStore) SaveFrame(ctx context.Context, rec *usecase.FrameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *memStore) GetFrame(ctx context.Context, id string) (*usecase.FrameRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, usecase.ErrFrameNotFound
	}
	return rec, nil
}

func (s *memStore) ListFrames(ctx context.Context, deviceID string, limit int) ([]*usecase.FrameRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*usecase.FrameRecord
	for _, rec := range s.records {
		if deviceID == "" || rec.DeviceID == deviceID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type recordingDispatcher struct {
	mu       sync.Mutex
	payloads []usecase.MQPayload
}

func (d *recordingDispatcher) Dispatch(p usecase.MQPayload) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, p)
	return true
}

func (d *recordingDispatcher) sent() []usecase.MQPayload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]usecase.MQPayload(nil), d.payloads...)
}

var frameTime = time.Date(2025, 2, 25, 14, 33, 33, 0, time.Local)

func frameValues(maxTemp int) client.FrameValues {
	return client.FrameValues{
		CumulativeVoltage: 52.8,
		GatherVoltage:     52.7,
		Current:           -3.5,
		SOC:               87.5,
		MaxCellVoltage:    3312, MaxVoltageCell: 2,
		MinCellVoltage: 3290, MinVoltageCell: 4,
		MaxTemp: maxTemp, MaxTempCell: 1,
		MinTemp: 21, MinTempCell: 2,
		CellVoltages: []int{3300, 3312, 3301, 3290},
		CellTemps:    []int{maxTemp, 21},
		Time:         frameTime,
	}
}

func buildLine(maxTemp int) string {
	return client.NewLineBuilder().Build(frameValues(maxTemp))
}

// buildPartialLine 故障位区段只写 10 个, 默认布局下被判为截断
func buildPartialLine() string {
	lb := client.NewLineBuilder()
	lb.Layout.FaultBitCount = 10
	return lb.Build(frameValues(25))
}

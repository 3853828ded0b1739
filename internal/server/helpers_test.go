package server

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bms-gateway/internal/client"
	"bms-gateway/internal/config"
	"bms-gateway/internal/infra/sqlite"
	"bms-gateway/internal/usecase/bms"
)

type fakeConn struct {
	mu       sync.Mutex
	addr     string
	deviceID string
	out      strings.Builder
}

func (c *fakeConn) RemoteAddr() string    { return c.addr }
func (c *fakeConn) Close() error          { return nil }
func (c *fakeConn) SetDeviceID(id string) { c.deviceID = id }
func (c *fakeConn) DeviceID() string      { return c.deviceID }

func (c *fakeConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(b)
}

func (c *fakeConn) replies() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := strings.TrimSuffix(c.out.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func testLine(maxTemp int) string {
	return client.NewLineBuilder().Build(client.FrameValues{
		CumulativeVoltage: 26.4,
		GatherVoltage:     26.4,
		Current:           1.5,
		SOC:               64,
		MaxTemp:           maxTemp,
		MinTemp:           20,
		CellVoltages:      []int{3300, 3310},
		CellTemps:         []int{maxTemp, 20},
		Time:              time.Date(2025, 2, 25, 14, 33, 33, 0, time.Local),
	})
}

func newTestService(t *testing.T) (*bms.Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return bms.NewService(nil, store, nil, zap.NewNop()), store
}

func newTestTCPServer(t *testing.T, auth config.AuthConfig) *TCPServer {
	t.Helper()
	svc, _ := newTestService(t)
	logger := zap.NewNop()
	h := bms.NewHandler(bms.NewSessionManager(logger), svc, bms.NewInMemoryAuthService(auth), logger)
	cfg := &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 9600, MaxLineSize: 4096}}
	return NewTCPServer(cfg, logger, h)
}

package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/panjf2000/gnet/v2"
	"go.uber.org/zap"

	"bms-gateway/internal/config"
	"bms-gateway/internal/protocol/dalybms"
	"bms-gateway/internal/usecase"
	"bms-gateway/internal/usecase/bms"
)

// connContext 保存每个连接的状态
type connContext struct {
	buffer  []byte
	scanner *dalybms.LineScanner
	addr    string
	conn    usecase.Conn
}

// GnetConnWrapper 将 gnet.Conn 适配为 usecase.Conn
type GnetConnWrapper struct {
	conn     gnet.Conn
	deviceID string
}

func (w *GnetConnWrapper) RemoteAddr() string {
	return w.conn.RemoteAddr().String()
}

func (w *GnetConnWrapper) Close() error {
	return w.conn.Close()
}

func (w *GnetConnWrapper) Write(b []byte) (n int, err error) {
	return w.conn.Write(b)
}

func (w *GnetConnWrapper) SetDeviceID(id string) {
	w.deviceID = id
}

func (w *GnetConnWrapper) DeviceID() string {
	return w.deviceID
}

type TCPServer struct {
	gnet.BuiltinEventEngine

	addr        string
	multicore   bool
	maxLineSize int
	logger      *zap.Logger
	handler     *bms.Handler
}

func NewTCPServer(cfg *config.Config, logger *zap.Logger, h *bms.Handler) *TCPServer {
	return &TCPServer{
		addr:        fmt.Sprintf("tcp://%s:%d", cfg.Server.Host, cfg.Server.Port),
		multicore:   true,
		maxLineSize: cfg.Server.MaxLineSize,
		logger:      logger,
		handler:     h,
	}
}

func (s *TCPServer) OnBoot(eng gnet.Engine) (action gnet.Action) {
	s.logger.Info("TCP Server is booting", zap.String("address", s.addr))
	return
}

func (s *TCPServer) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	s.logger.Info("New connection opened", zap.String("remote_addr", c.RemoteAddr().String()))

	// 初始化连接上下文
	c.SetContext(s.newConnContext(&GnetConnWrapper{conn: c}))
	return
}

func (s *TCPServer) newConnContext(conn usecase.Conn) *connContext {
	return &connContext{
		buffer:  make([]byte, 0, 4096),
		scanner: dalybms.NewLineScanner(s.maxLineSize),
		addr:    conn.RemoteAddr(),
		conn:    conn,
	}
}

func (s *TCPServer) OnTraffic(c gnet.Conn) (action gnet.Action) {
	ctx := c.Context().(*connContext)

	// 读取新数据
	buf, _ := c.Next(-1)
	if len(buf) == 0 {
		return
	}
	return s.consume(ctx, buf)
}

// consume 将新数据追加到连接缓冲区, 逐行交给 Handler
func (s *TCPServer) consume(ctx *connContext, data []byte) gnet.Action {
	ctx.buffer = append(ctx.buffer, data...)
	// 处理完后把剩余的半行挪回缓冲区头部
	off := 0
	defer func() {
		n := copy(ctx.buffer, ctx.buffer[off:])
		ctx.buffer = ctx.buffer[:n]
	}()

	for {
		advance, token, err := ctx.scanner.SplitFunc(ctx.buffer[off:], false)
		if err != nil {
			s.logger.Error("Line split error", zap.Error(err), zap.String("addr", ctx.addr))
			return gnet.Close
		}
		if advance == 0 {
			// 需要更多数据
			return gnet.None
		}
		off += advance
		if token == nil {
			// 空行
			continue
		}

		err = s.handler.HandleLine(context.Background(), ctx.conn, string(token))
		switch {
		case errors.Is(err, bms.ErrLogout):
			return gnet.Close
		case err != nil:
			s.logger.Warn("Handle line failed", zap.Error(err),
				zap.String("device_id", ctx.conn.DeviceID()), zap.String("addr", ctx.addr))
		}
	}
}

func (s *TCPServer) OnClose(c gnet.Conn, err error) (action gnet.Action) {
	s.logger.Info("Connection closed", zap.String("remote", c.RemoteAddr().String()), zap.Error(err))
	if ctx, ok := c.Context().(*connContext); ok {
		s.release(ctx)
	}
	return
}

// release 连接断开时释放该连接持有的会话
func (s *TCPServer) release(ctx *connContext) {
	if id := ctx.conn.DeviceID(); id != "" {
		s.handler.SessionMgr.Remove(id, ctx.conn)
	}
}

func (s *TCPServer) OnShutdown(eng gnet.Engine) {
	s.logger.Info("TCP Server is shutting down")
}

func (s *TCPServer) Start(ctx context.Context) error {
	s.logger.Info("Starting TCP Server", zap.String("addr", s.addr))
	return gnet.Run(s, s.addr,
		gnet.WithMulticore(s.multicore),
		gnet.WithLogger(s.logger.Sugar()),
		gnet.WithReusePort(true),
	)
}

func (s *TCPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping TCP Server...")
	return gnet.Stop(ctx, s.addr)
}

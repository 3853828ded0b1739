package bms

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"bms-gateway/internal/usecase"
)

// 行协议命令, 其余非空行均视为 BMS 日志帧
const (
	CmdLogin  = "LOGIN"
	CmdLogout = "LOGOUT"
	CmdPing   = "PING"
)

var (
	// ErrLogout 设备主动登出, 调用方应关闭连接
	ErrLogout = errors.New("device logged out")
	// ErrNotLoggedIn 需要认证时在 LOGIN 之前上传数据
	ErrNotLoggedIn = errors.New("login required")
)

type Handler struct {
	SessionMgr *SessionManager
	Service    *Service
	Auth       AuthService
	logger     *zap.Logger
}

func NewHandler(sm *SessionManager, svc *Service, auth AuthService, logger *zap.Logger) *Handler {
	return &Handler{
		SessionMgr: sm,
		Service:    svc,
		Auth:       auth,
		logger:     logger,
	}
}

// HandleLine 处理连接上收到的一行 (已去掉换行符)
func (h *Handler) HandleLine(ctx context.Context, conn usecase.Conn, line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			h.logger.Error("Panic in HandleLine",
				zap.Any("recover", r),
				zap.String("device_id", conn.DeviceID()),
				zap.String("stack", string(stack)))
			h.reply(conn, "ERR internal error")
			err = fmt.Errorf("internal server error: %v", r)
		}
	}()

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	fields := strings.Fields(trimmed)
	switch strings.ToUpper(fields[0]) {
	case CmdLogin:
		return h.handleLogin(conn, fields[1:])
	case CmdLogout:
		return h.handleLogout(conn)
	case CmdPing:
		if id := conn.DeviceID(); id != "" {
			h.SessionMgr.UpdateLastActive(id)
		}
		h.reply(conn, "PONG")
		return nil
	default:
		return h.handleFrame(ctx, conn, line)
	}
}

func (h *Handler) handleLogin(conn usecase.Conn, args []string) error {
	if len(args) == 0 {
		h.reply(conn, "ERR usage: LOGIN <device_id> [token]")
		return errors.New("login without device id")
	}
	deviceID := args[0]
	token := ""
	if len(args) > 1 {
		token = args[1]
	}

	if h.Auth != nil {
		if err := h.Auth.Login(deviceID, token); err != nil {
			h.logger.Warn("Device auth failed",
				zap.String("device_id", deviceID),
				zap.String("remote_addr", conn.RemoteAddr()),
				zap.Error(err))
			h.reply(conn, "ERR "+err.Error())
			return fmt.Errorf("login %s: %w", deviceID, err)
		}
	}

	// 同一连接换设备号登录时释放旧会话
	if prev := conn.DeviceID(); prev != "" && prev != deviceID {
		h.SessionMgr.Remove(prev, conn)
	}
	conn.SetDeviceID(deviceID)
	h.SessionMgr.Add(deviceID, conn)
	h.logger.Info("Device Login", zap.String("device_id", deviceID), zap.String("remote_addr", conn.RemoteAddr()))
	h.reply(conn, "OK")
	return nil
}

func (h *Handler) handleLogout(conn usecase.Conn) error {
	if id := conn.DeviceID(); id != "" {
		h.SessionMgr.Remove(id, conn)
		conn.SetDeviceID("")
		h.logger.Info("Device Logout", zap.String("device_id", id))
	}
	h.reply(conn, "OK")
	return ErrLogout
}

func (h *Handler) handleFrame(ctx context.Context, conn usecase.Conn, line string) error {
	deviceID := conn.DeviceID()
	if deviceID == "" {
		if h.Auth != nil && h.Auth.Required() {
			h.reply(conn, "ERR "+ErrNotLoggedIn.Error())
			return ErrNotLoggedIn
		}
		deviceID = conn.RemoteAddr()
	} else {
		h.SessionMgr.UpdateLastActive(deviceID)
	}

	rec, err := h.Service.Ingest(ctx, deviceID, line)
	if err != nil {
		h.reply(conn, "ERR "+err.Error())
		return err
	}

	resp := "OK " + rec.ID
	if rec.Truncated {
		resp += " PARTIAL"
	}
	h.reply(conn, resp)
	return nil
}

func (h *Handler) reply(conn usecase.Conn, msg string) {
	if _, err := conn.Write([]byte(msg + "\n")); err != nil {
		h.logger.Error("Failed to send response", zap.String("remote_addr", conn.RemoteAddr()), zap.Error(err))
	}
}

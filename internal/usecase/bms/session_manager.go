package bms

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"bms-gateway/internal/observability"
	"bms-gateway/internal/usecase"
)

// Session 代表一个已登录设备的连接会话
type Session struct {
	DeviceID  string
	Conn      usecase.Conn
	LoginTime time.Time // 登入时间

	lastActive atomic.Int64 // UnixNano
}

// LastActiveTime 最后活跃时间
func (s *Session) LastActiveTime() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch(t time.Time) {
	s.lastActive.Store(t.UnixNano())
}

// SessionManager 管理设备会话
type SessionManager struct {
	sessions sync.Map // map[string]*Session (device id -> Session)
	count    atomic.Int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionManager 创建一个新的会话管理器
func NewSessionManager(logger *zap.Logger) *SessionManager {
	return &SessionManager{
		logger: logger,
		now:    time.Now,
	}
}

// Add 为设备创建会话。同一设备重复登录时旧连接被关闭。
func (sm *SessionManager) Add(deviceID string, conn usecase.Conn) {
	now := sm.now()
	session := &Session{
		DeviceID:  deviceID,
		Conn:      conn,
		LoginTime: now,
	}
	session.touch(now)

	if old, loaded := sm.sessions.Swap(deviceID, session); loaded {
		prev := old.(*Session)
		if prev.Conn != conn {
			sm.logger.Info("[SessionManager] Session Replaced", zap.String("device_id", deviceID),
				zap.String("old_remote_addr", prev.Conn.RemoteAddr()))
			_ = prev.Conn.Close()
		}
	} else {
		sm.count.Add(1)
	}
	observability.SetActiveSessions(sm.Count())
	sm.logger.Info("[SessionManager] Session Added", zap.String("device_id", deviceID), zap.String("remote_addr", conn.RemoteAddr()))
}

// Remove 删除会话, 仅当会话仍属于 conn 时生效; 不关闭连接
func (sm *SessionManager) Remove(deviceID string, conn usecase.Conn) bool {
	val, ok := sm.sessions.Load(deviceID)
	if !ok {
		return false
	}
	sess := val.(*Session)
	if conn != nil && sess.Conn != conn {
		return false
	}
	if !sm.sessions.CompareAndDelete(deviceID, sess) {
		return false
	}
	sm.count.Add(-1)
	observability.SetActiveSessions(sm.Count())
	sm.logger.Info("[SessionManager] Session Removed", zap.String("device_id", deviceID))
	return true
}

// Get 获取会话
func (sm *SessionManager) Get(deviceID string) (*Session, bool) {
	val, ok := sm.sessions.Load(deviceID)
	if !ok {
		return nil, false
	}
	return val.(*Session), true
}

// UpdateLastActive 更新会话的心跳时间
func (sm *SessionManager) UpdateLastActive(deviceID string) {
	if val, ok := sm.sessions.Load(deviceID); ok {
		val.(*Session).touch(sm.now())
	}
}

// Count 当前会话数
func (sm *SessionManager) Count() int {
	return int(sm.count.Load())
}

// CheckHeartbeat 检查过期的会话并关闭它们。
func (sm *SessionManager) CheckHeartbeat(timeout time.Duration) {
	now := sm.now()
	sm.sessions.Range(func(key, value interface{}) bool {
		sess := value.(*Session)
		inactive := now.Sub(sess.LastActiveTime())
		if inactive > timeout {
			sm.logger.Info("[SessionManager] Session Timeout", zap.String("device_id", sess.DeviceID), zap.Duration("inactive_duration", inactive))
			if sm.Remove(sess.DeviceID, sess.Conn) {
				_ = sess.Conn.Close()
			}
		}
		return true // 继续遍历
	})
}

package bms

import (
	"errors"

	"bms-gateway/internal/config"
)

var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrInvalidToken  = errors.New("invalid token")
)

// AuthService 定义认证服务接口
type AuthService interface {
	// Login 校验设备号和令牌 (LOGIN 命令)
	Login(deviceID, token string) error
	// Required 为 true 时上传数据前必须先 LOGIN
	Required() bool
}

// InMemoryAuthService 基于配置白名单的认证服务。白名单为空时不做校验。
type InMemoryAuthService struct {
	// 白名单: device id -> token
	devices map[string]string
}

func NewInMemoryAuthService(authCfg config.AuthConfig) *InMemoryAuthService {
	devices := make(map[string]string, len(authCfg.Devices))
	for _, d := range authCfg.Devices {
		devices[d.ID] = d.Token
	}
	return &InMemoryAuthService{devices: devices}
}

func (s *InMemoryAuthService) Required() bool {
	return len(s.devices) > 0
}

func (s *InMemoryAuthService) Login(deviceID, token string) error {
	if !s.Required() {
		return nil
	}
	expected, ok := s.devices[deviceID]
	if !ok {
		return ErrUnknownDevice
	}
	if expected != token {
		return ErrInvalidToken
	}
	return nil
}

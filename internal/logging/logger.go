package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"bms-gateway/internal/config"
)

// NewLogger 按配置创建 JSON 日志, 写入滚动文件; Console 为 true 时同时输出到 stdout
func NewLogger(cfg config.LogConfig) *zap.Logger {
	lvl := parseLevel(cfg.Level)

	var syncers []zapcore.WriteSyncer
	if cfg.Filename != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		}))
	}
	if cfg.Console || len(syncers) == 0 {
		syncers = append(syncers, zapcore.Lock(os.Stdout))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(newEncoderConfig()),
		zapcore.NewMultiWriteSyncer(syncers...),
		lvl,
	)
	return zap.New(core, zap.AddCaller())
}

// NewStderrLogger 命令行工具使用, stdout 留给数据输出
func NewStderrLogger(level string) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(newEncoderConfig()),
		zapcore.Lock(os.Stderr),
		parseLevel(level),
	)
	return zap.New(core)
}

func newEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return encoderConfig
}

func parseLevel(s string) zap.AtomicLevel {
	level, err := zapcore.ParseLevel(s)
	if err != nil {
		level = zap.DebugLevel // Default
	}
	return zap.NewAtomicLevelAt(level)
}

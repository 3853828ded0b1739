package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bms-gateway/internal/config"
	"bms-gateway/internal/infra/kafka"
	"bms-gateway/internal/infra/mq"
	"bms-gateway/internal/infra/rabbitmq"
	"bms-gateway/internal/infra/sqlite"
	"bms-gateway/internal/logging"
	"bms-gateway/internal/observability"
	"bms-gateway/internal/protocol/dalybms"
	"bms-gateway/internal/server"
	"bms-gateway/internal/usecase"
	"bms-gateway/internal/usecase/bms"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// 1. 配置加载
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(cfg.Log)
	defer logger.Sync()
	observability.RegisterMetrics()

	// 2. 基础设施层 (SQLite & MQ)
	var store usecase.FrameStore
	if cfg.Storage.Enabled {
		s, err := sqlite.NewStore(cfg.Storage.Path)
		if err != nil {
			logger.Fatal("Failed to open frame store", zap.String("path", cfg.Storage.Path), zap.Error(err))
		}
		defer s.Close()
		store = s
		logger.Info("Frame store opened", zap.String("path", cfg.Storage.Path))
	}

	var dispatcher bms.FrameDispatcher
	if cfg.MessageQueue.Enabled {
		producer, err := newProducer(cfg.MessageQueue, logger)
		if err != nil {
			logger.Fatal("Failed to initialize message queue producer", zap.Error(err))
		}
		defer producer.Close()

		// 3. 业务逻辑层 (分发器 & 处理器 & 会话管理)
		d := usecase.NewDataDispatcher(producer, cfg.Dispatcher, cfg.MessageQueue.Topic, logger)
		d.Start()
		defer d.Stop()
		dispatcher = d
	}

	decoder := dalybms.NewDecoder(dalybms.Layout{
		CellTemperatureCount: cfg.Decoder.CellTemperatureCount,
		BalanceStateCount:    cfg.Decoder.BalanceStateCount,
		FaultBitCount:        cfg.Decoder.FaultBitCount,
	})
	svc := bms.NewService(decoder, store, dispatcher, logger)

	sm := bms.NewSessionManager(logger)
	auth := bms.NewInMemoryAuthService(cfg.Auth)
	if !auth.Required() {
		logger.Warn("No devices configured, LOGIN is not enforced")
	}
	h := bms.NewHandler(sm, svc, auth, logger)

	// 4. 服务层
	srv := server.NewTCPServer(cfg, logger, h)
	go func() {
		if err := srv.Start(context.Background()); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	var httpSrv *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpSrv = server.NewHTTPServer(cfg.HTTP.Addr, svc, logger)
		go func() {
			if err := httpSrv.Start(context.Background()); err != nil {
				logger.Fatal("HTTP server failed", zap.Error(err))
			}
		}()
	}

	// 心跳检查
	stopHeartbeat := make(chan struct{})
	go func() {
		interval := cfg.Server.HeartbeatTimeout / 2
		if interval <= 0 {
			interval = time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sm.CheckHeartbeat(cfg.Server.HeartbeatTimeout)
			case <-stopHeartbeat:
				return
			}
		}
	}()

	// 优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	close(stopHeartbeat)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if httpSrv != nil {
		_ = httpSrv.Stop(ctx)
	}
	_ = srv.Stop(ctx)
}

func newProducer(cfg config.MessageQueueConfig, logger *zap.Logger) (mq.Producer, error) {
	encoder, err := mq.NewEncoder(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	switch cfg.Type {
	case "kafka":
		return kafka.NewKafkaProducer(cfg.Kafka, encoder, logger)
	case "rabbitmq":
		return rabbitmq.NewRabbitMQProducer(cfg.RabbitMQ, encoder, logger)
	case "", "none":
		return mq.NewNoOpProducer(), nil
	default:
		return nil, fmt.Errorf("unsupported message queue type: %q", cfg.Type)
	}
}

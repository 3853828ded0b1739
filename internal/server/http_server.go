package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bms-gateway/internal/observability"
	"bms-gateway/internal/protocol/dalybms"
	"bms-gateway/internal/usecase"
	"bms-gateway/internal/usecase/bms"
)

// maxBodySize 单个请求体上限, 与 TCP 单行上限同一量级
const maxBodySize = 1 << 20

type ingestRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	Line     string `json:"line" binding:"required"`
}

type ingestResponse struct {
	ID             string               `json:"id"`
	Recommendation string               `json:"recommendation"`
	Truncated      bool                 `json:"truncated"`
	Frame          *dalybms.ParsedFrame `json:"frame"`
}

// HTTPServer 提供解析 / 入库 / 查询接口以及 /metrics
type HTTPServer struct {
	addr    string
	router  *gin.Engine
	srv     *http.Server
	service *bms.Service
	logger  *zap.Logger
	started time.Time
}

func NewHTTPServer(addr string, service *bms.Service, logger *zap.Logger) *HTTPServer {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware())

	s := &HTTPServer{
		addr:    addr,
		router:  r,
		service: service.WithTransport(observability.TransportHTTP),
		logger:  logger,
		started: time.Now(),
	}
	s.registerRoutes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler 返回路由, 便于 httptest 直接调用
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	api.POST("/decode", s.handleDecode)
	api.POST("/frames", s.handleIngest)
	api.GET("/frames", s.handleListFrames)
	api.GET("/frames/:id", s.handleGetFrame)
}

func (s *HTTPServer) handleDecode(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	frame, err := s.service.Decode(string(body))
	if err != nil {
		writeDecodeError(c, err)
		return
	}
	c.JSON(http.StatusOK, frame)
}

func (s *HTTPServer) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := s.service.Ingest(c.Request.Context(), req.DeviceID, req.Line)
	if err != nil {
		writeDecodeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ingestResponse{
		ID:             rec.ID,
		Recommendation: rec.Recommendation,
		Truncated:      rec.Truncated,
		Frame:          rec.Frame,
	})
}

func (s *HTTPServer) handleListFrames(c *gin.Context) {
	store := s.service.Store()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage disabled"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	records, err := store.ListFrames(c.Request.Context(), c.Query("device_id"), limit)
	if err != nil {
		s.logger.Error("List frames failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"frames": records})
}

func (s *HTTPServer) handleGetFrame(c *gin.Context) {
	store := s.service.Store()
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage disabled"})
		return
	}

	rec, err := store.GetFrame(c.Request.Context(), c.Param("id"))
	if errors.Is(err, usecase.ErrFrameNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("Get frame failed", zap.String("id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// writeDecodeError 解析错误返回 422, 其余返回 500
func writeDecodeError(c *gin.Context, err error) {
	kind := ""
	switch {
	case errors.Is(err, dalybms.ErrMissingField):
		kind = "missing_field"
	case errors.Is(err, dalybms.ErrFormat):
		kind = "format"
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "kind": kind})
}

func (s *HTTPServer) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP Server", zap.String("addr", s.addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP Server...")
	return s.srv.Shutdown(ctx)
}

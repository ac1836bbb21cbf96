package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"TrendScope/internal/analysis"
	"TrendScope/internal/llm"
	"TrendScope/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// Analyzer is the analysis surface the HTTP API exposes.
type Analyzer interface {
	RunAnalysis(ctx context.Context, ticker string, years int) (*model.AnalysisSnapshot, error)
	RunFullAnalysis(ctx context.Context, ticker string, years int) (*analysis.FullAnalysis, error)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string
	DefaultYears   int
	ProductionMode bool
	// RequestTimeout bounds a single analysis request. Zero means no limit.
	RequestTimeout time.Duration
}

// Server serves analysis snapshots and narratives over HTTP.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	svc        Analyzer
	config     ServerConfig
	logger     *zap.Logger
}

func NewServer(config ServerConfig, svc Analyzer, logger *zap.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(requestLogger(logger))
	router.Use(gin.Recovery())

	s := &Server{router: router, svc: svc, config: config, logger: logger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/analysis/:ticker", s.handleAnalysis)
		v1.GET("/analysis/:ticker/narrative", s.handleNarrative)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", zap.String("addr", s.config.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAnalysis(c *gin.Context) {
	years, ok := s.years(c)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	snap, err := s.svc.RunAnalysis(ctx, c.Param("ticker"), years)
	if err != nil {
		s.fail(c, err)
		return
	}
	successResponse(c, snap)
}

func (s *Server) handleNarrative(c *gin.Context) {
	years, ok := s.years(c)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	full, err := s.svc.RunFullAnalysis(ctx, c.Param("ticker"), years)
	if err != nil {
		s.fail(c, err)
		return
	}
	successResponse(c, full)
}

func (s *Server) years(c *gin.Context) (int, bool) {
	raw, present := c.GetQuery("years")
	if !present || raw == "" {
		return s.config.DefaultYears, true
	}
	years, err := cast.ToIntE(raw)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "years must be an integer")
		return 0, false
	}
	return years, true
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.config.RequestTimeout)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("analysis request failed",
			zap.String("ticker", c.Param("ticker")), zap.Int("status", status), zap.Error(err))
	}
	errorResponse(c, status, err.Error())
}

// StatusFor maps a pipeline error onto an HTTP status code.
func StatusFor(err error) int {
	var exhausted *llm.AllProvidersExhaustedError
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientData), errors.Is(err, model.ErrData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, llm.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.As(err, &exhausted):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

func successResponse(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Package httpapi exposes the pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docqd/internal/config"
	"github.com/fyrsmithlabs/docqd/internal/extractor"
	"github.com/fyrsmithlabs/docqd/internal/pipeline"
)

// Server serves the upload, query and health endpoints.
type Server struct {
	echo    *echo.Echo
	service *pipeline.Service
	cfg     config.ServerConfig
	logger  *zap.Logger
}

// New creates the HTTP server around the pipeline service.
func New(service *pipeline.Service, cfg config.ServerConfig, logger *zap.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New("pipeline service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger(logger))
	if cfg.MaxUploadSize > 0 {
		e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
			Limit: fmt.Sprintf("%d", cfg.MaxUploadSize),
		}))
	}

	s := &Server{echo: e, service: service, cfg: cfg, logger: logger}

	e.POST("/upload", s.handleUpload)
	e.POST("/query", s.handleQuery)
	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s, nil
}

// Start listens on the configured address and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info("http server listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				logger.Warn("request", fields...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}

func (s *Server) handleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no files provided")
	}

	resp := UploadResponse{}
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			resp.Skipped = append(resp.Skipped, SkippedFile{
				Filename: name,
				Reason:   "only PDF files are supported",
			})
			continue
		}

		data, err := readUpload(fh)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("reading %s: %v", name, err))
		}

		res, err := s.service.Ingest(c.Request().Context(), name, data)
		if err != nil {
			if errors.Is(err, extractor.ErrExtraction) || errors.Is(err, pipeline.ErrEmptyDocument) {
				resp.Skipped = append(resp.Skipped, SkippedFile{Filename: name, Reason: err.Error()})
				continue
			}
			return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("ingesting %s: %v", name, err))
		}

		resp.Processed = append(resp.Processed, ProcessedFile{
			Filename: name,
			Pages:    res.Pages,
			Chunks:   res.ChunksIndexed,
			Failures: res.Failures,
		})
	}

	if len(resp.Processed) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no file could be processed")
	}

	resp.Message = fmt.Sprintf("Successfully processed %d file(s)", len(resp.Processed))
	return c.JSON(http.StatusOK, resp)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query cannot be empty")
	}

	answer, err := s.service.Answer(c.Request().Context(), req.Query)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("answering query: %v", err))
	}

	return c.JSON(http.StatusOK, QueryResponse{
		Answer:  answer.Text,
		Sources: answer.Sources,
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	count, err := s.service.Health(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Error:  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:        "healthy",
		IndexedChunks: count,
		Time:          time.Now().UTC().Format(time.RFC3339),
	})
}

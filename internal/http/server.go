// Package http provides the jxr HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/jxr/internal/logging"
	"github.com/fyrsmithlabs/jxr/internal/repo"
	"github.com/fyrsmithlabs/jxr/internal/search"
	"github.com/fyrsmithlabs/jxr/internal/tree"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Searcher runs one aggregated search. *search.Service implements it.
type Searcher interface {
	Search(ctx context.Context, treeName, rawQuery string) (*search.Result, error)
}

// Server provides HTTP endpoints for jxr.
type Server struct {
	echo     *echo.Echo
	searcher Searcher
	locator  repo.Locator
	codeRoot string
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Deps are the collaborators a Server dispatches to.
type Deps struct {
	Searcher Searcher
	CodeRoot string
	Logger   *logging.Logger

	// Metrics records per-request instruments when set.
	Metrics *HTTPMetrics
	// MetricsHandler is mounted on /metrics when set.
	MetricsHandler http.Handler
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, cfg *Config) (*Server, error) {
	if deps.Searcher == nil {
		return nil, fmt.Errorf("searcher cannot be nil")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if deps.CodeRoot == "" {
		return nil, fmt.Errorf("code root is required")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	logger := deps.Logger.Named("http")

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := logging.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}))
	e.Use(requestLogger(logger))
	if deps.Metrics != nil {
		e.Use(deps.Metrics.MetricsMiddleware())
	}

	s := &Server{
		echo:     e,
		searcher: deps.Searcher,
		locator:  repo.Locator{Root: deps.CodeRoot},
		codeRoot: deps.CodeRoot,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes(deps.MetricsHandler)

	return s, nil
}

func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Int64("size", c.Response().Size),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes(metrics http.Handler) {
	s.echo.GET("/health", s.handleHealth)
	if metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics))
	}

	s.echo.GET("/search", s.handleSearch)
	s.echo.GET("/trees", s.handleTrees)
	s.echo.GET("/gitroot", s.handleGitRoot)
	s.echo.GET("/head", s.handleHead)
	s.echo.GET("/github", s.handleGitHub)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleSearch answers GET /search?tree=T&query=Q with the aggregated
// event array.
func (s *Server) handleSearch(c echo.Context) error {
	ctx := c.Request().Context()
	res, err := s.searcher.Search(ctx, c.QueryParam("tree"), c.QueryParam("query"))
	if err != nil {
		return s.fail(c, "search failed", err.Error(), err)
	}
	return c.JSON(http.StatusOK, res)
}

// handleTrees answers GET /trees with the sorted tree names.
func (s *Server) handleTrees(c echo.Context) error {
	names, err := tree.List(s.codeRoot)
	if err != nil {
		return s.fail(c, "listing trees failed", err.Error(), err)
	}
	return c.JSON(http.StatusOK, names)
}

// handleGitRoot answers GET /gitroot?path=P with the repository root
// relative to the code root, slash terminated.
func (s *Server) handleGitRoot(c echo.Context) error {
	dir, err := s.locator.Find(c.QueryParam("path"))
	if err != nil {
		return s.fail(c, "locating repository failed", err.Error(), err)
	}
	rel, err := s.locator.Relative(dir)
	if err != nil {
		return s.fail(c, "locating repository failed", err.Error(), err)
	}
	return c.JSON(http.StatusOK, rel)
}

// handleHead answers GET /head?path=P with the HEAD commit hash.
func (s *Server) handleHead(c echo.Context) error {
	ctx := c.Request().Context()
	dir, err := s.locator.Find(c.QueryParam("path"))
	if err != nil {
		return s.fail(c, "locating repository failed", err.Error(), err)
	}
	hash, err := repo.Head(ctx, dir)
	if err != nil {
		return s.fail(c, "reading HEAD failed", "git failed: "+err.Error(), err)
	}
	return c.JSON(http.StatusOK, hash)
}

// handleGitHub answers GET /github?path=P with the trimmed origin URL.
func (s *Server) handleGitHub(c echo.Context) error {
	ctx := c.Request().Context()
	dir, err := s.locator.Find(c.QueryParam("path"))
	if err != nil {
		return s.fail(c, "locating repository failed", err.Error(), err)
	}
	url, err := repo.RemoteURL(ctx, dir)
	if err != nil {
		return s.fail(c, "reading origin failed", "git failed: "+err.Error(), err)
	}
	return c.JSON(http.StatusOK, repo.TrimRemote(url))
}

// fail logs err and answers with a plain-text 500. Caller mistakes log at
// warn, everything else at error.
func (s *Server) fail(c echo.Context, logMsg, body string, err error) error {
	ctx := c.Request().Context()
	fields := []zap.Field{zap.Error(err), zap.String("path", c.Path())}
	if isCallerError(err) {
		s.logger.Warn(ctx, logMsg, fields...)
	} else {
		s.logger.Error(ctx, logMsg, fields...)
	}
	return c.String(http.StatusInternalServerError, body)
}

func isCallerError(err error) bool {
	return search.IsInvalidRequest(err) ||
		errors.Is(err, repo.ErrInvalidPath) ||
		errors.Is(err, repo.ErrNotFound) ||
		errors.Is(err, repo.ErrNoRemote)
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Package server exposes the gateway over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/rcliao/vector-memory/internal/api"
	"github.com/rcliao/vector-memory/internal/gateway"
	"github.com/rcliao/vector-memory/internal/model"
	"github.com/rcliao/vector-memory/internal/observe"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	e   *echo.Echo
	svc *gateway.Service
	obs *observe.Observer
}

// Options configures the HTTP surface. An empty AuthToken disables auth.
type Options struct {
	AuthToken string
}

func New(svc *gateway.Service, obs *observe.Observer, opts Options) *Server {
	if obs == nil {
		obs = observe.Nop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{e: e, svc: svc, obs: obs}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return ulid.Make().String() },
	}))
	e.Use(s.requestLogger)

	// Health check stays open.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
	})

	g := e.Group("", bearerAuth(opts.AuthToken))

	g.POST("/write/global", s.write(model.ScopeGlobal))
	g.POST("/write/project", s.write(model.ScopeProject))
	g.POST("/query/global", s.query(model.ScopeGlobal))
	g.POST("/query/project", s.query(model.ScopeProject))
	g.POST("/list/global", s.list(model.ScopeGlobal))
	g.POST("/list/project", s.list(model.ScopeProject))
	g.POST("/delete/document", s.deleteDocuments)
	g.POST("/delete/project", s.deleteProject)

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.obs.Log().Error().Err(err).Msg("server failed")
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.obs.Log().Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// bearerAuth checks "Authorization: Bearer <token>" when token is set.
func bearerAuth(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return next(c)
			}
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
			}
			got, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization format")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}
			return next(c)
		}
	}
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}
		res := c.Response()
		ev := s.obs.Log().Info()
		if res.Status >= http.StatusInternalServerError {
			ev = s.obs.Log().Error()
		}
		ev.Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", res.Status).
			Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
			Int("latency_ms", int(time.Since(start).Milliseconds())).
			Msg("request")
		return nil
	}
}

// fail maps service errors to HTTP errors: invalid requests are 400,
// everything else 500 with the underlying message.
func fail(err error) error {
	if errors.Is(err, gateway.ErrInvalidRequest) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func (s *Server) write(scope model.Scope) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.WriteRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		resp, err := s.svc.Write(c.Request().Context(), scope, req)
		if err != nil {
			return fail(err)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) query(scope model.Scope) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.QueryRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		resp, err := s.svc.Query(c.Request().Context(), scope, req)
		if err != nil {
			return fail(err)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) list(scope model.Scope) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.ListRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		resp, err := s.svc.List(c.Request().Context(), scope, req)
		if err != nil {
			return fail(err)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) deleteDocuments(c echo.Context) error {
	var req api.DeleteDocumentsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := s.svc.DeleteDocuments(c.Request().Context(), req)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) deleteProject(c echo.Context) error {
	var req api.DeleteProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := s.svc.DeleteProject(c.Request().Context(), req)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, resp)
}

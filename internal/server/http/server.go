// Package httpserver exposes the launcher's command surface and event stream
// over a local HTTP API.
package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/cuihairu/arcade/internal/compat"
	"github.com/cuihairu/arcade/internal/events"
	"github.com/cuihairu/arcade/internal/maintenance"
	apperrors "github.com/cuihairu/arcade/internal/platform/errors"
	"github.com/cuihairu/arcade/internal/runtimes"
	"github.com/cuihairu/arcade/internal/sandbox"
	"github.com/cuihairu/arcade/internal/service/engines"
	"github.com/cuihairu/arcade/internal/service/games"
	"github.com/cuihairu/arcade/internal/service/settings"
)

// Config controls the listener.
type Config struct {
	Addr         string   `mapstructure:"addr"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// Deps are the services behind the routes. Nil services answer 503.
type Deps struct {
	Games    *games.Service
	Engines  *engines.Service
	Runtimes *runtimes.Manager
	Launcher *sandbox.Launcher
	Cleaner  *maintenance.Cleaner
	Settings *settings.Service
	Compat   *compat.Manager
	Bus      *events.Bus
	Logger   *slog.Logger
}

type Server struct {
	cfg     Config
	d       Deps
	log     *slog.Logger
	httpSrv *http.Server
	// bg is the parent of background tasks started by requests.
	bg     context.Context
	cancel context.CancelFunc
}

func NewServer(cfg Config, d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Server{cfg: cfg, d: d, log: log.With("component", "http"), bg: bg, cancel: cancel}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.ginEngine(), "arcade.http")
}

func (s *Server) ginEngine() *gin.Engine {
	r := gin.New()
	r.Use(s.ginReqID(), s.ginCORS(), s.ginLogger(), gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { s.JSON(c, http.StatusOK, gin.H{"ok": true}) })

	api := r.Group("/api")
	s.gameRoutes(api)
	s.engineRoutes(api)
	s.runtimeRoutes(api)
	s.systemRoutes(api)
	api.GET("/events", s.streamEvents)
	return r
}

func (s *Server) ListenAndServe(addr string) error {
	if addr == "" {
		addr = s.cfg.Addr
	}
	s.log.Info("http api listening", "addr", addr)
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and cancels background tasks.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// ginReqID injects/propagates an X-Request-ID for traceability.
func (s *Server) ginReqID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get("X-Request-ID")
		if strings.TrimSpace(rid) == "" {
			b := make([]byte, 16)
			if _, err := rand.Read(b); err == nil {
				rid = hex.EncodeToString(b)
			} else {
				rid = fmt.Sprintf("%d", time.Now().UnixNano())
			}
		}
		c.Set("reqid", rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

func (s *Server) ginCORS() gin.HandlerFunc {
	allowed := map[string]struct{}{}
	wildcard := len(s.cfg.AllowOrigins) == 0
	for _, o := range s.cfg.AllowOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			wildcard = true
		} else if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		w := c.Writer
		origin := c.Request.Header.Get("Origin")
		if wildcard {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if _, ok := allowed[origin]; ok && origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		lvl := slog.LevelInfo
		st := c.Writer.Status()
		if st >= 500 {
			lvl = slog.LevelError
		} else if st >= 400 {
			lvl = slog.LevelWarn
		}
		rid, _ := c.Get("reqid")
		s.log.Log(c, lvl, "http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", st,
			"bytes", c.Writer.Size(),
			"reqid", rid,
			"dur_ms", time.Since(start).Milliseconds(),
		)
	}
}

type errBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// fail renders err as the unified error body, using its code for the status.
func (s *Server) fail(c *gin.Context, err error) {
	body := errBody{Code: string(apperrors.CodeUnknown), Message: err.Error()}
	status := http.StatusInternalServerError
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		body.Code = string(ae.Code)
		body.Message = ae.Error()
		body.Metadata = ae.Metadata
		status = ae.Code.HTTPStatus()
	}
	if errors.Is(err, context.Canceled) {
		status = 499
	}
	if rid, ok := c.Get("reqid"); ok {
		body.RequestID, _ = rid.(string)
	}
	s.JSON(c, status, body)
}

func (s *Server) badRequest(c *gin.Context, err error) {
	s.fail(c, apperrors.Wrap(apperrors.CodeInvalidConfig, "invalid request body", err))
}

func (s *Server) unavailable(c *gin.Context, what string) {
	s.JSON(c, http.StatusServiceUnavailable, errBody{Code: "UNAVAILABLE", Message: what + " is not configured"})
}

// truthy reads boolean query flags like ?wait=1 or ?wait=true.
func truthy(v string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

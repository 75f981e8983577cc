package httpapp

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/pgxstore"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v5"

	"github.com/entitylist/entitylist/internal/config"
	"github.com/entitylist/entitylist/internal/http/handlers"
)

const (
	sessionCookieName = "entitylist_session"
	maxRequestIDLen   = 128
)

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h *handlers.Handlers
	e *echo.Echo
}

// NewEchoServer creates a new HTTP server.
func NewEchoServer(h *handlers.Handlers) *EchoServer {
	e := echo.New()
	if h.Logger != nil {
		e.Logger = h.Logger
	}
	es := &EchoServer{h: h, e: e}
	e.HTTPErrorHandler = es.httpErrorHandler
	es.registerRoutes()
	return es
}

// NewSessionManager returns a session manager backed by the sessions table.
func NewSessionManager(pool *pgxpool.Pool, cfg config.Config) *scs.SessionManager {
	sessions := scs.New()
	sessions.Store = pgxstore.New(pool)
	sessions.Lifetime = cfg.SessionLifetime
	sessions.Cookie.Name = sessionCookieName
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.SameSite = http.SameSiteLaxMode
	sessions.Cookie.Secure = cfg.AuthCookieSecure
	return sessions
}

func (es *EchoServer) registerRoutes() {
	es.e.Use(requestIDMiddleware, es.accessLogMiddleware)
	es.e.GET("/healthz", es.h.HandleHealthz)

	list := es.e.Group("/api/spaces/:spaceId/environments/:environmentId/:entityType")
	list.GET("", es.h.HandleListEntities)
	list.GET("/view", es.h.HandleGetView)
	list.PUT("/view", es.h.HandlePutView)
	list.DELETE("/view", es.h.HandleDeleteView)
	list.GET("/suggestions", es.h.HandleSuggestions)
	list.POST("/filters", es.h.HandleAddFilter)
	list.DELETE("/filters/:index", es.h.HandleRemoveFilter)
}

// Handler returns the root handler, with sessions loaded and saved around
// every request when a session manager is configured.
func (es *EchoServer) Handler() http.Handler {
	if es.h.Sessions == nil {
		return es.e
	}
	return es.h.Sessions.LoadAndSave(es.e)
}

// NewHTTPServer wraps Handler in an http.Server listening on addr.
func (es *EchoServer) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           es.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func requestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := strings.TrimSpace(c.Request().Header.Get(echo.HeaderXRequestID))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(handlers.ContextKeyRequestID, id)
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		return next(c)
	}
}

func (es *EchoServer) accessLogMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		start := time.Now()
		err := next(c)
		requestID, _ := c.Get(handlers.ContextKeyRequestID).(string)
		es.logger().Debug("http request",
			"request_id", requestID,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"duration", time.Since(start),
		)
		return err
	}
}

func (es *EchoServer) logger() *slog.Logger {
	if es.h.Logger != nil {
		return es.h.Logger
	}
	return slog.Default()
}

type statusCoder interface {
	StatusCode() int
}

func httpStatusFromError(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code > 0 {
			return code
		}
	}
	return http.StatusInternalServerError
}

func (es *EchoServer) httpErrorHandler(c *echo.Context, err error) {
	status := httpStatusFromError(err)
	if status >= http.StatusInternalServerError {
		_ = es.h.RenderError(c, err)
		return
	}
	if status == http.StatusNotFound {
		_ = handlers.RenderNotFound(c)
		return
	}
	code := strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	_ = c.JSON(status, handlers.ErrorResponse{Error: strings.ToLower(http.StatusText(status)), Code: code})
}

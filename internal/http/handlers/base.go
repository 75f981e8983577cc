// Package handlers contains the HTTP handlers of the entity list API.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v5"

	"github.com/entitylist/entitylist/internal/config"
	"github.com/entitylist/entitylist/internal/contenttype"
	"github.com/entitylist/entitylist/internal/entity"
	"github.com/entitylist/entitylist/internal/store"
)

const (
	// ContextKeyRequestID stores the request id (X-Request-ID) for logging and client error references.
	ContextKeyRequestID = "request_id"

	// InternalErrorCode is a stable error code safe to return to clients.
	InternalErrorCode = "INTERNAL_ERROR"
	NotFoundCode      = "NOT_FOUND"
	BadRequestCode    = "BAD_REQUEST"
	InvalidViewCode   = "INVALID_VIEW"
)

// CollectionSource hands out the fetch function of one list scope.
type CollectionSource interface {
	FetchFunc(scope store.Scope) entity.FetchFunc
}

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups all HTTP handlers and shared dependencies.
type Handlers struct {
	Cfg          config.Config
	Collections  CollectionSource
	Health       Pinger
	Sessions     *scs.SessionManager
	ContentTypes *contenttype.Registry
	Logger       *slog.Logger
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// RenderError logs err and returns a generic 500 carrying the request id.
func (h *Handlers) RenderError(c *echo.Context, err error) error {
	requestID, _ := c.Get(ContextKeyRequestID).(string)
	path := ""
	if req := c.Request(); req != nil && req.URL != nil {
		path = req.URL.Path
	}
	method := ""
	if req := c.Request(); req != nil {
		method = req.Method
	}
	h.logger().Error("http error",
		"request_id", requestID,
		"method", method,
		"path", path,
		"ip", c.RealIP(),
		"error", err,
	)

	msg := "Internal server error."
	if requestID != "" {
		msg = fmt.Sprintf("%s Reference: %s.", msg, requestID)
	}
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msg, Code: InternalErrorCode})
}

// RenderLoadError maps a failed load onto a response. Rejected queries are the
// client's to fix and surface as 422 with the backend code.
func (h *Handlers) RenderLoadError(c *echo.Context, err error) error {
	if entity.Classify(err) != entity.KindQueryRejected {
		return h.RenderError(c, err)
	}
	code := entity.CodeInvalidQuery
	msg := err.Error()
	var apiErr *entity.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code != "" {
			code = apiErr.Code
		}
		if m := strings.TrimSpace(apiErr.Message); m != "" {
			msg = m
		}
	}
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: msg, Code: code})
}

// RenderNotFound returns a 404 response.
func RenderNotFound(c *echo.Context) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: NotFoundCode})
}

// ParseBoolForm parses a form value as a boolean.
func ParseBoolForm(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// HandleHealthz returns a simple health check response.
func (h *Handlers) HandleHealthz(c *echo.Context) error {
	if h.Health != nil {
		if err := h.Health.Ping(c.Request().Context()); err != nil {
			h.logger().Warn("health check failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

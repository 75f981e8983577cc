package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/entitylist/entitylist/internal/entity"
)

func quietHandlers() *Handlers {
	return &Handlers{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func decodeError(t *testing.T, body string) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return out
}

func TestRenderErrorDoesNotLeakError(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "http://example.com/test")
	c.Set(ContextKeyRequestID, "req-123")

	h := quietHandlers()
	if err := h.RenderError(c, errors.New("db password=secret")); err != nil {
		t.Fatalf("RenderError: %v", err)
	}

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusInternalServerError)
	}

	body := rec.Body.String()
	if strings.Contains(body, "db password") || strings.Contains(body, "secret") {
		t.Fatalf("response leaked error details: %q", body)
	}
	resp := decodeError(t, body)
	if !strings.Contains(resp.Error, "Internal server error") {
		t.Fatalf("response missing generic message: %q", body)
	}
	if !strings.Contains(resp.Error, "Reference: req-123") {
		t.Fatalf("response missing request reference: %q", body)
	}
	if resp.Code != InternalErrorCode {
		t.Fatalf("code = %q, want %q", resp.Code, InternalErrorCode)
	}
}

func TestRenderLoadError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "rejected query",
			err:        fmt.Errorf("load: %w", &entity.APIError{Status: 422, Code: entity.CodeInvalidQuery, Message: "unknown field"}),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   entity.CodeInvalidQuery,
		},
		{
			name:       "access denied",
			err:        &entity.APIError{Status: 403, Code: entity.CodeAccessDenied},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   entity.CodeAccessDenied,
		},
		{
			name:       "unknown",
			err:        errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   InternalErrorCode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestContext(http.MethodGet, "http://example.com/list")
			if err := quietHandlers().RenderLoadError(c, tt.err); err != nil {
				t.Fatalf("RenderLoadError: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decodeError(t, rec.Body.String()).Code; got != tt.wantCode {
				t.Fatalf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestParseBoolForm(t *testing.T) {
	for _, v := range []string{"1", "true", " YES ", "on"} {
		if !ParseBoolForm(v) {
			t.Fatalf("ParseBoolForm(%q) = false", v)
		}
	}
	for _, v := range []string{"", "0", "no", "maybe"} {
		if ParseBoolForm(v) {
			t.Fatalf("ParseBoolForm(%q) = true", v)
		}
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHandleHealthz(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "http://example.com/healthz")
	h := quietHandlers()
	h.Health = pinger{}
	if err := h.HandleHealthz(c); err != nil {
		t.Fatalf("HandleHealthz: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	c, rec = newTestContext(http.MethodGet, "http://example.com/healthz")
	h.Health = pinger{err: errors.New("down")}
	if err := h.HandleHealthz(c); err != nil {
		t.Fatalf("HandleHealthz: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

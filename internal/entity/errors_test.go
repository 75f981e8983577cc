package entity

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "sentinel", err: ErrResponseTooBig, want: KindOversized},
		{name: "wrapped sentinel", err: fmt.Errorf("fetch entries: %w", ErrResponseTooBig), want: KindOversized},
		{name: "structured code", err: &APIError{Status: http.StatusBadRequest, Code: CodeResponseSizeTooBig}, want: KindOversized},
		{name: "message only", err: errors.New("Response size too big. Maximum allowed response size: 7340032B."), want: KindOversized},
		{name: "message case insensitive", err: errors.New("RESPONSE SIZE TOO BIG"), want: KindOversized},
		{name: "message not a prefix", err: errors.New("upstream said: response size too big"), want: KindUnknown},
		{name: "api message without code", err: &APIError{Status: http.StatusBadRequest, Message: "Response size too big"}, want: KindOversized},
		{name: "invalid query", err: &APIError{Status: http.StatusUnprocessableEntity, Code: CodeInvalidQuery}, want: KindQueryRejected},
		{name: "forbidden", err: &APIError{Status: http.StatusForbidden, Code: CodeAccessDenied}, want: KindQueryRejected},
		{name: "server error", err: &APIError{Status: http.StatusBadGateway}, want: KindUnknown},
		{name: "network", err: errors.New("connection reset by peer"), want: KindUnknown},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Status: http.StatusUnprocessableEntity, Code: CodeInvalidQuery, Message: "unknown operator \"near\""}
	if got := err.Error(); got != "unknown operator \"near\" (InvalidQuery)" {
		t.Fatalf("Error() = %q", got)
	}
	bare := &APIError{Status: http.StatusForbidden}
	if got := bare.Error(); got != "Forbidden" {
		t.Fatalf("Error() = %q, want %q", got, "Forbidden")
	}
}

func TestEntityStatus(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)

	if got := (Entity{Sys: Sys{UpdatedAt: now}}).Status(); got != "draft" {
		t.Fatalf("draft status = %q", got)
	}
	if got := (Entity{Sys: Sys{UpdatedAt: now, PublishedAt: &earlier}}).Status(); got != "changed" {
		t.Fatalf("changed status = %q", got)
	}
	if got := (Entity{Sys: Sys{UpdatedAt: now, PublishedAt: &now}}).Status(); got != "published" {
		t.Fatalf("published status = %q", got)
	}
	if got := (Entity{Sys: Sys{UpdatedAt: now, ArchivedAt: &now}}).Status(); got != "archived" {
		t.Fatalf("archived status = %q", got)
	}
}

func TestEntityHasFile(t *testing.T) {
	if (Entity{}).HasFile() {
		t.Fatal("entity without fields has no file")
	}
	if (Entity{Fields: map[string]any{"file": nil}}).HasFile() {
		t.Fatal("nil file is not attached")
	}
	if (Entity{Fields: map[string]any{"file": map[string]any{}}}).HasFile() {
		t.Fatal("empty file object is not attached")
	}
	if !(Entity{Fields: map[string]any{"file": map[string]any{"url": "//cdn/x.png"}}}).HasFile() {
		t.Fatal("expected attached file")
	}
}

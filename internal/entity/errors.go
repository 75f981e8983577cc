package entity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Structured error codes returned by collection backends.
const (
	CodeResponseSizeTooBig = "ResponseSizeTooBig"
	CodeInvalidQuery       = "InvalidQuery"
	CodeAccessDenied       = "AccessDenied"
)

const oversizedMessagePrefix = "response size too big"

// ErrResponseTooBig marks a fetch whose response exceeded the backend limit.
var ErrResponseTooBig = errors.New("response size too big")

// Kind classifies fetch failures by how they are recovered from.
type Kind int

const (
	// KindUnknown errors are surfaced as-is with no retry.
	KindUnknown Kind = iota
	// KindOversized errors are retried with a smaller batch.
	KindOversized
	// KindQueryRejected errors are recovered by the caller resetting its filters.
	KindQueryRejected
)

func (k Kind) String() string {
	switch k {
	case KindOversized:
		return "oversized_response"
	case KindQueryRejected:
		return "query_rejected"
	default:
		return "unknown"
	}
}

// APIError is a structured error reported by a collection backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code == "" {
		return msg
	}
	return fmt.Sprintf("%s (%s)", msg, e.Code)
}

func (e *APIError) Is(target error) bool {
	return target == ErrResponseTooBig && e != nil && e.Code == CodeResponseSizeTooBig
}

// Classify maps an error onto the recovery taxonomy. Structured codes win; the
// message prefix check only exists for backends that report plain text.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrResponseTooBig) {
		return KindOversized
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == CodeResponseSizeTooBig {
			return KindOversized
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(apiErr.Message)), oversizedMessagePrefix) {
			return KindOversized
		}
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return KindQueryRejected
		}
		return KindUnknown
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(err.Error())), oversizedMessagePrefix) {
		return KindOversized
	}
	return KindUnknown
}

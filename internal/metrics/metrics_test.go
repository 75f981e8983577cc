package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestEnabled(t *testing.T) {
	tests := map[string]bool{
		"":            false,
		"  ":          false,
		"off":         false,
		"Disabled":    false,
		"false":       false,
		"0":           false,
		":9090":       true,
		"127.0.0.1:0": true,
	}
	for addr, want := range tests {
		if got := Enabled(addr); got != want {
			t.Fatalf("Enabled(%q) = %v, want %v", addr, got, want)
		}
	}
}

func TestStartServerDisabled(t *testing.T) {
	srv, errCh := StartServer(context.Background(), "off")
	if srv != nil || errCh != nil {
		t.Fatalf("StartServer(off) = %v, %v; want nils", srv, errCh)
	}
}

func TestPrometheusRecorder(t *testing.T) {
	before := counterValue(t, LoadsTotal.WithLabelValues("Entry", "success"))
	Prometheus{}.Load("Entry", "success")
	if got := counterValue(t, LoadsTotal.WithLabelValues("Entry", "success")); got != before+1 {
		t.Fatalf("loads_total = %v, want %v", got, before+1)
	}

	before = counterValue(t, LoadRetriesTotal.WithLabelValues("Asset"))
	Prometheus{}.Retry("Asset")
	if got := counterValue(t, LoadRetriesTotal.WithLabelValues("Asset")); got != before+1 {
		t.Fatalf("load_retries_total = %v, want %v", got, before+1)
	}

	Prometheus{}.Fetch("Entry", 20*time.Millisecond)
	Discard{}.Load("Entry", "success")
}

func TestHandlerExposesMetrics(t *testing.T) {
	Prometheus{}.Stale("Entry")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "entitylist_load_stale_total") {
		t.Fatalf("metrics output missing load_stale_total:\n%s", body)
	}
}

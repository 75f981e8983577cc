package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/entitylist/entitylist/internal/entity"
	"github.com/entitylist/entitylist/internal/metrics"
	"github.com/entitylist/entitylist/internal/view"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entries(prefix string, n int) []entity.Entity {
	out := make([]entity.Entity, 0, n)
	for i := range n {
		out = append(out, entity.Entity{Sys: entity.Sys{ID: fmt.Sprintf("%s-%d", prefix, i), Type: entity.TypeEntry}})
	}
	return out
}

type recordedCall struct {
	params map[string]any
}

type stubFetcher struct {
	mu    sync.Mutex
	calls []recordedCall
	fn    func(params map[string]any) (entity.Collection, error)
}

func (s *stubFetcher) Fetch(_ context.Context, params map[string]any) (entity.Collection, error) {
	s.mu.Lock()
	s.calls = append(s.calls, recordedCall{params: params})
	s.mu.Unlock()
	return s.fn(params)
}

func (s *stubFetcher) Calls() []recordedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedCall(nil), s.calls...)
}

func newTestLoader(fetch entity.FetchFunc, opts ...Option) *Loader {
	opts = append([]Option{WithLogger(quietLogger()), WithMetrics(metrics.Discard{})}, opts...)
	return New(fetch, opts...)
}

func TestLoadResetReturnsFirstPage(t *testing.T) {
	stub := &stubFetcher{fn: func(params map[string]any) (entity.Collection, error) {
		return entity.Collection{Items: entries("e", params[ParamLimit].(int)), Total: 100}, nil
	}}
	l := newTestLoader(stub.Fetch)

	resp, err := l.Load(context.Background(), Options{Reset: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(resp.Data) != DefaultPageSize {
		t.Fatalf("len(Data) = %d, want %d", len(resp.Data), DefaultPageSize)
	}
	if !resp.HasMore || resp.Total != 100 || resp.Stale {
		t.Fatalf("unexpected response %+v", resp)
	}
	call := stub.Calls()[0]
	if call.params[ParamSkip] != 0 || call.params[ParamLimit] != DefaultPageSize {
		t.Fatalf("unexpected paging params %v", call.params)
	}
}

func TestLoadMoreAdvancesAndDeduplicates(t *testing.T) {
	stub := &stubFetcher{fn: func(params map[string]any) (entity.Collection, error) {
		skip := params[ParamSkip].(int)
		items := entries("e", skip+2)[skip/2:]
		return entity.Collection{Items: items, Total: 4}, nil
	}}
	l := newTestLoader(stub.Fetch, WithPageSize(2))

	first, err := l.Load(context.Background(), Options{Reset: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := l.Load(context.Background(), Options{More: true})
	if err != nil {
		t.Fatalf("Load more: %v", err)
	}
	if l.Paginator().Page() != 1 {
		t.Fatalf("Page() = %d, want 1", l.Paginator().Page())
	}
	seen := map[string]bool{}
	for _, e := range append(first.Data, second.Data...) {
		if seen[e.ID()] {
			t.Fatalf("duplicate entity %q across pages", e.ID())
		}
		seen[e.ID()] = true
	}
	if second.HasMore {
		t.Fatalf("expected last page")
	}
}

// A call issued first but resolved last never overwrites the later result.
func TestLoadLastWriteWins(t *testing.T) {
	releaseA := make(chan struct{})
	enteredA := make(chan struct{})
	fetch := func(_ context.Context, params map[string]any) (entity.Collection, error) {
		if params[ParamQuery] == "a" {
			close(enteredA)
			<-releaseA
			return entity.Collection{Items: entries("a", 3), Total: 3}, nil
		}
		return entity.Collection{Items: entries("b", 1), Total: 1}, nil
	}
	l := newTestLoader(fetch)

	type result struct {
		resp Response
		err  error
	}
	aDone := make(chan result, 1)
	go func() {
		resp, err := l.Load(context.Background(), Options{Reset: true, Search: view.View{SearchText: "a"}})
		aDone <- result{resp, err}
	}()
	<-enteredA

	b, err := l.Load(context.Background(), Options{Reset: true, Search: view.View{SearchText: "b"}})
	if err != nil {
		t.Fatalf("Load b: %v", err)
	}
	close(releaseA)
	a := <-aDone

	if a.err != nil {
		t.Fatalf("stale load returned error %v", a.err)
	}
	if !a.resp.Stale || len(a.resp.Data) != 0 {
		t.Fatalf("expected stale empty response for a, got %+v", a.resp)
	}
	if b.Stale || len(b.Data) != 1 || b.Data[0].ID() != "b-0" {
		t.Fatalf("unexpected response for b: %+v", b)
	}
	if got := l.Paginator().Total(); got != 1 {
		t.Fatalf("Total() = %d, want b's total 1", got)
	}
}

// An oversized response at 40 is retried at 20 without surfacing an error.
func TestLoadOversizedResponseBacksOff(t *testing.T) {
	stub := &stubFetcher{fn: func(params map[string]any) (entity.Collection, error) {
		limit := params[ParamLimit].(int)
		if limit > 20 {
			return entity.Collection{}, errors.New("Response size too big. Maximum allowed response size: 7340032B.")
		}
		return entity.Collection{Items: entries("e", limit), Total: 500}, nil
	}}
	l := newTestLoader(stub.Fetch)

	resp, err := l.Load(context.Background(), Options{Reset: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(resp.Data) == 0 || len(resp.Data) > 20 {
		t.Fatalf("len(Data) = %d, want 1..20", len(resp.Data))
	}
	if l.Err() != nil {
		t.Fatalf("Err() = %v, want nil", l.Err())
	}
	if got := l.Paginator().PerPage(); got != 20 {
		t.Fatalf("PerPage() = %d, want shrunk to 20", got)
	}
	calls := stub.Calls()
	if len(calls) != 2 {
		t.Fatalf("fetch calls = %d, want 2", len(calls))
	}
}

func TestLoadOversizedStructuredCode(t *testing.T) {
	stub := &stubFetcher{fn: func(params map[string]any) (entity.Collection, error) {
		if params[ParamLimit].(int) > 5 {
			return entity.Collection{}, &entity.APIError{Status: 400, Code: entity.CodeResponseSizeTooBig}
		}
		return entity.Collection{Items: entries("e", 5), Total: 5}, nil
	}}
	l := newTestLoader(stub.Fetch)

	if _, err := l.Load(context.Background(), Options{Reset: true}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	// 40 -> 20 -> 10 -> 5
	if got := len(stub.Calls()); got != 4 {
		t.Fatalf("fetch calls = %d, want 4", got)
	}
}

func TestLoadOversizedGivesUpAtMinimum(t *testing.T) {
	stub := &stubFetcher{fn: func(map[string]any) (entity.Collection, error) {
		return entity.Collection{}, entity.ErrResponseTooBig
	}}
	l := newTestLoader(stub.Fetch, WithPageSize(8), WithMinPageSize(2))

	_, err := l.Load(context.Background(), Options{Reset: true})
	if !errors.Is(err, entity.ErrResponseTooBig) {
		t.Fatalf("err = %v, want ErrResponseTooBig", err)
	}
	// 8 -> 4 -> 2
	if got := len(stub.Calls()); got != 3 {
		t.Fatalf("fetch calls = %d, want 3", got)
	}
	if !errors.Is(l.Err(), entity.ErrResponseTooBig) {
		t.Fatalf("Err() = %v, want stored error", l.Err())
	}
}

func TestLoadMoreRollsBackPageOnRetryAndFailure(t *testing.T) {
	fail := false
	stub := &stubFetcher{fn: func(params map[string]any) (entity.Collection, error) {
		if fail {
			return entity.Collection{}, &entity.APIError{Status: 500, Message: "boom"}
		}
		if params[ParamSkip].(int) > 0 && params[ParamLimit].(int) > 2 {
			return entity.Collection{}, entity.ErrResponseTooBig
		}
		return entity.Collection{Items: entries(fmt.Sprint(params[ParamSkip]), params[ParamLimit].(int)), Total: 100}, nil
	}}
	l := newTestLoader(stub.Fetch, WithPageSize(4))

	if _, err := l.Load(context.Background(), Options{Reset: true}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := l.Load(context.Background(), Options{More: true}); err != nil {
		t.Fatalf("Load more: %v", err)
	}
	if got := l.Paginator().Page(); got != 1 {
		t.Fatalf("Page() = %d after retried more, want 1", got)
	}
	last := stub.Calls()[len(stub.Calls())-1]
	if last.params[ParamSkip] != 2 || last.params[ParamLimit] != 2 {
		t.Fatalf("retry params = %v, want skip 2 limit 2", last.params)
	}

	fail = true
	_, err := l.Load(context.Background(), Options{More: true})
	if entity.Classify(err) != entity.KindUnknown || err == nil {
		t.Fatalf("err = %v, want unknown error", err)
	}
	if got := l.Paginator().Page(); got != 1 {
		t.Fatalf("Page() = %d after failed more, want rolled back to 1", got)
	}
}

func TestLoadQueryRejectedIsSurfaced(t *testing.T) {
	stub := &stubFetcher{fn: func(map[string]any) (entity.Collection, error) {
		return entity.Collection{}, &entity.APIError{Status: 422, Code: entity.CodeInvalidQuery}
	}}
	l := newTestLoader(stub.Fetch)

	_, err := l.Load(context.Background(), Options{Reset: true})
	if entity.Classify(err) != entity.KindQueryRejected {
		t.Fatalf("Classify(err) = %v, want query rejected", entity.Classify(err))
	}
	if len(stub.Calls()) != 1 {
		t.Fatalf("query rejected errors must not be retried")
	}
}

func TestLoadAssetsRequireFile(t *testing.T) {
	stub := &stubFetcher{fn: func(map[string]any) (entity.Collection, error) {
		return entity.Collection{Items: []entity.Entity{
			{Sys: entity.Sys{ID: "with", Type: entity.TypeAsset}, Fields: map[string]any{"file": map[string]any{"url": "x"}}},
			{Sys: entity.Sys{ID: "without", Type: entity.TypeAsset}},
		}, Total: 2}, nil
	}}
	l := newTestLoader(stub.Fetch, WithEntityType(entity.TypeAsset))

	resp, err := l.Load(context.Background(), Options{Reset: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID() != "with" {
		t.Fatalf("Data = %+v, want only the asset with a file", resp.Data)
	}
	if got := stub.Calls()[0].params[ParamFileExists]; got != true {
		t.Fatalf("%s = %v, want true", ParamFileExists, got)
	}
}

type staticContentTypes map[string]map[string]bool

func (s staticContentTypes) DisplayField(id string) (string, bool) {
	if _, ok := s[id]; !ok {
		return "", false
	}
	return "title", true
}

func (s staticContentTypes) HasField(id, field string) bool {
	return s[id][field]
}

func TestLoadParams(t *testing.T) {
	cts := staticContentTypes{"post": {"title": true, "rating": true}}
	tests := []struct {
		name   string
		search view.View
		want   map[string]any
	}{
		{
			name:   "sys order descending",
			search: view.View{Order: view.Order{FieldID: "updatedAt", Direction: view.Descending}},
			want:   map[string]any{ParamOrder: "-sys.updatedAt"},
		},
		{
			name:   "content type field",
			search: view.View{ContentTypeID: "post", Order: view.Order{FieldID: "rating", Direction: view.Ascending}},
			want:   map[string]any{ParamOrder: "fields.rating", ParamContentType: "post"},
		},
		{
			name:   "display field",
			search: view.View{ContentTypeID: "post", Order: view.Order{FieldID: DisplayFieldOrder, Direction: view.Ascending}},
			want:   map[string]any{ParamOrder: "fields.title", ParamContentType: "post"},
		},
		{
			name: "text and filters",
			search: view.View{
				SearchText: " hello ",
				SearchFilters: []view.Filter{
					{Key: "fields.rating", Operator: "gte", Value: "3"},
					{Key: "fields.empty", Value: ""},
				},
			},
			want: map[string]any{ParamQuery: "hello", "fields.rating[gte]": "3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubFetcher{fn: func(map[string]any) (entity.Collection, error) {
				return entity.Collection{}, nil
			}}
			l := newTestLoader(stub.Fetch, WithContentTypes(cts))
			if _, err := l.Load(context.Background(), Options{Reset: true, Search: tt.search}); err != nil {
				t.Fatalf("Load: %v", err)
			}
			params := stub.Calls()[0].params
			for key, want := range tt.want {
				if got := params[key]; got != want {
					t.Fatalf("params[%q] = %v, want %v (all: %v)", key, got, want, params)
				}
			}
			if _, ok := params["fields.empty"]; ok {
				t.Fatalf("empty filter value must be dropped")
			}
			if len(params) != len(tt.want)+2 {
				t.Fatalf("params = %v, want %d keys", params, len(tt.want)+2)
			}
		})
	}
}

func TestRetryLimit(t *testing.T) {
	tests := map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 40: 6, 64: 6}
	for n, want := range tests {
		if got := retryLimit(n); got != want {
			t.Fatalf("retryLimit(%d) = %d, want %d", n, got, want)
		}
	}
}

// gateRecorder blocks the first successful load inside the loader, after the
// call has passed its latest-call check.
type gateRecorder struct {
	metrics.Discard
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGateRecorder() *gateRecorder {
	return &gateRecorder{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateRecorder) Load(_, status string) {
	if status != "success" {
		return
	}
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
}

func TestLoadSupersededAfterPublishIsNotLatest(t *testing.T) {
	stub := &stubFetcher{fn: func(params map[string]any) (entity.Collection, error) {
		prefix, _ := params[ParamQuery].(string)
		total := 10
		if prefix == "b" {
			total = 20
		}
		return entity.Collection{Items: entries(prefix, 1), Total: total}, nil
	}}
	gate := newGateRecorder()
	l := New(stub.Fetch, WithLogger(quietLogger()), WithMetrics(gate), WithPageSize(5))

	type result struct {
		resp Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := l.Load(context.Background(), Options{Reset: true, Search: view.View{SearchText: "a"}})
		done <- result{resp, err}
	}()
	<-gate.entered

	b, err := l.Load(context.Background(), Options{Reset: true, Search: view.View{SearchText: "b"}})
	if err != nil {
		t.Fatalf("Load b: %v", err)
	}
	close(gate.release)
	a := <-done
	if a.err != nil {
		t.Fatalf("Load a: %v", a.err)
	}

	if l.IsLatest(a.resp.Token) {
		t.Fatalf("earlier call still reported as latest")
	}
	if !l.IsLatest(b.Token) {
		t.Fatalf("later call not reported as latest")
	}
	if got := l.Paginator().Total(); got != 20 {
		t.Fatalf("Total() = %d, want 20 from the later call", got)
	}
}

package feed

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) (*Client, *metrics.Collector) {
	t.Helper()
	logger := logging.NewStructuredLogger("feed-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollector("feed_test", prometheus.NewRegistry())
	return NewClient(Config{BaseURL: baseURL, AuthKey: "test-key", Timeout: timeout}, logger, collector), collector
}

func TestClient_FetchSendsQuery(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(`{"response":{}}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, time.Second)
	body, err := client.Fetch(context.Background(), "20240315", "0500", 55, 127)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if body != `{"response":{}}` {
		t.Errorf("Fetch() body = %q", body)
	}
	if gotPath != "/getVilageFcst" {
		t.Errorf("path = %q, want /getVilageFcst", gotPath)
	}

	want := map[string]string{
		"authKey":   "test-key",
		"pageNo":    "1",
		"numOfRows": "1000",
		"dataType":  "JSON",
		"base_date": "20240315",
		"base_time": "0500",
		"nx":        "55",
		"ny":        "127",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestClient_FetchFailures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		timeout    time.Duration
		wantReason string
	}{
		{
			name: "server error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			timeout:    time.Second,
			wantReason: "status",
		},
		{
			name: "not found status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			timeout:    time.Second,
			wantReason: "status",
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
				w.Write([]byte("late"))
			},
			timeout:    20 * time.Millisecond,
			wantReason: "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client, collector := newTestClient(t, server.URL, tt.timeout)
			_, err := client.Fetch(context.Background(), "20240315", "0500", 55, 127)

			if !errors.Is(err, ErrFeedUnavailable) {
				t.Fatalf("Fetch() error = %v, want ErrFeedUnavailable", err)
			}
			var feedErr *FeedUnavailableError
			if !errors.As(err, &feedErr) {
				t.Fatalf("Fetch() error type = %T", err)
			}
			if feedErr.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", feedErr.Reason, tt.wantReason)
			}
			if got := testutil.ToFloat64(collector.FeedErrorsTotal.WithLabelValues(tt.wantReason)); got != 1 {
				t.Errorf("feed error counter = %v, want 1", got)
			}
		})
	}
}

func TestClient_UnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, _ := newTestClient(t, url, time.Second)
	_, err := client.Fetch(context.Background(), "20240315", "0500", 55, 127)
	if !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("Fetch() error = %v, want ErrFeedUnavailable", err)
	}
}

func TestClient_SingleAttemptAndOpenCircuit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := client.Fetch(ctx, "20240315", "0500", 55, 127); err == nil {
			t.Fatal("Fetch() should fail")
		}
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("server calls = %d, want 3 (one per Fetch)", got)
	}

	_, err := client.Fetch(ctx, "20240315", "0500", 55, 127)
	var feedErr *FeedUnavailableError
	if !errors.As(err, &feedErr) || feedErr.Reason != "circuit_open" {
		t.Fatalf("Fetch() with open circuit error = %v, want circuit_open", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server calls = %d, open circuit must not reach the server", got)
	}
}

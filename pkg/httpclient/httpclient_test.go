package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/daszybak/omniverse_markets/pkg/retry"
)

func noSleep(context.Context, time.Duration) error { return nil }

type payload struct {
	Name string `json:"name"`
}

func TestGetResource(t *testing.T) {
	t.Run("decodes body and sends headers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/markets" {
				t.Errorf("path = %q, want /markets", r.URL.Path)
			}
			if r.URL.Query().Get("limit") != "5" {
				t.Errorf("limit = %q, want 5", r.URL.Query().Get("limit"))
			}
			if got := r.Header.Get("Authorization"); got != "Bearer secret" {
				t.Errorf("Authorization = %q", got)
			}
			if got := r.Header.Get("X-User-Id"); got != "u1" {
				t.Errorf("X-User-Id = %q", got)
			}
			_, _ = w.Write([]byte(`{"name":"ok"}`))
		}))
		defer server.Close()

		c := New(server.URL+"/", WithAPIKey("secret"), WithHeader("X-User-Id", "u1"))
		got, err := GetResource[payload](context.Background(), c, "/markets", url.Values{"limit": {"5"}}, []int{200})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Name != "ok" {
			t.Errorf("Name = %q, want ok", got.Name)
		}
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"name":"third"}`))
		}))
		defer server.Close()

		c := New(server.URL, WithRetry(retry.Policy{Sleep: noSleep}))
		got, err := GetResource[payload](context.Background(), c, "/", nil, []int{200})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Name != "third" || calls.Load() != 3 {
			t.Errorf("got %q after %d calls", got.Name, calls.Load())
		}
	})

	t.Run("does not retry not found", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.NotFound(w, r)
		}))
		defer server.Close()

		c := New(server.URL, WithRetry(retry.Policy{Sleep: noSleep}))
		_, err := GetResource[payload](context.Background(), c, "/missing", nil, []int{200})
		if !IsNotFound(err) {
			t.Fatalf("err = %v, want not found", err)
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer server.Close()

		_, err := GetResource[payload](context.Background(), New(server.URL), "/", nil, []int{200})
		if err == nil {
			t.Fatal("expected decode error")
		}
		var se *StatusError
		if errors.As(err, &se) {
			t.Errorf("decode failure should not be a StatusError: %v", err)
		}
	})
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &StatusError{StatusCode: 502}, true},
		{"rate limited", &StatusError{StatusCode: 429}, true},
		{"bad request", &StatusError{StatusCode: 400}, false},
		{"not found", &StatusError{StatusCode: 404}, false},
		{"transport", errors.New("connection reset"), true},
		{"cancelled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

package topoapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/nettrail/linkwatch/internal/topoapi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// capture records the requests an httptest server receives.
type capture struct {
	mu       sync.Mutex
	requests []*http.Request
	status   int
	body     string
}

func (c *capture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.requests = append(c.requests, r.Clone(context.Background()))
		c.mu.Unlock()

		if c.status != 0 {
			w.WriteHeader(c.status)
		}
		if c.body != "" {
			_, _ = w.Write([]byte(c.body))
		}
	}
}

func (c *capture) last(t *testing.T) *http.Request {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		t.Fatal("no request received")
	}
	return c.requests[len(c.requests)-1]
}

func TestEnableDisableInterface(t *testing.T) {
	t.Parallel()

	rec := &capture{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	client := topoapi.NewClient(srv.URL, topoapi.WithHTTPClient(srv.Client()))
	ctx := context.Background()

	if err := client.EnableInterface(ctx, "00:00:00:00:00:00:00:01:1"); err != nil {
		t.Fatalf("EnableInterface: %v", err)
	}
	req := rec.last(t)
	if req.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if want := "/api/v1/interfaces/00:00:00:00:00:00:00:01:1/enable"; req.URL.Path != want {
		t.Errorf("path = %q, want %q", req.URL.Path, want)
	}

	if err := client.DisableInterface(ctx, "00:00:00:00:00:00:00:01:1"); err != nil {
		t.Fatalf("DisableInterface: %v", err)
	}
	if want := "/api/v1/interfaces/00:00:00:00:00:00:00:01:1/disable"; rec.last(t).URL.Path != want {
		t.Errorf("path = %q, want %q", rec.last(t).URL.Path, want)
	}
}

func TestErrorResponse(t *testing.T) {
	t.Parallel()

	rec := &capture{status: http.StatusConflict, body: `{"error":"interface busy"}`}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	client := topoapi.NewClient(srv.URL, topoapi.WithHTTPClient(srv.Client()))

	err := client.DisableInterface(context.Background(), "intf-1")
	if err == nil {
		t.Fatal("no error on a 409 response")
	}
	if !strings.Contains(err.Error(), "409") {
		t.Errorf("error %q does not carry the status code", err)
	}
	if !strings.Contains(err.Error(), "interface busy") {
		t.Errorf("error %q does not carry the body excerpt", err)
	}
}

func TestContextCancellation(t *testing.T) {
	t.Parallel()

	rec := &capture{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	client := topoapi.NewClient(srv.URL, topoapi.WithHTTPClient(srv.Client()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.EnableInterface(ctx, "intf-1"); err == nil {
		t.Fatal("no error with a canceled context")
	}
}

func TestBaseURLTrailingSlash(t *testing.T) {
	t.Parallel()

	rec := &capture{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	client := topoapi.NewClient(srv.URL+"/", topoapi.WithHTTPClient(srv.Client()))
	if err := client.EnableInterface(context.Background(), "intf-1"); err != nil {
		t.Fatalf("EnableInterface: %v", err)
	}
	if want := "/api/v1/interfaces/intf-1/enable"; rec.last(t).URL.Path != want {
		t.Errorf("path = %q, want %q", rec.last(t).URL.Path, want)
	}
}

package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/cesto-ofertas-go/internal/config"
)

type stubRenderer struct {
	html  string
	calls int
}

func (s *stubRenderer) Render(ctx context.Context, url string) (string, error) {
	s.calls++
	return s.html, nil
}

var _ Renderer = (*Browser)(nil)

func testClient(retries int, renderer Renderer) *Client {
	c := NewClient(&config.ScraperConfig{RateLimit: 1000, Timeout: 5 * time.Second, MaxRetries: retries, AllowPrivate: true}, renderer)
	c.backoff = time.Millisecond
	return c
}

func TestClient_FetchParsesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request without User-Agent")
		}
		fmt.Fprint(w, `<meta property="og:title" content="Lamp"><meta property="product:price:amount" content="9.50">`)
	}))
	defer srv.Close()

	md, err := testClient(0, nil).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if md.Title != "Lamp" || md.Price != 9.5 || md.URL != srv.URL {
		t.Errorf("Fetch() = %+v", md)
	}
}

func TestClient_RetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `<title>ok</title>`)
	}))
	defer srv.Close()

	md, err := testClient(3, nil).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if md.Title != "ok" || hits.Load() != 3 {
		t.Errorf("title = %q after %d hits", md.Title, hits.Load())
	}
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := testClient(2, nil).Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("Fetch() expected error")
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

func TestClient_RendersWhenStaticPageIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div id="app"></div>`)
	}))
	defer srv.Close()

	renderer := &stubRenderer{html: `<meta property="og:title" content="Rendered">`}
	md, err := testClient(0, renderer).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if renderer.calls != 1 || md.Title != "Rendered" || md.URL != srv.URL {
		t.Errorf("Fetch() = %+v after %d renders", md, renderer.calls)
	}
}

func TestClient_RejectsBadURL(t *testing.T) {
	if _, err := testClient(0, nil).Fetch(context.Background(), "not a url"); err == nil {
		t.Error("Fetch() expected error for invalid URL")
	}
}

func TestClient_RetryPolicy(t *testing.T) {
	tests := []struct {
		status   int
		wantHits int32
	}{
		{status: http.StatusNotFound, wantHits: 1},
		{status: http.StatusForbidden, wantHits: 1},
		{status: http.StatusTooManyRequests, wantHits: 3},
		{status: http.StatusServiceUnavailable, wantHits: 3},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := testClient(2, nil).Fetch(context.Background(), srv.URL)
			var se *StatusError
			if !errors.As(err, &se) || se.Code != tt.status {
				t.Fatalf("Fetch() error = %v, want status %d", err, tt.status)
			}
			if hits.Load() != tt.wantHits {
				t.Errorf("hits = %d, want %d", hits.Load(), tt.wantHits)
			}
		})
	}
}

func TestClient_RefusesPrivateAddresses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `<title>internal</title>`)
	}))
	defer srv.Close()

	c := NewClient(&config.ScraperConfig{RateLimit: 1000, Timeout: 5 * time.Second, MaxRetries: 3}, nil)
	c.backoff = time.Millisecond
	if _, err := c.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrBlockedAddress) {
		t.Errorf("Fetch(loopback) error = %v, want ErrBlockedAddress", err)
	}
	if hits.Load() != 0 {
		t.Errorf("hits = %d, want 0", hits.Load())
	}
}

func TestPublicAddr(t *testing.T) {
	tests := map[string]bool{
		"93.184.216.34":       true,
		"2606:2800:220:1::1":  true,
		"127.0.0.1":           false,
		"10.1.2.3":            false,
		"172.16.0.1":          false,
		"192.168.1.10":        false,
		"169.254.169.254":     false,
		"100.64.0.1":          false,
		"0.0.0.0":             false,
		"::1":                 false,
		"fe80::1":             false,
		"fd00::1":             false,
		"::ffff:127.0.0.1":    false,
		"::ffff:93.184.216.3": true,
	}
	for in, want := range tests {
		if got := publicAddr(netip.MustParseAddr(in)); got != want {
			t.Errorf("publicAddr(%s) = %v, want %v", in, got, want)
		}
	}
}

package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/config"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBodyBytes     = 5 << 20
)

// ErrBlockedAddress is returned when a page resolves to a loopback, private or link-local address
var ErrBlockedAddress = errors.New("address is not publicly routable")

// StatusError is a non-200 response from the page server
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP status %d", e.Code)
}

// Renderer produces HTML for pages that need JavaScript
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Client fetches product pages politely: rate limited, retried with exponential backoff
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	userAgent  string
	backoff    time.Duration
	renderer   Renderer
}

// NewClient creates a client from configuration. renderer may be nil.
func NewClient(cfg *config.ScraperConfig, renderer Renderer) *Client {
	agent := cfg.UserAgent
	if agent == "" {
		agent = defaultUserAgent
	}
	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newTransport(cfg.AllowPrivate),
		},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		maxRetries: cfg.MaxRetries,
		userAgent:  agent,
		backoff:    time.Second,
		renderer:   renderer,
	}
}

func newTransport(allowPrivate bool) *http.Transport {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !allowPrivate {
		dialer.Control = publicOnly
	}
	return &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
}

// publicOnly refuses connections to addresses that are not publicly routable.
// It runs after name resolution, so redirects and DNS names are covered too.
func publicOnly(network, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	if !publicAddr(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ap.Addr())
	}
	return nil
}

// publicAddr reports whether ip is a global unicast address outside private ranges
func publicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() && !ip.IsPrivate() && !cgnat.Contains(ip)
}

var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// Fetch downloads and parses the page at rawURL. When the static HTML carries
// no title and a renderer is configured, the page is rendered and parsed again.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Metadata, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	html, err := c.fetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	md, err := Parse(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	if md.Title == "" && c.renderer != nil {
		log.Info().Str("url", rawURL).Msg("Static page has no title, rendering with browser")
		rendered, err := c.renderer.Render(ctx, rawURL)
		if err != nil {
			log.Warn().Err(err).Str("url", rawURL).Msg("Browser render failed")
		} else if md2, err := Parse(strings.NewReader(rendered)); err == nil {
			md = md2
		}
	}

	md.URL = rawURL
	return md, nil
}

// ValidateURL accepts absolute http and https URLs only
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("URL must be absolute http or https: %q", rawURL)
	}
	return nil
}

// fetchWithRetry performs the request with exponential backoff
func (c *Client) fetchWithRetry(ctx context.Context, targetURL string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}

		html, err := c.fetch(ctx, targetURL)
		if err == nil {
			return html, nil
		}
		if !retryable(err) {
			return "", err
		}
		lastErr = err

		if attempt < c.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * c.backoff
			log.Debug().Err(err).Int("attempt", attempt+1).Dur("backoff", backoff).Str("url", targetURL).Msg("Retrying fetch")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// retryable reports whether a failed fetch may succeed on another attempt:
// network errors, 5xx and 429 responses
func retryable(err error) bool {
	if errors.Is(err, ErrBlockedAddress) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError || se.Code == http.StatusTooManyRequests
	}
	return true
}

// fetch performs a single HTTP request
func (c *Client) fetch(ctx context.Context, targetURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request error: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	log.Debug().Int("status", resp.StatusCode).Str("url", targetURL).Msg("HTTP response")

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body error: %w", err)
	}
	return string(body), nil
}

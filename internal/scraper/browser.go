package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// pageLoadTimeout bounds one rendered fetch
const pageLoadTimeout = 30 * time.Second

// Browser renders client-side product pages with a shared headless Chrome
type Browser struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	agent    string
	closed   bool
}

// NewBrowser launches a headless browser
func NewBrowser(userAgent string) (*Browser, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-extensions").
		Set("mute-audio").
		Set("no-first-run")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	log.Info().Msg("Headless browser started")
	return &Browser{browser: browser, launcher: l, agent: userAgent}, nil
}

// Render loads url, waits for the page to settle and returns its HTML
func (b *Browser) Render(ctx context.Context, url string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", fmt.Errorf("browser is closed")
	}

	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(pageLoadTimeout)

	if b.agent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.agent}); err != nil {
			return "", fmt.Errorf("failed to set user agent: %w", err)
		}
	}
	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("failed to wait for load: %w", err)
	}
	if err := page.WaitStable(time.Second); err != nil {
		log.Debug().Err(err).Str("url", url).Msg("Page did not settle, using current HTML")
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

// Close shuts the browser down
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return err
}

package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ErrSessionUnavailable is returned when no rendering session can be acquired
var ErrSessionUnavailable = errors.New("rendering session unavailable")

// Renderer acquires rendering sessions, one per query
type Renderer interface {
	Open(ctx context.Context) (Session, error)
}

// Session fetches fully rendered markup. Each Render call works in its own
// tab, which is closed before Render returns.
type Session interface {
	Render(ctx context.Context, url string, timeout time.Duration) (string, error)
	Close() error
}

// BrowserRendererConfig configures the headless Chromium renderer
type BrowserRendererConfig struct {
	// Bin is the Chromium binary. Empty = system chromium if present, else auto-detect.
	Bin         string
	UserAgent   string
	SettleDelay time.Duration
	Logger      *slog.Logger
}

// BrowserRenderer launches headless Chromium through rod
type BrowserRenderer struct {
	cfg BrowserRendererConfig
}

// NewBrowserRenderer creates a browser renderer
func NewBrowserRenderer(cfg BrowserRendererConfig) *BrowserRenderer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &BrowserRenderer{cfg: cfg}
}

// Open launches a browser and connects to it
func (r *BrowserRenderer) Open(ctx context.Context) (Session, error) {
	l := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true).
		Leakless(false).
		Set("disable-blink-features", "AutomationControlled")

	bin := r.cfg.Bin
	if bin == "" {
		// Docker images ship chromium-browser; locally rod downloads its own
		if _, err := os.Stat("/usr/bin/chromium-browser"); err == nil {
			bin = "/usr/bin/chromium-browser"
		}
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	r.cfg.Logger.Debug("browser session opened", "control_url", controlURL, "bin", bin)
	return &browserSession{browser: browser, launcher: l, cfg: r.cfg}, nil
}

type browserSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      BrowserRendererConfig
}

func (s *browserSession) Render(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	page, err := stealth.Page(s.browser)
	if err != nil {
		return "", fmt.Errorf("open tab: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.cfg.Logger.Debug("close tab", "url", pageURL, "error", err)
		}
	}()

	if s.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.cfg.UserAgent}); err != nil {
			return "", fmt.Errorf("set user agent: %w", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := page.Context(navCtx)
	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(pageURL); err != nil {
		return "", fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	wait()
	if err := navCtx.Err(); err != nil {
		return "", fmt.Errorf("navigate %s: %w", pageURL, err)
	}

	// listings are injected after DOMContentLoaded
	if err := sleepContext(ctx, s.cfg.SettleDelay); err != nil {
		return "", err
	}

	html, err := page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("read html %s: %w", pageURL, err)
	}
	return html, nil
}

func (s *browserSession) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	return err
}

// HTTPRendererConfig configures the plain HTTP renderer
type HTTPRendererConfig struct {
	Client    *http.Client
	UserAgent string
	Logger    *slog.Logger
}

// HTTPRenderer fetches markup with a single GET and runs no JavaScript.
// It serves static pages, pre-rendering proxies and tests.
type HTTPRenderer struct {
	cfg HTTPRendererConfig
}

// NewHTTPRenderer creates an HTTP renderer
func NewHTTPRenderer(cfg HTTPRendererConfig) *HTTPRenderer {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; dealscout/1.0)"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HTTPRenderer{cfg: cfg}
}

// Open returns a session sharing the renderer's client
func (r *HTTPRenderer) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &httpSession{cfg: r.cfg}, nil
}

type httpSession struct {
	cfg HTTPRendererConfig
}

func (s *httpSession) Render(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("get %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	// Cap read to 10MB
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read body %s: %w", pageURL, err)
	}
	return string(body), nil
}

func (s *httpSession) Close() error {
	s.cfg.Client.CloseIdleConnections()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

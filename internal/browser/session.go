// Package browser drives a single Chromium session through go-rod.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/yyup/kadmin/config"
)

var ErrClosed = errors.New("browser session closed")

// Session is one launched browser with a single page. Every blocking call
// takes a context and returns as soon as it is cancelled.
type Session struct {
	mu       sync.Mutex
	cfg      config.BrowserConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	closed   bool
}

// Launch starts a browser process, connects to it and opens a blank page.
// Nothing is left running when it returns an error.
func Launch(ctx context.Context, cfg config.BrowserConfig) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	l := launcher.New().Context(ctx).Headless(cfg.Headless)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	s := &Session{cfg: cfg, launcher: l}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	s.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	s.page = page

	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		if err := (proto.EmulationSetDeviceMetricsOverride{
			Width:             cfg.ViewportWidth,
			Height:            cfg.ViewportHeight,
			DeviceScaleFactor: 1.0,
			Mobile:            false,
		}).Call(page); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}

	return s, nil
}

func (s *Session) activePage(ctx context.Context) (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.page == nil {
		return nil, ErrClosed
	}
	return s.page.Context(ctx), nil
}

func (s *Session) navigationTimeout() time.Duration {
	if s.cfg.NavigationTimeout > 0 {
		return s.cfg.NavigationTimeout
	}
	return 30 * time.Second
}

// Visit navigates to url, waits for the load event and returns the page
// title.
func (s *Session) Visit(ctx context.Context, url string) (string, error) {
	page, err := s.activePage(ctx)
	if err != nil {
		return "", err
	}
	page = page.Timeout(s.navigationTimeout())

	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait for %s: %w", url, err)
	}

	info, err := page.Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.Title, nil
}

// Click waits for selector to appear and clicks it once.
func (s *Session) Click(ctx context.Context, selector string) error {
	page, err := s.activePage(ctx)
	if err != nil {
		return err
	}

	el, err := page.Timeout(s.navigationTimeout()).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s not found: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Screenshot captures the viewport as PNG into path.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	page, err := s.activePage(ctx)
	if err != nil {
		return err
	}

	data, err := page.Screenshot(false, nil)
	if err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}

// Hold blocks until ctx is done. Cancellation is the expected way out and
// is not an error.
func (s *Session) Hold(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Close shuts the browser down and kills the launched process. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.browser != nil {
		// The session context may already be cancelled.
		err = s.browser.Context(context.Background()).Close()
		s.browser = nil
		s.page = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.launcher = nil
	}
	return err
}

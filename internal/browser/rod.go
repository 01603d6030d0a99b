package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"ReviewScraper/internal/scraper"
	"ReviewScraper/pkg/config"
)

type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	cfg      config.ScraperConfig
	logger   *zap.Logger
}

func launchRod(ctx context.Context, cfg config.ScraperConfig, logger *zap.Logger) (Browser, error) {
	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	logger.Debug("browser started", zap.String("control_url", u))

	return &rodBrowser{launcher: l, browser: browser, cfg: cfg, logger: logger}, nil
}

func (b *rodBrowser) Open(ctx context.Context, url string) (scraper.Session, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, fmt.Errorf("create stealth page: %w", err)
	}

	if b.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}

	nav := page.Context(ctx).Timeout(b.cfg.NavigateTimeout)
	if err := nav.Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := nav.WaitLoad(); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("wait for %s to load: %w", url, err)
	}
	b.logger.Debug("page loaded", zap.String("url", url))

	return &rodSession{page: page, url: url, settle: b.cfg.SettleTimeout}, nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	return err
}

type rodSession struct {
	page   *rod.Page
	url    string
	settle time.Duration
}

func (s *rodSession) URL() string { return s.url }

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *rodSession) FindAll(ctx context.Context, selector string) ([]scraper.Element, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return s.wrap(els), nil
}

func (s *rodSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) (scraper.Element, error) {
	el, err := s.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, scraper.ErrElementNotFound
		}
		return nil, err
	}
	return &rodElement{el: el, session: s}, nil
}

func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (s *rodSession) Close() error {
	return s.page.Close()
}

func (s *rodSession) wrap(els rod.Elements) []scraper.Element {
	out := make([]scraper.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el, session: s})
	}
	return out
}

// waitStable blocks until the DOM has stopped changing or the settle timeout passes.
// A page that keeps animating is not an error.
func (s *rodSession) waitStable(ctx context.Context) error {
	err := s.page.Context(ctx).Timeout(s.settle).WaitStable(settleQuiet)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

type rodElement struct {
	el      *rod.Element
	session *rodSession
}

func (e *rodElement) FindAll(ctx context.Context, selector string) ([]scraper.Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return e.session.wrap(els), nil
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Click(ctx context.Context) error {
	if err := e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	if err := e.session.waitStable(ctx); err != nil {
		return &scraper.SettleError{Err: err}
	}
	return nil
}

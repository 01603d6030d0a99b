package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"ReviewScraper/internal/scraper"
	"ReviewScraper/pkg/config"
)

const pollInterval = 250 * time.Millisecond

type chromedpBrowser struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	cfg         config.ScraperConfig
	logger      *zap.Logger
}

func launchChromedp(ctx context.Context, cfg config.ScraperConfig, logger *zap.Logger) (Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	// Detached: the browser lives until Close.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// The first Run starts the process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		cancelAlloc()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	logger.Debug("browser started")

	return &chromedpBrowser{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancel:      cancel,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

func (b *chromedpBrowser) Open(ctx context.Context, url string) (scraper.Session, error) {
	tabCtx, closeTab := chromedp.NewContext(b.browserCtx)
	s := &chromedpSession{tabCtx: tabCtx, closeTab: closeTab, url: url, settle: b.cfg.SettleTimeout}

	// The first Run creates the tab and ties it to the context it is given.
	if err := chromedp.Run(tabCtx); err != nil {
		closeTab()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	navCtx, cancel := s.bind(ctx)
	defer cancel()
	navCtx, cancelNav := context.WithTimeout(navCtx, b.cfg.NavigateTimeout)
	defer cancelNav()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		closeTab()
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	b.logger.Debug("page loaded", zap.String("url", url))
	return s, nil
}

func (b *chromedpBrowser) Close() error {
	err := chromedp.Cancel(b.browserCtx)
	b.cancel()
	b.cancelAlloc()
	return err
}

type chromedpSession struct {
	tabCtx   context.Context
	closeTab context.CancelFunc
	url      string
	settle   time.Duration
}

// bind returns a context that runs actions in the tab and is cancelled with ctx.
// Cancelling it aborts the action without closing the tab.
func (s *chromedpSession) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := s.bind(ctx)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *chromedpSession) URL() string { return s.url }

func (s *chromedpSession) HTML(ctx context.Context) (string, error) {
	var markup string
	if err := s.run(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return markup, nil
}

func (s *chromedpSession) FindAll(ctx context.Context, selector string) ([]scraper.Element, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	return s.wrap(nodes), nil
}

func (s *chromedpSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) (scraper.Element, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var nodes []*cdp.Node
	err := s.run(waitCtx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, scraper.ErrElementNotFound
		}
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, scraper.ErrElementNotFound
	}
	return &chromedpElement{node: nodes[0], session: s}, nil
}

func (s *chromedpSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *chromedpSession) Close() error {
	err := chromedp.Cancel(s.tabCtx)
	s.closeTab()
	return err
}

func (s *chromedpSession) wrap(nodes []*cdp.Node) []scraper.Element {
	out := make([]scraper.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &chromedpElement{node: n, session: s})
	}
	return out
}

// waitStable polls the markup until it stays the same for settleQuiet or the settle timeout
// passes. A page that keeps changing is not an error.
func (s *chromedpSession) waitStable(ctx context.Context) error {
	deadline := time.Now().Add(s.settle)
	last, err := s.HTML(ctx)
	if err != nil {
		return err
	}
	quietSince := time.Now()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}

		markup, err := s.HTML(ctx)
		if err != nil {
			return err
		}
		if markup != last {
			last = markup
			quietSince = time.Now()
			continue
		}
		if time.Since(quietSince) >= settleQuiet {
			return nil
		}
	}
	return nil
}

type chromedpElement struct {
	node    *cdp.Node
	session *chromedpSession
}

func (e *chromedpElement) FindAll(ctx context.Context, selector string) ([]scraper.Element, error) {
	var nodes []*cdp.Node
	err := e.session.run(ctx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0), chromedp.FromNode(e.node)),
	)
	if err != nil {
		return nil, err
	}
	return e.session.wrap(nodes), nil
}

func (e *chromedpElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.session.run(ctx, chromedp.Text([]cdp.NodeID{e.node.NodeID}, &text, chromedp.ByNodeID))
	if err != nil {
		return "", err
	}
	return text, nil
}

func (e *chromedpElement) Click(ctx context.Context) error {
	if err := e.session.run(ctx, chromedp.MouseClickNode(e.node)); err != nil {
		return err
	}
	if err := e.session.waitStable(ctx); err != nil {
		return &scraper.SettleError{Err: err}
	}
	return nil
}

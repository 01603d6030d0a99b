// Package browser opens review pages in a real Chrome instance and exposes them through the
// scraper.Session contract. Two drivers are available: go-rod and chromedp.
package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ReviewScraper/internal/scraper"
	"ReviewScraper/pkg/config"
)

// settleQuiet is how long the DOM must stay unchanged after a click before it counts as settled.
const settleQuiet = 500 * time.Millisecond

// Browser is one running Chrome process. Each Open creates a new tab.
type Browser interface {
	Open(ctx context.Context, url string) (scraper.Session, error)
	Close() error
}

// Launch starts Chrome with the driver named in cfg.
func Launch(ctx context.Context, cfg config.ScraperConfig, logger *zap.Logger) (Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("driver", cfg.Driver))

	switch cfg.Driver {
	case "rod":
		return launchRod(ctx, cfg, logger)
	case "chromedp":
		return launchChromedp(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}
}

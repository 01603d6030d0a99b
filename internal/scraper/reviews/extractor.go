// Package reviews collects review records from a page that reveals more of them each time a
// load-more control is clicked.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"

	"ReviewScraper/internal/models"
	"ReviewScraper/internal/schema"
	"ReviewScraper/internal/scraper"
)

// RunLimits bounds one ExtractAll call. Zero values are unset.
type RunLimits struct {
	// MaxRecords stops the run once at least this many records are collected. The last batch
	// is kept whole, so the result may exceed MaxRecords by up to one batch.
	MaxRecords int
	// PageSize is the number of reviews one click is expected to reveal. A cursor that is not
	// a multiple of it means the last page was partial and nothing more will load.
	PageSize int
	// MaxStalls stops the run after this many consecutive clicks that revealed nothing.
	MaxStalls int
}

// Options configures an Extractor.
type Options struct {
	ContainerSelector string
	LoadMoreSelector  string
	// WaitTimeout bounds the search for the load-more control on each cycle.
	WaitTimeout time.Duration
}

type state int

const (
	stateScanning state = iota
	stateChecking
	stateAdvancing
	stateDone
	stateFailed
)

// Extractor drives the scan, check, click cycle over one page. It is not safe for
// concurrent use.
type Extractor struct {
	page      scraper.Page
	schema    *schema.Schema
	container cascadia.Selector
	opts      Options
	logger    *zap.Logger

	// cursor counts containers already converted into records.
	cursor int
}

// New validates opts and returns an Extractor bound to page.
func New(page scraper.Page, sch *schema.Schema, opts Options, logger *zap.Logger) (*Extractor, error) {
	if page == nil {
		return nil, errors.New("page is required")
	}
	if sch == nil {
		return nil, errors.New("schema is required")
	}
	if strings.TrimSpace(opts.ContainerSelector) == "" {
		return nil, errors.New("container selector is required")
	}
	if strings.TrimSpace(opts.LoadMoreSelector) == "" {
		return nil, errors.New("load-more selector is required")
	}
	container, err := cascadia.Compile(opts.ContainerSelector)
	if err != nil {
		return nil, fmt.Errorf("compile container selector %q: %w", opts.ContainerSelector, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		page:      page,
		schema:    sch,
		container: container,
		opts:      opts,
		logger:    logger,
	}, nil
}

// Cursor returns how many containers have been converted into records so far.
func (e *Extractor) Cursor() int { return e.cursor }

// ExtractAll collects records until the page is exhausted or a limit is reached.
//
// Natural exhaustion (no load-more control, a partial page, too many empty clicks) returns a
// nil error. On failure the records of every batch completed before the failure are returned
// along with the error; the caller decides whether to keep them.
func (e *Extractor) ExtractAll(ctx context.Context, limits RunLimits) ([]models.Review, error) {
	e.cursor = 0

	var (
		records   []models.Review
		lastBatch int
		stalls    int
		clicks    int
		err       error
	)
	start := time.Now()
	iterStart := start
	st := stateScanning

	for {
		switch st {
		case stateScanning:
			if err = ctx.Err(); err != nil {
				st = stateFailed
				continue
			}
			var batch []models.Review
			batch, err = e.Scan(ctx)
			if err != nil {
				st = stateFailed
				continue
			}
			records = append(records, batch...)
			lastBatch = len(batch)
			if clicks > 0 && lastBatch == 0 {
				stalls++
			} else {
				stalls = 0
			}
			e.logger.Info("scanned reviews",
				zap.Int("new", lastBatch),
				zap.Int("total", len(records)),
				zap.Int("page", clicks+1),
				zap.Duration("iteration", time.Since(iterStart)),
				zap.Duration("elapsed", time.Since(start)),
			)
			st = stateChecking

		case stateChecking:
			st = e.check(len(records), stalls, limits)

		case stateAdvancing:
			iterStart = time.Now()
			var more bool
			more, err = e.advance(ctx)
			switch {
			case err != nil:
				st = stateFailed
			case !more:
				e.logger.Debug("load-more control gone, no more reviews")
				st = stateDone
			default:
				clicks++
				st = stateScanning
			}

		case stateDone:
			e.logger.Info("review extraction finished",
				zap.Int("records", len(records)),
				zap.Int("clicks", clicks),
				zap.Duration("elapsed", time.Since(start)),
			)
			return records, nil

		case stateFailed:
			e.logger.Warn("review extraction failed",
				zap.Int("records", len(records)),
				zap.Int("cursor", e.cursor),
				zap.Error(err),
			)
			return records, err
		}
	}
}

// check applies the stop rules in order: record cap, partial page, stall limit.
func (e *Extractor) check(total, stalls int, limits RunLimits) state {
	if limits.MaxRecords > 0 && total >= limits.MaxRecords {
		e.logger.Debug("record limit reached", zap.Int("total", total), zap.Int("max", limits.MaxRecords))
		return stateDone
	}
	if limits.PageSize > 0 && e.cursor%limits.PageSize != 0 {
		e.logger.Debug("partial page, no more reviews", zap.Int("cursor", e.cursor), zap.Int("page_size", limits.PageSize))
		return stateDone
	}
	if limits.MaxStalls > 0 && stalls >= limits.MaxStalls {
		e.logger.Debug("clicks stopped revealing reviews", zap.Int("stalls", stalls))
		return stateDone
	}
	return stateAdvancing
}

// advance clicks the load-more control. It reports false when the control is absent.
func (e *Extractor) advance(ctx context.Context) (bool, error) {
	button, err := e.page.WaitFor(ctx, e.opts.LoadMoreSelector, e.opts.WaitTimeout)
	if errors.Is(err, scraper.ErrElementNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find load-more control: %w", err)
	}
	if err := button.Click(ctx); err != nil {
		var settle *scraper.SettleError
		if errors.As(err, &settle) || ctx.Err() != nil {
			return false, err
		}
		return false, &InteractionError{Selector: e.opts.LoadMoreSelector, Err: err}
	}
	e.logger.Debug("clicked load-more control")
	return true, nil
}

// Scan re-reads the whole page and extracts the containers beyond the cursor. The cursor
// only advances when every new container produced a record, so a failed scan can be
// retried without losing or repeating anything.
func (e *Extractor) Scan(ctx context.Context) ([]models.Review, error) {
	markup, err := e.page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page markup: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse page markup: %w", err)
	}

	containers := doc.FindMatcher(e.container)
	if containers.Length() <= e.cursor {
		return nil, nil
	}
	fresh := containers.Slice(e.cursor, goquery.ToEnd)

	batch := make([]models.Review, 0, fresh.Length())
	for i := range fresh.Nodes {
		review, err := e.schema.Extract(fresh.Eq(i))
		if err != nil {
			return nil, fmt.Errorf("review container %d: %w", e.cursor+i, err)
		}
		batch = append(batch, review)
	}
	e.cursor += len(batch)
	return batch, nil
}

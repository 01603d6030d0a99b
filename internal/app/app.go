package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ReviewScraper/internal/browser"
	"ReviewScraper/internal/database"
	"ReviewScraper/internal/logger"
	"ReviewScraper/internal/models"
	"ReviewScraper/internal/output"
	"ReviewScraper/internal/schema"
	"ReviewScraper/internal/scraper/reviews"
	"ReviewScraper/pkg/config"
	"ReviewScraper/utils"
)

// LaunchFunc starts a browser. Every worker launches its own.
type LaunchFunc func(ctx context.Context, cfg config.ScraperConfig, logger *zap.Logger) (browser.Browser, error)

// App is the main application structure holding all dependencies.
type App struct {
	Config *config.Config
	Repo   *database.DBRepository
	Logger *zap.Logger

	launch    LaunchFunc
	logCloser io.Closer
}

// New loads the config file, sets up logging and opens the review database.
func New(configPath string) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	log, closer, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("set up logging: %w", err)
	}
	repo, err := database.InitDB(cfg.Output.Database)
	if err != nil {
		closer.Close()
		return nil, err
	}
	a := NewWithDeps(cfg, repo, log, browser.Launch)
	a.logCloser = closer
	return a, nil
}

// NewWithDeps assembles an App from already constructed parts.
func NewWithDeps(cfg *config.Config, repo *database.DBRepository, log *zap.Logger, launch LaunchFunc) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{Config: cfg, Repo: repo, Logger: log, launch: launch}
}

// Close releases the database and flushes the logs.
func (a *App) Close() error {
	err := a.Repo.Close()
	_ = a.Logger.Sync()
	if a.logCloser != nil {
		err = errors.Join(err, a.logCloser.Close())
	}
	return err
}

// PageResult is the outcome of one page's extraction run.
type PageResult struct {
	Page    config.PageConfig
	RunID   string
	Status  string
	Records int
	CSVPath string
	Elapsed time.Duration
	Err     error
}

// RunReviewScraper extracts reviews from every configured page, or only from the page named
// by pageKey (name or URL). Pages run in parallel, each on its own browser. The returned error
// is non-nil only when nothing could be attempted; per-page failures are in the results.
func (a *App) RunReviewScraper(ctx context.Context, pageKey string, limits config.LimitsConfig) ([]PageResult, error) {
	pages := a.Config.Pages
	if pageKey != "" {
		p, ok := a.Config.FindPage(pageKey)
		if !ok {
			return nil, fmt.Errorf("no page named %q in config", pageKey)
		}
		pages = []config.PageConfig{p}
	}
	if len(pages) == 0 {
		return nil, errors.New("no pages configured")
	}

	sch, err := schema.FromConfig(a.Config.Selectors.Fields)
	if err != nil {
		return nil, fmt.Errorf("build field schema: %w", err)
	}

	a.Logger.Info("starting review scraping", zap.Int("pages", len(pages)))
	start := time.Now()

	numWorkers := utils.GetOptimalWorkerCount(a.Config.Scraper.Workers, len(pages), a.Logger)
	type job struct {
		index int
		page  config.PageConfig
	}
	jobs := make(chan job, len(pages))
	results := make([]PageResult, len(pages))

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		launchErrs []error
	)
	for w := 1; w <= numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			log := a.Logger.With(zap.Int("worker", workerID))

			b, err := a.launch(ctx, a.Config.Scraper, log)
			if err != nil {
				// Leave the jobs to the workers that did launch.
				log.Error("failed to launch browser", zap.Error(err))
				mu.Lock()
				launchErrs = append(launchErrs, err)
				mu.Unlock()
				return
			}
			defer func() {
				if err := b.Close(); err != nil {
					log.Warn("close browser", zap.Error(err))
				}
			}()

			for j := range jobs {
				results[j.index] = a.scrapePage(ctx, b, sch, j.page, limits, log)
			}
		}(w)
	}

	for i, p := range pages {
		jobs <- job{index: i, page: p}
	}
	close(jobs)
	wg.Wait()

	// Jobs are left over only when no browser could be launched.
	for j := range jobs {
		results[j.index] = a.recordFailure(j.page, fmt.Errorf("launch browser: %w", errors.Join(launchErrs...)))
	}

	a.Logger.Info("review scraping finished", zap.Duration("elapsed", time.Since(start)))
	return results, nil
}

func runLimits(l config.LimitsConfig) reviews.RunLimits {
	stalls := l.MaxStalls
	if stalls < 0 {
		stalls = 0
	}
	return reviews.RunLimits{MaxRecords: l.MaxRecords, PageSize: l.PageSize, MaxStalls: stalls}
}

func (a *App) scrapePage(ctx context.Context, b browser.Browser, sch *schema.Schema, page config.PageConfig, limits config.LimitsConfig, log *zap.Logger) PageResult {
	start := time.Now()
	slug := utils.PageSlug(page.Name, page.URL)
	res := PageResult{Page: page, RunID: uuid.NewString(), Status: models.RunFailed}
	log = log.With(zap.String("page", slug), zap.String("run_id", res.RunID))

	if err := a.Repo.SaveRun(models.Run{
		ID: res.RunID, PageName: page.Name, PageURL: page.URL,
		Status: models.RunRunning, StartedAt: start,
	}); err != nil {
		log.Warn("could not record run start", zap.Error(err))
	}

	finish := func() PageResult {
		res.Elapsed = time.Since(start)
		var msg string
		if res.Err != nil {
			msg = res.Err.Error()
		}
		if err := a.Repo.FinishRun(res.RunID, res.Status, res.Records, msg, time.Now()); err != nil {
			log.Warn("could not record run result", zap.Error(err))
		}
		return res
	}

	session, err := b.Open(ctx, page.URL)
	if err != nil {
		res.Err = err
		log.Error("failed to open page", zap.Error(err))
		return finish()
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Debug("close page", zap.Error(err))
		}
	}()

	extractor, err := reviews.New(session, sch, reviews.Options{
		ContainerSelector: a.Config.Selectors.Container,
		LoadMoreSelector:  a.Config.Selectors.LoadMore,
		WaitTimeout:       a.Config.Scraper.WaitTimeout,
	}, log)
	if err != nil {
		res.Err = err
		return finish()
	}

	records, extractErr := extractor.ExtractAll(ctx, runLimits(limits))
	res.Records = len(records)
	res.Err = extractErr
	if extractErr == nil {
		res.Status = models.RunCompleted
	}

	if dir := a.Config.Output.DumpDir; dir != "" {
		paths, err := output.DumpPage(ctx, session, dir, slug)
		if err != nil {
			log.Warn("could not dump page", zap.Error(err))
		}
		log.Debug("dumped page", zap.Strings("files", paths))
	}

	if extractErr != nil && !a.Config.Output.KeepPartial {
		log.Warn("discarding partial records", zap.Int("records", len(records)), zap.Error(extractErr))
		res.Records = 0
		return finish()
	}

	if err := a.Repo.SaveReviews(res.RunID, page.URL, records, time.Now()); err != nil {
		log.Error("could not save reviews", zap.Error(err))
		res.Err = errors.Join(res.Err, err)
		res.Status = models.RunFailed
	}
	if dir := a.Config.Output.CSVDir; dir != "" {
		res.CSVPath = filepath.Join(dir, slug+".csv")
		if err := output.WriteCSVFile(res.CSVPath, records); err != nil {
			log.Error("could not write csv", zap.Error(err))
			res.Err = errors.Join(res.Err, err)
			res.Status = models.RunFailed
			res.CSVPath = ""
		}
	}

	log.Info("page done", zap.String("status", res.Status), zap.Int("records", res.Records), zap.Duration("elapsed", time.Since(start)))
	return finish()
}

// recordFailure stores a run that failed before the page could be opened.
func (a *App) recordFailure(page config.PageConfig, err error) PageResult {
	now := time.Now()
	res := PageResult{Page: page, RunID: uuid.NewString(), Status: models.RunFailed, Err: err}
	if saveErr := a.Repo.SaveRun(models.Run{
		ID: res.RunID, PageName: page.Name, PageURL: page.URL,
		Status: models.RunFailed, Error: err.Error(), StartedAt: now,
	}); saveErr != nil {
		a.Logger.Warn("could not record failed run", zap.Error(saveErr))
	} else if finErr := a.Repo.FinishRun(res.RunID, models.RunFailed, 0, err.Error(), now); finErr != nil {
		a.Logger.Warn("could not record failed run", zap.Error(finErr))
	}
	return res
}

// ExportCSV writes the stored reviews of one page (name or URL) as CSV to path, or to
// stdout when path is empty or "-".
func (a *App) ExportCSV(pageKey, path string) (int, error) {
	pageURL := pageKey
	if p, ok := a.Config.FindPage(pageKey); ok {
		pageURL = p.URL
	}
	records, err := a.Repo.GetAllReviews(pageURL)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("no stored reviews for %s", pageURL)
	}

	if path == "" || path == "-" {
		return len(records), output.WriteCSV(os.Stdout, records)
	}
	return len(records), output.WriteCSVFile(path, records)
}

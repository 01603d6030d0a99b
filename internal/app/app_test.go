package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ReviewScraper/internal/browser"
	"ReviewScraper/internal/database"
	"ReviewScraper/internal/models"
	"ReviewScraper/internal/scraper"
	"ReviewScraper/internal/scraper/reviews"
	"ReviewScraper/pkg/config"
)

// fakeSession serves a review list that grows by one batch per load-more click.
type fakeSession struct {
	url      string
	batches  []int
	loads    int
	clickErr error
}

func (s *fakeSession) visible() int {
	n := 0
	for i := 0; i < s.loads && i < len(s.batches); i++ {
		n += s.batches[i]
	}
	return n
}

func (s *fakeSession) HTML(context.Context) (string, error) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 1; i <= s.visible(); i++ {
		fmt.Fprintf(&b, `<div class="review"><b class="t">T%d</b><p class="x">Body %d</p><i class="d">2024</i><em class="n">R%d</em></div>`, i, i, i)
	}
	if s.loads < len(s.batches) {
		b.WriteString(`<button class="more">More</button>`)
	}
	b.WriteString("</body></html>")
	return b.String(), nil
}

func (s *fakeSession) FindAll(context.Context, string) ([]scraper.Element, error) { return nil, nil }

func (s *fakeSession) WaitFor(context.Context, string, time.Duration) (scraper.Element, error) {
	if s.loads >= len(s.batches) {
		return nil, scraper.ErrElementNotFound
	}
	return &fakeButton{s}, nil
}

func (s *fakeSession) URL() string                                 { return s.url }
func (s *fakeSession) Screenshot(context.Context) ([]byte, error) { return []byte("png"), nil }
func (s *fakeSession) Close() error                                { return nil }

type fakeButton struct{ s *fakeSession }

func (b *fakeButton) FindAll(context.Context, string) ([]scraper.Element, error) { return nil, nil }
func (b *fakeButton) Text(context.Context) (string, error)                       { return "More", nil }
func (b *fakeButton) Click(context.Context) error {
	if b.s.clickErr != nil {
		return b.s.clickErr
	}
	b.s.loads++
	return nil
}

type fakeBrowser struct {
	sessions map[string]func() *fakeSession
	closed   *atomic.Int32
}

func (b *fakeBrowser) Open(_ context.Context, url string) (scraper.Session, error) {
	newSession, ok := b.sessions[url]
	if !ok {
		return nil, fmt.Errorf("navigate to %s: net::ERR_NAME_NOT_RESOLVED", url)
	}
	return newSession(), nil
}

func (b *fakeBrowser) Close() error {
	b.closed.Add(1)
	return nil
}

const (
	serumURL = "https://shop.example/products/serum"
	maskURL  = "https://shop.example/products/mask"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Scraper.Workers = "2"
	cfg.Pages = []config.PageConfig{
		{Name: "serum", URL: serumURL},
		{Name: "mask", URL: maskURL},
	}
	cfg.Selectors = config.SelectorConfig{
		Container: ".review",
		LoadMore:  "button.more",
		Fields:    config.FieldSelectors{Title: ".t", Text: ".x", Date: ".d", Name: ".n"},
	}
	cfg.Limits = config.LimitsConfig{PageSize: 10, MaxStalls: 3}
	cfg.Output = config.OutputConfig{
		CSVDir:   filepath.Join(dir, "out"),
		DumpDir:  filepath.Join(dir, "dump"),
		Database: filepath.Join(dir, "reviews.db"),
	}
	return &cfg
}

func newTestApp(t *testing.T, cfg *config.Config, sessions map[string]func() *fakeSession, launchErr error) (*App, *atomic.Int32) {
	t.Helper()
	repo, err := database.InitDB(cfg.Output.Database)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	closed := &atomic.Int32{}
	launch := func(context.Context, config.ScraperConfig, *zap.Logger) (browser.Browser, error) {
		if launchErr != nil {
			return nil, launchErr
		}
		return &fakeBrowser{sessions: sessions, closed: closed}, nil
	}
	return NewWithDeps(cfg, repo, zap.NewNop(), launch), closed
}

func healthySessions() map[string]func() *fakeSession {
	return map[string]func() *fakeSession{
		serumURL: func() *fakeSession { return &fakeSession{url: serumURL, batches: []int{10, 2}, loads: 1} },
		maskURL:  func() *fakeSession { return &fakeSession{url: maskURL, batches: []int{4}, loads: 1} },
	}
}

func TestRunReviewScraper_AllPages(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a, closed := newTestApp(t, cfg, healthySessions(), nil)

	results, err := a.RunReviewScraper(context.Background(), "", cfg.Limits)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "serum", results[0].Page.Name)
	assert.Equal(t, models.RunCompleted, results[0].Status)
	assert.Equal(t, 12, results[0].Records)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, models.RunCompleted, results[1].Status)
	assert.Equal(t, 4, results[1].Records)
	assert.Equal(t, int32(2), closed.Load())

	stored, err := a.Repo.GetAllReviews(serumURL)
	require.NoError(t, err)
	require.Len(t, stored, 12)
	assert.Equal(t, models.Review{Title: "T12", Text: "Body 12", Date: "2024", Name: "R12"}, stored[11])

	csvData, err := os.ReadFile(filepath.Join(cfg.Output.CSVDir, "serum.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	assert.Len(t, lines, 13)
	assert.Equal(t, "title,text,date,name", lines[0])
	assert.Equal(t, "T1,Body 1,2024,R1", lines[1])

	assert.FileExists(t, filepath.Join(cfg.Output.DumpDir, "mask.html"))
	assert.FileExists(t, filepath.Join(cfg.Output.DumpDir, "mask.png"))

	runs, err := a.Repo.GetRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, models.RunCompleted, r.Status)
		assert.False(t, r.FinishedAt.IsZero())
	}
}

func TestRunReviewScraper_SinglePage(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a, _ := newTestApp(t, cfg, healthySessions(), nil)

	results, err := a.RunReviewScraper(context.Background(), maskURL, cfg.Limits)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "mask", results[0].Page.Name)

	_, err = a.RunReviewScraper(context.Background(), "missing", cfg.Limits)
	assert.ErrorContains(t, err, `"missing"`)
}

func TestRunReviewScraper_FailedPage(t *testing.T) {
	t.Parallel()

	clickErr := errors.New("node is detached from document")
	sessions := map[string]func() *fakeSession{
		serumURL: func() *fakeSession {
			return &fakeSession{url: serumURL, batches: []int{10, 10}, loads: 1, clickErr: clickErr}
		},
	}

	testCases := []struct {
		name        string
		keepPartial bool
		wantStored  int
	}{
		{"Partial Discarded", false, 0},
		{"Partial Kept", true, 10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Pages = cfg.Pages[:1]
			cfg.Output.KeepPartial = tc.keepPartial
			a, _ := newTestApp(t, cfg, sessions, nil)

			results, err := a.RunReviewScraper(context.Background(), "", cfg.Limits)
			require.NoError(t, err)
			require.Len(t, results, 1)

			res := results[0]
			assert.Equal(t, models.RunFailed, res.Status)
			assert.Equal(t, tc.wantStored, res.Records)
			assert.ErrorIs(t, res.Err, reviews.ErrInteraction)
			assert.ErrorIs(t, res.Err, clickErr)

			n, err := a.Repo.CountReviews(models.ReviewFilters{PageURL: serumURL})
			require.NoError(t, err)
			assert.Equal(t, tc.wantStored, n)

			run, err := a.Repo.GetRun(res.RunID)
			require.NoError(t, err)
			assert.Equal(t, models.RunFailed, run.Status)
			assert.Equal(t, tc.wantStored, run.RecordCount)
			assert.Contains(t, run.Error, "node is detached")

			csvPath := filepath.Join(cfg.Output.CSVDir, "serum.csv")
			if tc.keepPartial {
				assert.FileExists(t, csvPath)
			} else {
				assert.NoFileExists(t, csvPath)
			}
		})
	}
}

func TestRunReviewScraper_UnreachablePage(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	sessions := healthySessions()
	delete(sessions, maskURL)
	a, _ := newTestApp(t, cfg, sessions, nil)

	results, err := a.RunReviewScraper(context.Background(), "", cfg.Limits)
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, results[0].Status)
	assert.Equal(t, models.RunFailed, results[1].Status)
	assert.ErrorContains(t, results[1].Err, "ERR_NAME_NOT_RESOLVED")
}

func TestRunReviewScraper_LaunchFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a, _ := newTestApp(t, cfg, nil, errors.New("chrome not found"))

	results, err := a.RunReviewScraper(context.Background(), "", cfg.Limits)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, models.RunFailed, r.Status)
		assert.ErrorContains(t, r.Err, "chrome not found")
	}

	runs, err := a.Repo.GetRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunReviewScraper_OneWorkerFailsToLaunch(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	repo, err := database.InitDB(cfg.Output.Database)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	var launches atomic.Int32
	closed := &atomic.Int32{}
	launch := func(context.Context, config.ScraperConfig, *zap.Logger) (browser.Browser, error) {
		if launches.Add(1) == 1 {
			return nil, errors.New("chrome not found")
		}
		return &fakeBrowser{sessions: healthySessions(), closed: closed}, nil
	}
	a := NewWithDeps(cfg, repo, zap.NewNop(), launch)

	results, err := a.RunReviewScraper(context.Background(), "", cfg.Limits)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, models.RunCompleted, r.Status, r.Page.Name)
		assert.NoError(t, r.Err)
	}
	assert.Equal(t, int32(2), launches.Load())
	assert.Equal(t, int32(1), closed.Load())
}

func TestExportCSV(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a, _ := newTestApp(t, cfg, healthySessions(), nil)
	_, err := a.RunReviewScraper(context.Background(), "mask", cfg.Limits)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "export.csv")
	n, err := a.ExportCSV("mask", out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "title,text,date,name\nT1,Body 1,2024,R1\n"))

	_, err = a.ExportCSV(serumURL, out)
	assert.ErrorContains(t, err, "no stored reviews")
}

func TestRunLimits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, reviews.RunLimits{MaxRecords: 50, PageSize: 10, MaxStalls: 3},
		runLimits(config.LimitsConfig{MaxRecords: 50, PageSize: 10, MaxStalls: 3}))
	assert.Equal(t, reviews.RunLimits{}, runLimits(config.LimitsConfig{MaxStalls: -1}))
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	PrintSummary(&buf, []PageResult{
		{Page: config.PageConfig{Name: "serum", URL: serumURL}, Status: models.RunCompleted, Records: 12, Elapsed: 1500 * time.Millisecond},
		{Page: config.PageConfig{URL: maskURL}, Status: models.RunFailed, Err: errors.New("boom")},
	})

	out := buf.String()
	assert.Contains(t, out, "serum")
	assert.Contains(t, out, "mask")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "1.5s")
}

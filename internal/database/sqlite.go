package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ReviewScraper/internal/models"

	_ "modernc.org/sqlite"
)

// DBRepository is a thin layer over the SQLite connection.
type DBRepository struct {
	DB *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	"id" TEXT NOT NULL PRIMARY KEY,
	"page_name" TEXT,
	"page_url" TEXT NOT NULL,
	"status" TEXT NOT NULL,
	"record_count" INTEGER DEFAULT 0,
	"error" TEXT DEFAULT '',
	"started_at" DATETIME,
	"finished_at" DATETIME
);

CREATE TABLE IF NOT EXISTS reviews (
	"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	"run_id" TEXT NOT NULL,
	"page_url" TEXT NOT NULL,
	"position" INTEGER NOT NULL,
	"title" TEXT,
	"text" TEXT,
	"date" TEXT,
	"name" TEXT,
	"scraped_at" DATETIME,
	UNIQUE(page_url, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// InitDB opens (or creates) the database at path and makes sure the tables exist.
func InitDB(path string) (*DBRepository, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Workers share one writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &DBRepository{DB: db}, nil
}

// Close closes the database connection.
func (repo *DBRepository) Close() error {
	return repo.DB.Close()
}

// SaveRun inserts a run record, normally with status running.
func (repo *DBRepository) SaveRun(run models.Run) error {
	_, err := repo.DB.Exec(
		`INSERT INTO runs (id, page_name, page_url, status, record_count, error, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.PageName, run.PageURL, run.Status, run.RecordCount, run.Error, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun sets the final status, record count and error message of a run.
func (repo *DBRepository) FinishRun(id, status string, recordCount int, errMsg string, finishedAt time.Time) error {
	res, err := repo.DB.Exec(
		`UPDATE runs SET status = ?, record_count = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, recordCount, errMsg, finishedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// SaveReviews stores reviews in page order. A review already stored for the same page and
// position is overwritten, so re-running a page refreshes it instead of duplicating it.
func (repo *DBRepository) SaveReviews(runID, pageURL string, reviews []models.Review, scrapedAt time.Time) (err error) {
	tx, err := repo.DB.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`
	INSERT INTO reviews (run_id, page_url, position, title, text, date, name, scraped_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(page_url, position) DO UPDATE SET
		run_id=excluded.run_id,
		title=excluded.title,
		text=excluded.text,
		date=excluded.date,
		name=excluded.name,
		scraped_at=excluded.scraped_at;`)
	if err != nil {
		return fmt.Errorf("prepare review upsert: %w", err)
	}
	defer stmt.Close()

	for i, r := range reviews {
		if _, err = stmt.Exec(runID, pageURL, i, r.Title, r.Text, r.Date, r.Name, scrapedAt); err != nil {
			return fmt.Errorf("save review %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reviews: %w", err)
	}
	return nil
}

func reviewConditions(filters models.ReviewFilters) (string, []interface{}) {
	var args []interface{}
	var conditions []string

	if filters.PageURL != "" {
		conditions = append(conditions, "page_url = ?")
		args = append(args, filters.PageURL)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// GetReviews lists stored reviews matching filters, grouped by page and in page order.
func (repo *DBRepository) GetReviews(filters models.ReviewFilters) ([]models.StoredReview, error) {
	where, args := reviewConditions(filters)
	query := `SELECT id, run_id, page_url, position, title, text, date, name, scraped_at FROM reviews` +
		where + " ORDER BY page_url, position"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
		if filters.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filters.Offset)
		}
	}

	rows, err := repo.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.StoredReview{}
	for rows.Next() {
		var r models.StoredReview
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.PageURL, &r.Position,
			&r.Title, &r.Text, &r.Date, &r.Name, &r.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// CountReviews returns how many stored reviews match filters, ignoring pagination.
func (repo *DBRepository) CountReviews(filters models.ReviewFilters) (int, error) {
	where, args := reviewConditions(filters)
	var n int
	if err := repo.DB.QueryRow(`SELECT COUNT(*) FROM reviews`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return n, nil
}

// GetAllReviews returns every stored review of one page in page order.
func (repo *DBRepository) GetAllReviews(pageURL string) ([]models.Review, error) {
	stored, err := repo.GetReviews(models.ReviewFilters{PageURL: pageURL})
	if err != nil {
		return nil, err
	}
	reviews := make([]models.Review, 0, len(stored))
	for _, s := range stored {
		reviews = append(reviews, s.Review)
	}
	return reviews, nil
}

// GetRuns returns the most recent runs first. A limit of 0 returns all of them.
func (repo *DBRepository) GetRuns(limit int) ([]models.Run, error) {
	query := `SELECT id, page_name, page_url, status, record_count, error, started_at, finished_at
	          FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := repo.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		var r models.Run
		var finished sql.NullTime
		if err := rows.Scan(
			&r.ID, &r.PageName, &r.PageURL, &r.Status, &r.RecordCount, &r.Error, &r.StartedAt, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by id.
func (repo *DBRepository) GetRun(id string) (models.Run, error) {
	var r models.Run
	var finished sql.NullTime
	err := repo.DB.QueryRow(
		`SELECT id, page_name, page_url, status, record_count, error, started_at, finished_at FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.PageName, &r.PageURL, &r.Status, &r.RecordCount, &r.Error, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Run{}, fmt.Errorf("run %s: %w", id, err)
	}
	if err != nil {
		return models.Run{}, fmt.Errorf("query run %s: %w", id, err)
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return r, nil
}

package models

import "time"

// Review is one review extracted from a product page.
type Review struct {
	Title string `json:"title" db:"title"`
	Text  string `json:"text" db:"text"`
	Date  string `json:"date" db:"date"`
	Name  string `json:"name" db:"name"`
}

// StoredReview is a Review as persisted, with its position on the page it came from.
type StoredReview struct {
	ID        int64     `json:"id" db:"id"`
	RunID     string    `json:"run_id" db:"run_id"`
	PageURL   string    `json:"page_url" db:"page_url"`
	Position  int       `json:"position" db:"position"`
	ScrapedAt time.Time `json:"scraped_at" db:"scraped_at"`
	Review
}

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run records one extraction run over one page.
type Run struct {
	ID          string    `json:"id" db:"id"`
	PageName    string    `json:"page_name" db:"page_name"`
	PageURL     string    `json:"page_url" db:"page_url"`
	Status      string    `json:"status" db:"status"`
	RecordCount int       `json:"record_count" db:"record_count"`
	Error       string    `json:"error,omitempty" db:"error"`
	StartedAt   time.Time `json:"started_at" db:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// ReviewFilters holds the query parameters for listing stored reviews.
type ReviewFilters struct {
	PageURL string
	// For Pagination
	Limit  int
	Offset int
}

// ReviewsResponse is the JSON body served by the reviews endpoint.
type ReviewsResponse struct {
	Data       []StoredReview `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

type RunsResponse struct {
	Data []Run `json:"data"`
}

type Pagination struct {
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
}

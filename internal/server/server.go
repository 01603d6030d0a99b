package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"ReviewScraper/internal/models"
	"ReviewScraper/pkg/config"
)

const defaultLimit = 20

// Store is the read side of the review database.
type Store interface {
	CountReviews(filters models.ReviewFilters) (int, error)
	GetReviews(filters models.ReviewFilters) ([]models.StoredReview, error)
	GetRuns(limit int) ([]models.Run, error)
}

// NewHandler returns the API routes.
func NewHandler(repo Store, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /reviews", reviewsHandler(repo, logger))
	mux.HandleFunc("GET /runs", runsHandler(repo, logger))
	return logRequests(mux, logger)
}

// Start serves the API on the configured port until ctx is cancelled.
func Start(ctx context.Context, repo Store, cfg config.ServerConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewHandler(repo, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", zap.String("addr", srv.Addr),
			zap.String("reviews", "http://localhost:"+cfg.Port+"/reviews"))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func reviewsHandler(repo Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queryParams := r.URL.Query()
		page, _ := strconv.Atoi(queryParams.Get("page"))
		if page < 1 {
			page = 1
		}
		limit, _ := strconv.Atoi(queryParams.Get("limit"))
		if limit < 1 {
			limit = defaultLimit
		}

		filters := models.ReviewFilters{
			PageURL: queryParams.Get("page_url"),
			Limit:   limit,
			Offset:  (page - 1) * limit,
		}

		total, err := repo.CountReviews(filters)
		if err != nil {
			logger.Error("count reviews", zap.Error(err))
			http.Error(w, "Failed to count reviews", http.StatusInternalServerError)
			return
		}

		reviews, err := repo.GetReviews(filters)
		if err != nil {
			logger.Error("list reviews", zap.Error(err))
			http.Error(w, "Failed to get reviews", http.StatusInternalServerError)
			return
		}

		writeJSON(w, models.ReviewsResponse{
			Data: reviews,
			Pagination: models.Pagination{
				TotalItems:  total,
				TotalPages:  int(math.Ceil(float64(total) / float64(limit))),
				CurrentPage: page,
			},
		}, logger)
	}
}

func runsHandler(repo Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit < 1 {
			limit = defaultLimit
		}

		runs, err := repo.GetRuns(limit)
		if err != nil {
			logger.Error("list runs", zap.Error(err))
			http.Error(w, "Failed to get runs", http.StatusInternalServerError)
			return
		}
		writeJSON(w, models.RunsResponse{Data: runs}, logger)
	}
}

func writeJSON(w http.ResponseWriter, body any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("encode response", zap.Error(err))
	}
}

func logRequests(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)),
		)
	})
}

package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/jgivc/pkgfetch/internal/common"
	"github.com/jgivc/pkgfetch/internal/entity"
)

var (
	identityRegexp = regexp.MustCompile(`^[A-Za-z0-9@._+-]{1,128}$`)
)

type StatsService interface {
	Stats(ctx context.Context) (*entity.Stats, error)
	PackageStatus(ctx context.Context, identity string) (*entity.PackageStatus, error)
}

type FetchService interface {
	Fetch(ctx context.Context) (*entity.BatchResult, error)
}

type BatchSummary struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Reused  int    `json:"reused"`
	Fetched int    `json:"fetched"`
	Failed  string `json:"failed,omitempty"`
}

func NewStatsHandler(srv StatsService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "StatsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := srv.Stats(r.Context())
		if err != nil {
			http.Error(w, "Cannot get stats", http.StatusInternalServerError)

			return
		}

		writeJSON(w, http.StatusOK, stats, log)
	}
}

func NewPackageHandler(srv StatsService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "PackageHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !identityRegexp.MatchString(id) {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		status, err := srv.PackageStatus(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrPackageNotFound):
				http.Error(w, "Cannot find package", http.StatusNotFound)
			default:
				http.Error(w, "Cannot get package", http.StatusInternalServerError)
			}

			return
		}

		writeJSON(w, http.StatusOK, status, log)
	}
}

// NewFetchHandler runs one batch. The batch is not bound to the request lifetime.
func NewFetchHandler(srv FetchService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "FetchHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		res, err := srv.Fetch(context.WithoutCancel(r.Context()))
		if err != nil && res == nil {
			switch {
			case errors.Is(err, common.ErrBatchAlreadyRunning):
				http.Error(w, "Batch has already started", http.StatusConflict)
			default:
				log.Error("Cannot start batch", slog.Any("error", err))
				http.Error(w, "Cannot start batch", http.StatusInternalServerError)
			}

			return
		}

		code := http.StatusOK
		if err != nil {
			code = http.StatusBadGateway
		}

		writeJSON(w, code, &BatchSummary{
			ID:      res.ID,
			Status:  res.Status.String(),
			Reused:  res.Count(entity.OutcomeReused),
			Fetched: res.Count(entity.OutcomeFetched),
			Failed:  res.Failed,
		}, log)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Cannot encode response", slog.Any("error", err))
	}
}

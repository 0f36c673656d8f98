package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"github.com/houseofcat/turbocookedredis/pkg/tcr"
)

const statsTimeout = 2 * time.Second

type poolStatser interface {
	Stats(ctx context.Context) (tcr.PoolStats, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Occupied int    `json:"occupied"`
	Slots    int    `json:"slots"`
}

func newRouter(pool poolStatser) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := poolStats(r.Context(), pool)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, stats)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats, err := poolStats(r.Context(), pool)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}

		health := healthResponse{Status: "ok", Occupied: stats.Occupied, Slots: stats.Slots}
		if stats.Shutdown || stats.Occupied == 0 {
			health.Status = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, health)
			return
		}

		writeJSON(w, http.StatusOK, health)
	})

	return r
}

func poolStats(ctx context.Context, pool poolStatser) (tcr.PoolStats, error) {
	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	stats, err := pool.Stats(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return stats, errors.New("event loop did not answer in time")
	}

	return stats, err
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	var json = jsoniter.ConfigFastest

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

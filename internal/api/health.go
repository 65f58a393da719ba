package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	pgPool  *pgxpool.Pool
	redis   *redis.Client
	env     string
	version string
}

func NewHealthHandler(pgPool *pgxpool.Pool, redis *redis.Client, env, version string) *HealthHandler {
	return &HealthHandler{
		pgPool:  pgPool,
		redis:   redis,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := map[string]string{
		"postgres": ping(ctx, func(c context.Context) error { return h.pgPool.Ping(c) }),
		"redis":    ping(ctx, func(c context.Context) error { return h.redis.Ping(c).Err() }),
	}

	// Postgres down means the service cannot work. Redis only guards the
	// lock path, so its loss degrades readiness rather than failing it.
	status := "ok"
	httpStatus := http.StatusOK
	switch {
	case deps["postgres"] == "down":
		status = "error"
		httpStatus = http.StatusServiceUnavailable
	case deps["redis"] == "down":
		status = "degraded"
	}

	writeJSON(w, httpStatus, ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	})
}

func ping(ctx context.Context, fn func(context.Context) error) string {
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := fn(pingCtx); err != nil {
		return "down"
	}
	return "ok"
}

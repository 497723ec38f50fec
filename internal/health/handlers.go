package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/krishamaze/repairshop-api/internal/common"
)

// Pinger reports reachability of one dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

type dbPinger struct{ pool *pgxpool.Pool }

func (p dbPinger) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

// Handler serves liveness and readiness probes.
type Handler struct {
	Checks  map[string]Pinger
	Timeout time.Duration
}

// NewHandler builds a Handler checking the database and Redis.
func NewHandler(pool *pgxpool.Pool, client *redis.Client) *Handler {
	checks := map[string]Pinger{}
	if pool != nil {
		checks["postgres"] = dbPinger{pool: pool}
	}
	if client != nil {
		checks["redis"] = redisPinger{client: client}
	}
	return &Handler{Checks: checks, Timeout: 2 * time.Second}
}

// Live always reports success while the process is running.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": "ok"}})
}

// Ready pings each dependency with a bounded timeout and reports per-check
// status. Any failure turns the probe into a 503.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	status := http.StatusOK
	results := map[string]string{}
	for name, pinger := range h.Checks {
		if err := pinger.Ping(ctx); err != nil {
			results[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	common.JSON(w, status, map[string]any{"data": results})
}

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"cloudpico-climate/internal/utils"
)

// Pinger is satisfied by *sqlx.DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type healthchecker interface {
	handleHealth(w http.ResponseWriter, r *http.Request)
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db Pinger
}

func NewHealthchecker(db Pinger) healthchecker {
	return &healthcheckerImpl{db: db}
}

// handleHealth is the liveness probe: 200 with an empty body.
func (h *healthcheckerImpl) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		slog.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func registerHealthcheck(mux *http.ServeMux, db Pinger) {
	healthchecker := NewHealthchecker(db)
	mux.HandleFunc("GET /health", healthchecker.handleHealth)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}

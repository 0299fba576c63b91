package httpapi

import (
	"net/http"

	"cloudpico-climate/internal/metrics"
)

func NewMux(db Pinger) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

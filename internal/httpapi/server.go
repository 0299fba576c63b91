package httpapi

import (
	"net/http"
	"time"

	"cloudpico-climate/internal/config"
)

func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(instrument(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

package httpapi

import (
	"net/http"
	"time"

	"irrigation-node/internal/config"
)

func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

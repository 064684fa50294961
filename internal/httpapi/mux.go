package httpapi

import (
	"database/sql"
	"net/http"

	"irrigation-node/internal/journal"
)

// Deps are the read-only views the status API serves from.
type Deps struct {
	DB      *sql.DB
	Journal journal.Repository
	Link    Link
	Loop    Loop
	Clock   Clock
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	DeviceID string
	RunID    string
	Version  string
}

func NewMux(deps Deps) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, deps.DB)
	registerStatus(mux, deps)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
	return mux
}

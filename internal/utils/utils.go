package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}

// QueryLimit reads the "limit" query parameter, returning def when absent.
func QueryLimit(r *http.Request, def, max int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'limit' (expected integer)")
	}
	if n <= 0 {
		return 0, errors.New("'limit' must be > 0")
	}
	if n > max {
		return 0, fmt.Errorf("'limit' must be <= %d", max)
	}
	return n, nil
}

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"OptionSentinel/internal/logger"
	"OptionSentinel/internal/model"
)

// Response wraps every JSON payload with the run it came from.
type Response[T any] struct {
	Data T    `json:"data"`
	Meta Meta `json:"meta"`
}

type Meta struct {
	Side  model.Side `json:"side"`
	RunID string     `json:"run_id"`
	RanAt time.Time  `json:"ran_at"`
	Count int        `json:"count,omitempty"`
}

func metaOf(res *model.ScreenResult, count int) Meta {
	return Meta{Side: res.Side, RunID: res.RunID, RanAt: res.RanAt, Count: count}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

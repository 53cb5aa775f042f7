package server

import (
	"encoding/json"
	"net/http"

	"github.com/dray-io/circular/internal/logging"
)

// Notifier is raised to request a dump. *latch.Latch implements it.
type Notifier interface {
	Set()
}

// DumpResponse is the body returned by the dump trigger.
type DumpResponse struct {
	Status string `json:"status"`
}

// DumpHandler raises n on POST. The dump itself runs on the engine goroutine
// at its next safe point, so the response only confirms the request.
type DumpHandler struct {
	n      Notifier
	logger *logging.Logger
}

// NewDumpHandler creates a DumpHandler. A nil logger means the global one.
func NewDumpHandler(n Notifier, logger *logging.Logger) *DumpHandler {
	if logger == nil {
		logger = logging.Global()
	}
	return &DumpHandler{n: n, logger: logger.WithComponent("http")}
}

func (h *DumpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.n.Set()
	h.logger.Infof("dump requested", map[string]any{"remote": r.RemoteAddr})
	writeJSON(w, http.StatusAccepted, DumpResponse{Status: "queued"})
}

// StatsHandler serves the value returned by source as JSON.
type StatsHandler struct {
	source func() any
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(source func() any) *StatsHandler {
	return &StatsHandler{source: source}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.source())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Tasks     []string  `json:"tasks"`
}

// TaskLister reports the keys of the scheduled tasks.
type TaskLister interface {
	Keys() []string
}

type GatewayHTTPHandler struct {
	version string
	tasks   TaskLister
}

func NewGatewayHTTPHandler(version string, tasks TaskLister) *GatewayHTTPHandler {
	return &GatewayHTTPHandler{version: version, tasks: tasks}
}

func (h *GatewayHTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

func (h *GatewayHTTPHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Tasks:     h.tasks.Keys(),
	})
}

func newHTTPServer(port int, handler *GatewayHTTPHandler) *http.Server {
	mux := http.NewServeMux()
	handler.Register(mux)
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to write response", "err", err)
	}
}

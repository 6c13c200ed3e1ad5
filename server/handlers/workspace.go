package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/teilomillet/reprompt/rules"
	"github.com/teilomillet/reprompt/stack"
)

// StackResponse is the body returned by GET /v1/stack.
type StackResponse struct {
	stack.Report
	Lines []string `json:"lines"`
	Block string   `json:"block"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
	Rules   string `json:"rules"`
}

// Stack handles GET /v1/stack. Only the configured workspace is inspected.
func (h *Handlers) Stack(w http.ResponseWriter, r *http.Request) {
	report := h.inspector.Inspect(h.root)
	lines := report.Lines()
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, StackResponse{
		Report: report,
		Lines:  lines,
		Block:  report.Block(),
	})
}

// Rules handles GET /v1/rules.
func (h *Handlers) Rules(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot()
	if snap == nil {
		snap = rules.Empty()
	}
	writeJSON(w, http.StatusOK, snap)
}

// ReloadRules handles POST /v1/rules/reload.
func (h *Handlers) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if h.rules == nil {
		writeJSON(w, http.StatusOK, rules.Empty())
		return
	}
	snap := h.rules.Reload()
	h.logger.Info("House rules reloaded on request",
		zap.String("request_id", requestID(r)),
		zap.String("status", snap.Status.String()),
		zap.String("source", snap.Source),
	)
	writeJSON(w, http.StatusOK, snap)
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := rules.NotFound.String()
	if snap := h.snapshot(); snap != nil {
		status = snap.Status.String()
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Rules:   status,
	})
}

// Package api provides the HTTP status surface of the assets service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
	"assetgraph/internal/health"
	"assetgraph/internal/persist"
	"assetgraph/internal/pipeline"
)

// Handler contains HTTP handlers for the assets API.
type Handler struct {
	catalog *catalog
	lister  persist.Lister
	runner  *pipeline.Runner
	health  *health.Checker
}

// NewHandler creates a new API handler. lister may be nil.
func NewHandler(registry *asset.Registry, meta asset.MetaPersister, lister persist.Lister, runner *pipeline.Runner, healthChecker *health.Checker) *Handler {
	h := &Handler{
		catalog: &catalog{registry: registry, meta: meta},
		lister:  lister,
		runner:  runner,
		health:  healthChecker,
	}
	if runner != nil {
		h.catalog.quarantined = runner.Quarantined
	}
	return h
}

// ListAssets handles GET /v1/assets
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	resp, err := h.catalog.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetAsset handles GET /v1/assets/{assetId}
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	view, err := h.catalog.Get(r.Context(), asset.ID(r.PathValue("assetId")))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// GetEligibility handles GET /v1/assets/{assetId}/eligibility
func (h *Handler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	view, err := h.catalog.Eligibility(r.Context(), asset.ID(r.PathValue("assetId")))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// ListStored handles GET /v1/meta: every stored document, registered or not.
func (h *Handler) ListStored(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		h.writeError(w, http.StatusNotImplemented, "metadata backend cannot list documents")
		return
	}
	summaries, err := h.lister.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []persist.Summary{}
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

// CreateRun handles POST /v1/runs. The run continues if the client disconnects.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// MarkRefreshedRequest is the optional body of POST /v1/assets/{assetId}/refreshed.
type MarkRefreshedRequest struct {
	Note string `json:"note,omitempty"`
}

// MarkRefreshedResponse carries the source metadata after the refresh was recorded.
type MarkRefreshedResponse struct {
	ID   asset.ID    `json:"id"`
	Meta *asset.Meta `json:"meta"`
}

// MarkRefreshed handles POST /v1/assets/{assetId}/refreshed: an external producer
// reports that it rewrote a source asset.
func (h *Handler) MarkRefreshed(w http.ResponseWriter, r *http.Request) {
	var req MarkRefreshedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.handleError(w, r, apperrors.Validation("body", "invalid JSON: "+err.Error()))
		return
	}

	id := asset.ID(r.PathValue("assetId"))
	meta, err := h.runner.MarkRefreshed(r.Context(), id, req.Note)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MarkRefreshedResponse{ID: id, Meta: meta})
}

// Livez handles GET /livez - liveness probe.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.health.Liveness(r.Context()))
}

// Readyz handles GET /readyz - readiness probe.
// Returns 503 if the metadata persister does not answer its heartbeat.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	errorJSON(w, status, message)
}

// handleError maps errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	requestID := RequestIDFromContext(r.Context())
	if status >= 500 {
		slog.Error("Request failed", "requestId", requestID, "path", r.URL.Path, "error", err)
	} else {
		slog.Warn("Request rejected", "requestId", requestID, "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeError(w, status, err.Error())
}

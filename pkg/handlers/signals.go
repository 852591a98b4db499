package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scopeline-ai/scopeline-engine/pkg/apperrors"
	"github.com/scopeline-ai/scopeline-engine/pkg/models"
	"github.com/scopeline-ai/scopeline-engine/pkg/repositories"
	"github.com/scopeline-ai/scopeline-engine/pkg/services"
)

// SignalHandler exposes signal ingestion and processing over HTTP. The
// pipeline itself never depends on this surface.
type SignalHandler struct {
	signalRepo repositories.SignalRepository
	processor  *services.SignalProcessor
	logger     *zap.Logger
}

// NewSignalHandler creates a new SignalHandler.
func NewSignalHandler(signalRepo repositories.SignalRepository, processor *services.SignalProcessor, logger *zap.Logger) *SignalHandler {
	return &SignalHandler{
		signalRepo: signalRepo,
		processor:  processor,
		logger:     logger.Named("signal-handler"),
	}
}

// RegisterRoutes registers the signal handler's routes on the given mux.
func (h *SignalHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/projects/{pid}/signals", h.CreateSignal)
	mux.HandleFunc("GET /api/projects/{pid}/signals", h.ListSignals)
	mux.HandleFunc("POST /api/projects/{pid}/signals/{sid}/process", h.ProcessSignal)
}

// createSignalRequest is the POST body for signal ingestion.
type createSignalRequest struct {
	Kind            string `json:"kind"`
	Title           string `json:"title"`
	Body            string `json:"body"`
	SourceAuthority string `json:"source_authority"`
}

// CreateSignal handles POST /api/projects/{pid}/signals.
func (h *SignalHandler) CreateSignal(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("pid"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_project_id", "project id must be a UUID")
		return
	}

	var req createSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	signal := &models.Signal{
		ProjectID:       projectID,
		Kind:            models.SignalKind(req.Kind),
		Title:           req.Title,
		Body:            req.Body,
		SourceAuthority: models.SourceAuthority(req.SourceAuthority),
	}
	if !signal.Kind.IsValid() {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_kind", "unknown signal kind")
		return
	}
	if !signal.SourceAuthority.IsValid() {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_authority", "unknown source authority")
		return
	}

	if err := h.signalRepo.Create(r.Context(), signal); err != nil {
		h.logger.Error("failed to create signal", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "create_failed", "failed to store signal")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, signal); err != nil {
		h.logger.Error("failed to encode signal response", zap.Error(err))
	}
}

// ListSignals handles GET /api/projects/{pid}/signals.
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("pid"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_project_id", "project id must be a UUID")
		return
	}

	signals, err := h.signalRepo.GetByProject(r.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to list signals", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "list_failed", "failed to list signals")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"signals": signals}); err != nil {
		h.logger.Error("failed to encode signals response", zap.Error(err))
	}
}

// processSignalResponse wraps the pipeline output for the HTTP surface.
type processSignalResponse struct {
	Result  *models.PatchApplicationResult `json:"result"`
	Summary string                         `json:"summary"`
}

// ProcessSignal handles POST /api/projects/{pid}/signals/{sid}/process.
func (h *SignalHandler) ProcessSignal(w http.ResponseWriter, r *http.Request) {
	if _, err := uuid.Parse(r.PathValue("pid")); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_project_id", "project id must be a UUID")
		return
	}
	signalID, err := uuid.Parse(r.PathValue("sid"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_signal_id", "signal id must be a UUID")
		return
	}

	processed, err := h.processor.ProcessSignal(r.Context(), signalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "signal_not_found", "signal does not exist")
			return
		}
		h.logger.Error("signal processing failed",
			zap.String("signal_id", signalID.String()),
			zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "processing_failed", err.Error())
		return
	}

	response := processSignalResponse{
		Result:  processed.Result,
		Summary: processed.Summary,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("failed to encode process response", zap.Error(err))
	}
}

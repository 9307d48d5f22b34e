package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/vitalog-inc/vitalog-engine/pkg/apperrors"
	"github.com/vitalog-inc/vitalog-engine/pkg/services"
)

// OccurrencesHandler handles reminder occurrence HTTP requests.
type OccurrencesHandler struct {
	reminderService services.ReminderService
	logger          *zap.Logger
}

// NewOccurrencesHandler creates a new occurrences handler.
func NewOccurrencesHandler(reminderService services.ReminderService, logger *zap.Logger) *OccurrencesHandler {
	return &OccurrencesHandler{
		reminderService: reminderService,
		logger:          logger,
	}
}

// RegisterRoutes registers the occurrences handler's routes on the given mux.
func (h *OccurrencesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/{uid}/occurrences/{oid}/skip", h.SkipOccurrence)
}

type skipOccurrenceRequest struct {
	Reason string `json:"reason,omitempty"`
}

// SkipOccurrence handles POST /api/users/{uid}/occurrences/{oid}/skip
func (h *OccurrencesHandler) SkipOccurrence(w http.ResponseWriter, r *http.Request) {
	userID, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}
	occurrenceID, ok := ParseOccurrenceID(w, r, h.logger)
	if !ok {
		return
	}

	// The body is optional; a skip without a reason is a bare POST.
	var req skipOccurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.reminderService.SkipOccurrence(r.Context(), userID, occurrenceID, req.Reason); err != nil {
		switch {
		case apperrors.IsValidation(err):
			h.writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		case errors.Is(err, apperrors.ErrOccurrenceNotPending):
			h.writeError(w, http.StatusConflict, "occurrence_not_pending", "Occurrence has already been completed or skipped")
		default:
			h.logger.Error("Failed to skip occurrence", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "skip_occurrence_failed", "Could not skip this occurrence")
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Message: "Occurrence skipped",
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *OccurrencesHandler) writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalog-inc/vitalog-engine/pkg/apperrors"
	"github.com/vitalog-inc/vitalog-engine/pkg/models"
	"github.com/vitalog-inc/vitalog-engine/pkg/services"
)

// TimelineHandler handles daily timeline HTTP requests.
type TimelineHandler struct {
	timelineService services.TimelineService
	logger          *zap.Logger
}

// NewTimelineHandler creates a new timeline handler.
func NewTimelineHandler(timelineService services.TimelineService, logger *zap.Logger) *TimelineHandler {
	return &TimelineHandler{
		timelineService: timelineService,
		logger:          logger,
	}
}

// RegisterRoutes registers the timeline handler's routes on the given mux.
func (h *TimelineHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users/{uid}/timeline", h.GetTimeline)
}

type timelineResponse struct {
	Day   string                 `json:"day"`
	Items []*models.TimelineItem `json:"items"`
}

// GetTimeline handles GET /api/users/{uid}/timeline
//
// Query parameters:
//   - day: local calendar day as YYYY-MM-DD (default: today, server-local)
//   - user_variable_ids: comma-separated binding IDs (required)
func (h *TimelineHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	day := time.Now()
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_day", "Day must be formatted as YYYY-MM-DD")
			return
		}
		day = parsed
	}

	rawIDs := r.URL.Query().Get("user_variable_ids")
	if rawIDs == "" {
		h.writeError(w, http.StatusBadRequest, "missing_user_variable_ids", "At least one user variable ID is required")
		return
	}
	var userVariableIDs []uuid.UUID
	for _, part := range strings.Split(rawIDs, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_user_variable_ids", "Invalid user variable ID format")
			return
		}
		userVariableIDs = append(userVariableIDs, id)
	}

	items, err := h.timelineService.ReconcileDay(r.Context(), userID, userVariableIDs, day)
	if err != nil {
		if errors.Is(err, apperrors.ErrReferenceData) {
			h.writeError(w, http.StatusServiceUnavailable, "reference_data_unavailable", "Variable display details could not be loaded")
			return
		}
		h.logger.Error("Failed to reconcile timeline", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "timeline_failed", "Could not load the timeline")
		return
	}

	if items == nil {
		items = make([]*models.TimelineItem, 0)
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: timelineResponse{
			Day:   day.Format("2006-01-02"),
			Items: items,
		},
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *TimelineHandler) writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalog-inc/vitalog-engine/pkg/apperrors"
	"github.com/vitalog-inc/vitalog-engine/pkg/services"
)

// MeasurementsHandler handles measurement HTTP requests.
type MeasurementsHandler struct {
	measurementService services.MeasurementService
	logger             *zap.Logger
}

// NewMeasurementsHandler creates a new measurements handler.
func NewMeasurementsHandler(measurementService services.MeasurementService, logger *zap.Logger) *MeasurementsHandler {
	return &MeasurementsHandler{
		measurementService: measurementService,
		logger:             logger,
	}
}

// RegisterRoutes registers the measurements handler's routes on the given mux.
func (h *MeasurementsHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/users/{uid}/measurements"

	mux.HandleFunc("POST "+base, h.LogMeasurement)
	mux.HandleFunc("PATCH "+base+"/{mid}", h.UpdateMeasurement)
	mux.HandleFunc("DELETE "+base+"/{mid}", h.DeleteMeasurement)
}

type logMeasurementRequest struct {
	VariableID   string     `json:"variable_id"`
	Value        *float64   `json:"value"`
	UnitID       string     `json:"unit_id,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	OccurrenceID string     `json:"occurrence_id,omitempty"`
}

type logMeasurementResponse struct {
	MeasurementID uuid.UUID `json:"measurement_id"`
}

// LogMeasurement handles POST /api/users/{uid}/measurements
func (h *MeasurementsHandler) LogMeasurement(w http.ResponseWriter, r *http.Request) {
	userID, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req logMeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	variableID, err := uuid.Parse(req.VariableID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_variable_id", "Invalid variable ID format")
		return
	}

	input := &services.LogMeasurementInput{
		UserID:     userID,
		VariableID: variableID,
		Value:      req.Value,
		Timestamp:  req.Timestamp,
		Notes:      req.Notes,
	}
	if req.UnitID != "" {
		unitID, err := uuid.Parse(req.UnitID)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_unit_id", "Invalid unit ID format")
			return
		}
		input.UnitID = &unitID
	}
	if req.OccurrenceID != "" {
		occurrenceID, err := uuid.Parse(req.OccurrenceID)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_occurrence_id", "Invalid occurrence ID format")
			return
		}
		input.OccurrenceID = &occurrenceID
	}

	measurementID, err := h.measurementService.Log(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, err, "log_measurement_failed")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{
		Success: true,
		Data:    logMeasurementResponse{MeasurementID: measurementID},
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type updateMeasurementRequest struct {
	Value  float64 `json:"value"`
	UnitID string  `json:"unit_id"`
	Notes  string  `json:"notes,omitempty"`
}

// UpdateMeasurement handles PATCH /api/users/{uid}/measurements/{mid}
func (h *MeasurementsHandler) UpdateMeasurement(w http.ResponseWriter, r *http.Request) {
	userID, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}
	measurementID, ok := ParseMeasurementID(w, r, h.logger)
	if !ok {
		return
	}

	var req updateMeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	unitID, err := uuid.Parse(req.UnitID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_unit_id", "Invalid unit ID format")
		return
	}

	input := &services.UpdateMeasurementInput{
		Value:  req.Value,
		UnitID: unitID,
		Notes:  req.Notes,
	}
	if err := h.measurementService.Update(r.Context(), userID, measurementID, input); err != nil {
		h.writeServiceError(w, err, "update_measurement_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Message: "Measurement updated",
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// DeleteMeasurement handles DELETE /api/users/{uid}/measurements/{mid}
func (h *MeasurementsHandler) DeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	userID, ok := ParseUserID(w, r, h.logger)
	if !ok {
		return
	}
	measurementID, ok := ParseMeasurementID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.measurementService.Delete(r.Context(), userID, measurementID); err != nil {
		h.writeServiceError(w, err, "delete_measurement_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Message: "Measurement deleted",
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeServiceError maps service errors onto HTTP status codes.
func (h *MeasurementsHandler) writeServiceError(w http.ResponseWriter, err error, fallbackCode string) {
	var verr *apperrors.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, "invalid_"+verr.Field, verr.Error())
	case errors.Is(err, apperrors.ErrUnresolvedUnit):
		h.writeError(w, http.StatusUnprocessableEntity, "unresolved_unit", "No unit could be resolved for this measurement")
	case errors.Is(err, apperrors.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "measurement_not_found", "Measurement not found")
	default:
		h.logger.Error("Measurement request failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, fallbackCode, "Could not process this measurement")
	}
}

func (h *MeasurementsHandler) writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

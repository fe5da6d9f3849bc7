package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"whatsdrip/internal/service"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and message
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeErrorDetail(w, status, ErrorDetail{Code: code, Message: message})
}

func writeErrorDetail(w http.ResponseWriter, status int, detail ErrorDetail) {
	_ = WriteJSON(w, status, ErrorResponse{Error: detail})
}

// WriteOK writes a 200 OK response with the given data
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteValidationError writes a 400 Bad Request response with VALIDATION_ERROR code
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

// WriteInternalError writes a 500 response without exposing the cause
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
}

// HandleServiceError maps service layer errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := zerolog.Ctx(r.Context())

	switch e := err.(type) {
	case *service.ValidationError:
		WriteValidationError(w, e.Message)
	case *service.ConfigNotFoundError:
		WriteError(w, http.StatusNotFound, "CONFIG_NOT_FOUND", e.Error())
	case *service.MalformedDelayRuleError:
		log.Warn().Err(e).Msg("template has a malformed delay rule")
		writeErrorDetail(w, http.StatusUnprocessableEntity, ErrorDetail{
			Code:    "MALFORMED_DELAY_RULE",
			Message: e.Error(),
			Details: map[string]interface{}{
				"step_index": e.StepIndex,
				"step_id":    e.StepID,
			},
		})
	case *service.InvalidStepError:
		log.Warn().Err(e).Msg("template has an invalid step")
		writeErrorDetail(w, http.StatusUnprocessableEntity, ErrorDetail{
			Code:    "INVALID_TEMPLATE_STEP",
			Message: e.Error(),
			Details: map[string]interface{}{
				"step_index": e.StepIndex,
				"step_id":    e.StepID,
			},
		})
	case *service.DispatchFailureError:
		log.Error().Err(e).Msg("campaign start failed at the dispatcher")
		writeErrorDetail(w, http.StatusBadGateway, ErrorDetail{
			Code:    "DISPATCH_FAILURE",
			Message: e.Error(),
			Details: map[string]interface{}{
				"step_index": e.StepIndex,
				"submitted":  e.Submitted,
			},
		})
	default:
		log.Error().Err(err).Msg("unhandled service error")
		WriteInternalError(w)
	}
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"huddle/internal/account"
	"huddle/internal/constants"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("error encoding response", "component", "api", "error", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessResponse{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: message})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func writeFieldError(w http.ResponseWriter, status int, code, field, message string, details any) {
	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Field:   field,
		Details: details,
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, constants.ErrCodeUnauthorized, message)
}

func forbidden(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusForbidden, code, message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, constants.ErrCodeInternal, "An internal error occurred")
}

// writeAccountError converts service errors to the response envelope. Causes
// of internal errors are logged and never sent to the client.
func writeAccountError(w http.ResponseWriter, r *http.Request, err error) {
	accErr, ok := account.AsError(err)
	if !ok {
		slog.Error("unexpected handler error", "component", "api", "path", r.URL.Path, "error", err)
		internalError(w)
		return
	}

	switch accErr.Kind {
	case account.KindValidation, account.KindConflict:
		writeFieldError(w, http.StatusBadRequest, accErr.Code, accErr.Field, accErr.Message, accErr.Details)
	case account.KindAuthentication:
		writeError(w, http.StatusUnauthorized, accErr.Code, accErr.Message)
	case account.KindNotFound:
		writeError(w, http.StatusNotFound, accErr.Code, accErr.Message)
	default:
		slog.Error("internal error", "component", "api", "path", r.URL.Path, "error", accErr)
		internalError(w)
	}
}

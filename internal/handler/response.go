package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"confidee-relayer/internal/service"
	"confidee-relayer/internal/util"
)

const maxErrorMessageLength = 300

// errorBody is the failure shape shared by every endpoint. Success is
// omitted on session and rate-limit endpoints.
type errorBody struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
	TxHash  string `json:"txHash,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, logger *zap.Logger, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// statusAndReason maps err to an HTTP status and a machine-stable reason.
func statusAndReason(err error) (int, string) {
	var quotaErr *service.QuotaError
	var execErr *service.ExecutionError

	switch {
	case errors.As(err, &quotaErr):
		return http.StatusTooManyRequests, quotaErr.Error()
	case errors.As(err, &execErr):
		return http.StatusInternalServerError, util.SanitizeMessage(execErr.Err.Error(), maxErrorMessageLength)
	case errors.Is(err, service.ErrMissingFields):
		return http.StatusBadRequest, "Missing required fields"
	case errors.Is(err, service.ErrInvalidAddress):
		return http.StatusBadRequest, "Invalid address"
	case errors.Is(err, service.ErrChallengeExpired):
		return http.StatusBadRequest, "Message expired"
	case errors.Is(err, service.ErrInvalidSecretID):
		return http.StatusBadRequest, "Invalid secretId"
	case errors.Is(err, service.ErrContentTooLong):
		return http.StatusBadRequest, "Content too long"
	case errors.Is(err, service.ErrInvalidAction):
		return http.StatusBadRequest, "Invalid action"
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized, "Invalid signature"
	case errors.Is(err, service.ErrInvalidSession):
		return http.StatusUnauthorized, "Invalid or expired session"
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "Duplicate request"
	case errors.Is(err, service.ErrRelayerNotConfigured):
		return http.StatusInternalServerError, "Relayer not configured"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondWithError writes the failure body. withSuccess adds
// "success":false for endpoints whose contract carries it.
func respondWithError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, withSuccess bool) {
	status, reason := statusAndReason(err)

	body := errorBody{Error: reason}
	if withSuccess {
		f := false
		body.Success = &f
	}
	var execErr *service.ExecutionError
	if errors.As(err, &execErr) {
		body.TxHash = execErr.TxHash
	}

	fields := []zap.Field{
		util.String("path", r.URL.Path),
		util.Int("status_code", status),
		util.String("kind", service.KindOf(err).String()),
		util.ErrorField(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("HTTP error response", fields...)
	} else {
		logger.Warn("HTTP error response", fields...)
	}

	respondWithJSON(w, logger, status, body)
}

package handler

import (
	"collection-ledger/internal/api/handler/dto"
	"collection-ledger/internal/api/middleware"
	"collection-ledger/internal/pkg/apperrors"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, code, message, field := http.StatusInternalServerError, "internal", "An unexpected error occurred.", ""
	var validationError *apperrors.ValidationError
	var stateError *apperrors.StateError

	switch {
	case errors.As(err, &validationError):
		status, code, message, field = http.StatusBadRequest, "validation", validationError.Message, validationError.Field
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation):
		status, code, message = http.StatusBadRequest, "invalid_argument", err.Error()
	case errors.Is(err, apperrors.ErrInvalidAmount):
		status, code, message = http.StatusBadRequest, "invalid_amount", err.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", "Resource not found."
	case errors.Is(err, apperrors.ErrTargetAlreadyClosed):
		status, code, message = http.StatusUnprocessableEntity, "target_closed", err.Error()
	case errors.Is(err, apperrors.ErrNoOutstandingInstallments):
		status, code, message = http.StatusUnprocessableEntity, "no_outstanding_installments", err.Error()
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		status, code, message = http.StatusUnprocessableEntity, "insufficient_balance", err.Error()
	case errors.As(err, &stateError):
		status, code, message = http.StatusUnprocessableEntity, "invalid_state", err.Error()
	case errors.Is(err, apperrors.ErrConcurrencyConflict):
		status, code, message = http.StatusConflict, "conflict", "The resource is busy, retry the request."
	case errors.Is(err, apperrors.ErrNoActivePolicy):
		status, code, message = http.StatusPreconditionFailed, "no_active_policy", err.Error()
	case errors.Is(err, apperrors.ErrAlreadyExists):
		status, code, message = http.StatusConflict, "already_exists", err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, code, message = http.StatusUnauthorized, "unauthorized", "Unauthorized"
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	respondJSON(w, status, dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Code:    code,
			Message: message,
			Field:   field,
		},
	})
}

func invalidArgument(err error) error {
	return fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
}

func getIDFromURL(r *http.Request, param string) (int64, error) {
	idStr := chi.URLParam(r, param)
	if idStr == "" {
		return 0, fmt.Errorf("%s not found in URL path", param)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", param)
	}
	return id, nil
}

func requireActor(r *http.Request) (int64, error) {
	actorID, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		return 0, fmt.Errorf("%w: acting user is required (token or %s header)", apperrors.ErrUnauthorized, middleware.ActorHeader)
	}
	return actorID, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

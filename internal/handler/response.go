package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"contract-ledger/internal/middleware"
	"contract-ledger/internal/model"
	"contract-ledger/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, status, model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    requestMeta(r),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classifyError(err)
	if status == http.StatusInternalServerError {
		slog.Error("ledger request failed",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}

	writeEnvelope(w, status, model.APIResponse{
		Success: false,
		Error:   body,
		Meta:    requestMeta(r),
	})
}

// classifyError maps service errors onto HTTP statuses. Anything unknown is a
// 500 with a generic message.
func classifyError(err error) (int, *model.APIError) {
	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.HTTPStatus, &model.APIError{Code: apiErr.Code, Message: apiErr.Message, Details: apiErr.Details}
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized, &model.APIError{Code: "UNAUTHORIZED", Message: "Authentication required"}
	case errors.Is(err, model.ErrRecordNotFound):
		return http.StatusNotFound, &model.APIError{Code: "NOT_FOUND", Message: "Deleted contract not found"}
	case errors.Is(err, model.ErrInvalidRecord):
		return http.StatusBadRequest, &model.APIError{Code: "BAD_REQUEST", Message: "Invalid input"}
	default:
		return http.StatusInternalServerError, &model.APIError{Code: "INTERNAL_ERROR", Message: "Unexpected server error"}
	}
}

func requestMeta(r *http.Request) *model.Meta {
	if r == nil {
		return nil
	}
	id := middleware.RequestIDFromContext(r.Context())
	if id == "" {
		return nil
	}
	return &model.Meta{RequestID: id}
}

func writeEnvelope(w http.ResponseWriter, status int, body model.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

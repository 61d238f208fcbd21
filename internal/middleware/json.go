package middleware

import (
	"encoding/json"
	"net/http"

	"contract-ledger/internal/model"
)

// writeJSONError answers with the same envelope the handlers use, so clients
// see one error shape whether a request failed in middleware or in a handler.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	var meta *model.Meta
	if id := requestIDOf(w, r); id != "" {
		meta = &model.Meta{RequestID: id}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: code, Message: message},
		Meta:    meta,
	})
}

// requestIDOf also checks the response header, which Logging sets before
// middleware further out (Recovery) ever sees the derived request.
func requestIDOf(w http.ResponseWriter, r *http.Request) string {
	if id := RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return w.Header().Get(requestIDHeader)
}

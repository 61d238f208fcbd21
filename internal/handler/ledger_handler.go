package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"contract-ledger/internal/middleware"
	"contract-ledger/internal/model"
	"contract-ledger/internal/service"
	"contract-ledger/pkg/apierror"
)

const maxRecordBody = 64 << 10

type LedgerHandler struct {
	ledger *service.LedgerService
}

func NewLedgerHandler(ledger *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, http.StatusOK, h.ledger.View())
}

func (h *LedgerHandler) Record(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RecordDeletionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBody)).Decode(&payload); err != nil {
		writeError(w, r, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	record, err := h.ledger.Record(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, r, http.StatusCreated, record)
}

func (h *LedgerHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.ledger.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, r, http.StatusOK, record)
}

// Restore answers 200 for unknown ids; the body says whether anything moved.
func (h *LedgerHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, r, apierror.New("BAD_REQUEST", "contract id is required", "id", http.StatusBadRequest))
		return
	}

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	resp, err := h.ledger.Restore(r.Context(), claims.UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, r, http.StatusOK, resp)
}

func (h *LedgerHandler) Purge(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, r, apierror.New("BAD_REQUEST", "contract id is required", "id", http.StatusBadRequest))
		return
	}

	writeSuccess(w, r, http.StatusOK, h.ledger.Purge(r.Context(), id))
}

package handler

import (
	"net/http"

	"contract-ledger/internal/middleware"
	"contract-ledger/internal/service"
	"contract-ledger/pkg/apierror"
)

type ContractsHandler struct {
	ledger *service.LedgerService
}

func NewContractsHandler(ledger *service.LedgerService) *ContractsHandler {
	return &ContractsHandler{ledger: ledger}
}

func (h *ContractsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	resp, err := h.ledger.ActiveContracts(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, r, http.StatusOK, resp)
}

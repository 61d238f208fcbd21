package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"contract-ledger/internal/contracts"
	"contract-ledger/internal/ledger"
	"contract-ledger/internal/model"
	"contract-ledger/pkg/apierror"
)

// LedgerService is the HTTP-facing side of the deleted-contract ledger. The
// ledger is shared by every user of the deployment; only the active
// collection a restore lands in is namespaced by the caller.
type LedgerService struct {
	ledger    *ledger.Ledger
	contracts *contracts.Cache
	validate  *validator.Validate
	now       func() time.Time
}

func NewLedgerService(l *ledger.Ledger, cache *contracts.Cache) *LedgerService {
	return &LedgerService{
		ledger:    l,
		contracts: cache,
		validate:  newValidator(),
		now:       time.Now,
	}
}

func (s *LedgerService) View() model.LedgerView {
	return s.ledger.View()
}

// Get returns one ledger entry, or ErrRecordNotFound.
func (s *LedgerService) Get(id string) (model.ContractRecord, error) {
	record, ok := s.ledger.Get(strings.TrimSpace(id))
	if !ok {
		return model.ContractRecord{}, model.ErrRecordNotFound
	}
	return record, nil
}

// Record validates and normalizes one deletion, then appends or replaces it.
func (s *LedgerService) Record(ctx context.Context, req model.RecordDeletionRequest) (model.ContractRecord, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)

	if err := s.validate.Struct(req); err != nil {
		return model.ContractRecord{}, validationError(err)
	}

	record := model.ContractRecord{
		ID:         req.ID,
		Name:       req.Name,
		UploadDate: strings.TrimSpace(req.UploadDate),
		Status:     model.StatusInReview,
	}

	if strings.TrimSpace(req.Status) != "" {
		status, ok := model.ParseContractStatus(req.Status)
		if !ok {
			return model.ContractRecord{}, apierror.New("VALIDATION_ERROR", "request validation failed", "status: unknown value", http.StatusBadRequest)
		}
		record.Status = status
	}

	if req.RiskScore != nil {
		record.RiskScore = *req.RiskScore
	}

	if strings.TrimSpace(req.RiskBand) != "" {
		band, ok := model.ParseRiskBand(req.RiskBand)
		if !ok {
			return model.ContractRecord{}, apierror.New("VALIDATION_ERROR", "request validation failed", "risk_band: unknown value", http.StatusBadRequest)
		}
		record.RiskBand = band
	} else {
		record.RiskBand = model.RiskBandForScore(record.RiskScore)
	}

	if req.DeletedAt != nil && !req.DeletedAt.IsZero() {
		record.DeletedAt = req.DeletedAt.UTC()
	} else {
		record.DeletedAt = s.now().UTC()
	}

	s.ledger.Append(ctx, record)
	return record, nil
}

// Restore moves id back into the caller's active contracts. An unknown id, or
// an active collection that cannot be written, reports Restored=false.
func (s *LedgerService) Restore(ctx context.Context, userKey string, id string) (model.RestoreResponse, error) {
	if strings.TrimSpace(userKey) == "" {
		return model.RestoreResponse{}, model.ErrUnauthorized
	}

	record, ok := s.ledger.Restore(ctx, id, s.contracts.ForUser(userKey))
	if !ok {
		return model.RestoreResponse{Restored: false}, nil
	}
	return model.RestoreResponse{Restored: true, Record: &record}, nil
}

func (s *LedgerService) Purge(ctx context.Context, id string) model.PurgeResponse {
	return model.PurgeResponse{Purged: s.ledger.Purge(ctx, id)}
}

func (s *LedgerService) ActiveContracts(ctx context.Context, userKey string) (model.ActiveContractsResponse, error) {
	if strings.TrimSpace(userKey) == "" {
		return model.ActiveContractsResponse{}, model.ErrUnauthorized
	}

	items, err := s.contracts.ForUser(userKey).List(ctx)
	if err != nil {
		return model.ActiveContractsResponse{}, err
	}
	return model.ActiveContractsResponse{Items: items}, nil
}

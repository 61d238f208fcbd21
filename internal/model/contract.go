package model

import (
	"strings"
	"time"
)

type ContractStatus string

const (
	StatusInReview ContractStatus = "in_review"
	StatusHighRisk ContractStatus = "high_risk"
	StatusApproved ContractStatus = "approved"
)

// ParseContractStatus accepts wire values and the display labels used by the
// upload dashboard ("In Review", "High Risk", "Approved").
func ParseContractStatus(raw string) (ContractStatus, bool) {
	switch normalizeEnum(raw) {
	case "in_review", "inreview", "review":
		return StatusInReview, true
	case "high_risk", "highrisk":
		return StatusHighRisk, true
	case "approved":
		return StatusApproved, true
	}
	return "", false
}

type RiskBand string

const (
	RiskVeryLow  RiskBand = "very_low"
	RiskLow      RiskBand = "low"
	RiskMedium   RiskBand = "medium"
	RiskHigh     RiskBand = "high"
	RiskVeryHigh RiskBand = "very_high"
)

func ParseRiskBand(raw string) (RiskBand, bool) {
	switch normalizeEnum(raw) {
	case "very_low", "verylow":
		return RiskVeryLow, true
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	case "very_high", "veryhigh":
		return RiskVeryHigh, true
	}
	return "", false
}

// RiskBandForScore maps a 0-100 score onto five equal-width bands.
func RiskBandForScore(score int) RiskBand {
	switch {
	case score < 20:
		return RiskVeryLow
	case score < 40:
		return RiskLow
	case score < 60:
		return RiskMedium
	case score < 80:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

func normalizeEnum(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(lowered)
}

// ContractRecord is the listing snapshot of a contract taken when it was deleted.
type ContractRecord struct {
	ID         string         `json:"id" yaml:"id" validate:"required,max=128"`
	Name       string         `json:"name" yaml:"name" validate:"required,max=512"`
	UploadDate string         `json:"upload_date,omitempty" yaml:"upload_date,omitempty"`
	Status     ContractStatus `json:"status" yaml:"status" validate:"omitempty,oneof=in_review high_risk approved"`
	RiskBand   RiskBand       `json:"risk_band" yaml:"risk_band" validate:"omitempty,oneof=very_low low medium high very_high"`
	RiskScore  int            `json:"risk_score" yaml:"risk_score" validate:"min=0,max=100"`
	DeletedAt  time.Time      `json:"deleted_at" yaml:"deleted_at"`
}

// LedgerNode is the persisted form of one ledger entry.
type LedgerNode struct {
	Record ContractRecord `json:"record"`
	Next   string         `json:"next,omitempty"`
	Prev   string         `json:"prev,omitempty"`
}

// LedgerView is the read projection of the ledger, oldest deletion first.
type LedgerView struct {
	Items []ContractRecord `json:"items" yaml:"items"`
	Head  string           `json:"head,omitempty" yaml:"head,omitempty"`
	Tail  string           `json:"tail,omitempty" yaml:"tail,omitempty"`
	Count int              `json:"count" yaml:"count"`
}

type AuthClaims struct {
	UserID   string `json:"sub"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

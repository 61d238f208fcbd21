package model

import "time"

type RestoreResponse struct {
	Restored bool            `json:"restored"`
	Record   *ContractRecord `json:"record,omitempty"`
}

type PurgeResponse struct {
	Purged bool `json:"purged"`
}

type ActiveContractsResponse struct {
	Items []ContractRecord `json:"items"`
}

// RecordDeletionRequest is the body of POST /deleted. Status and risk band
// accept display labels as well as wire values.
type RecordDeletionRequest struct {
	ID         string     `json:"id" validate:"required,max=128"`
	Name       string     `json:"name" validate:"required,max=512"`
	UploadDate string     `json:"upload_date" validate:"max=64"`
	Status     string     `json:"status" validate:"max=32"`
	RiskBand   string     `json:"risk_band" validate:"max=32"`
	RiskScore  *int       `json:"risk_score" validate:"omitempty,min=0,max=100"`
	DeletedAt  *time.Time `json:"deleted_at"`
}

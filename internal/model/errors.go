package model

import "errors"

var (
	// Ledger related errors
	ErrRecordNotFound = errors.New("deleted record not found")
	ErrInvalidRecord  = errors.New("invalid contract record")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
)

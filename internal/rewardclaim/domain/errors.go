package domain

import "errors"

var (
	ErrInvalidID    = errors.New("invalid_id")
	ErrInvalidClaim = errors.New("invalid_claim")
)

package domain

import "errors"

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrNothingToPay     = errors.New("nothing_to_pay")
	ErrInvalidDateRange = errors.New("invalid_date_range")
)

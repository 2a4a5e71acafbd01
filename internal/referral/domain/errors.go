package domain

import "errors"

var (
	ErrInvalidID     = errors.New("invalid_id")
	ErrUserNotFound  = errors.New("user_not_found")
	ErrCycleDetected = errors.New("referral_cycle_detected")
)

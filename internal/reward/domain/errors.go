package domain

import "errors"

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrReferenceNotFound  = errors.New("reference_not_found")
	ErrSelfReferral       = errors.New("self_referral")
	ErrReferralAlreadySet = errors.New("referral_already_set")
	ErrAllocationBusy     = errors.New("allocation_busy")
)

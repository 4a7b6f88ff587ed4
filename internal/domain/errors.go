package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInsufficientFunds  = errors.New("insufficient wallet balance")
	ErrDuplicateReference = errors.New("duplicate transaction reference")
	ErrPlanUnavailable    = errors.New("plan unavailable")
	ErrNetworkMismatch    = errors.New("network mismatch for plan")
	ErrAlreadySettled     = errors.New("transaction already in terminal state")
	ErrUserExists         = errors.New("user already exists")
	ErrAccountUnresolved  = errors.New("no user for beneficiary account")
	ErrIdentityRequired   = errors.New("BVN or NIN required")
)

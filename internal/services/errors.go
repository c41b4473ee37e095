package services

import "errors"

// Operation failures surfaced to callers. Everything here is recovered at
// the operation boundary and mapped to a response; nothing panics.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidAsset      = errors.New("unsupported asset")
	ErrPriceUnavailable  = errors.New("price unavailable")
	ErrPlanBounds        = errors.New("amount outside plan bounds")
	ErrInvalidTransition = errors.New("invalid order transition")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConflict          = errors.New("conflicting concurrent update")
	ErrSameAsset         = errors.New("cannot exchange an asset with itself")
)

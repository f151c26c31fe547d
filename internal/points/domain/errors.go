package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidDirection    = errors.New("invalid_direction")
	ErrInvalidSource       = errors.New("invalid_source")
	ErrInvalidReference    = errors.New("invalid_reference")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrSelfPurchase        = errors.New("self_purchase")
	ErrAccountNotFound     = errors.New("account_not_found")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrBalanceConflict     = errors.New("balance_conflict")
	ErrReferenceConflict   = errors.New("reference_conflict")
	ErrInvalidRule         = errors.New("invalid_rule")
)

// InsufficientBalanceError reports the shortfall of a rejected spend.
type InsufficientBalanceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Shortfall() int64 {
	return e.Required - e.Available
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient_balance: required %d, available %d, shortfall %d", e.Required, e.Available, e.Shortfall())
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// ReferenceConflictError reports a reference id already recorded for a
// different direction or amount.
type ReferenceConflictError struct {
	ReferenceID string
	Direction   Direction
	Amount      int64
}

func (e *ReferenceConflictError) Error() string {
	return fmt.Sprintf("reference_conflict: %s already recorded as %s %d", e.ReferenceID, e.Direction, e.Amount)
}

func (e *ReferenceConflictError) Is(target error) bool {
	return target == ErrReferenceConflict
}

package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error below wraps exactly one of them so
// callers can classify with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("entity not found")
	ErrConflict   = errors.New("conflict")
	ErrTransient  = errors.New("transient failure")
)

var (
	ErrInvalidArgument   = fmt.Errorf("%w: invalid argument", ErrValidation)
	ErrUnknownOwner      = fmt.Errorf("%w: unknown owner", ErrValidation)
	ErrUnknownCurrency   = fmt.Errorf("%w: unknown currency", ErrValidation)
	ErrUnsupportedPlan   = fmt.Errorf("%w: unsupported plan or period", ErrValidation)
	ErrInvalidPeriod     = fmt.Errorf("%w: invalid period", ErrValidation)
	ErrNotManualPayment  = fmt.Errorf("%w: payment is not a manual transfer", ErrValidation)
	ErrPaymentNotFound   = fmt.Errorf("%w: payment", ErrNotFound)
	ErrCredentialMissing = fmt.Errorf("%w: credential", ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("%w: payment is not in the required state", ErrConflict)
	ErrPaymentExpired    = fmt.Errorf("%w: payment window has expired", ErrConflict)
	ErrAlreadyHasTrial   = fmt.Errorf("%w: owner already has an active trial credential", ErrConflict)
	ErrAlreadyExists     = fmt.Errorf("%w: entity already exists", ErrConflict)
	ErrSettlementTxUsed  = fmt.Errorf("%w: settlement transaction already used", ErrConflict)
)

// Persistence errors.
var (
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)

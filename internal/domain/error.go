package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Voucher lifecycle errors
	ErrInvalidPhone       = errors.New("invalid phone number format")
	ErrUpstreamAuth       = errors.New("payment provider auth failed")
	ErrPaymentPushFailed  = errors.New("payment push failed")
	ErrDuplicateCode      = errors.New("voucher code already exists")
	ErrCodeGeneration     = errors.New("voucher code generation exhausted")
	ErrInvalidOrUsedCode  = errors.New("invalid or already used voucher code")
	ErrNoVoucherAvailable = errors.New("no voucher available")
	ErrMalformedCallback  = errors.New("malformed callback payload")
)

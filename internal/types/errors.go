package types

import (
	"errors"
	"fmt"
)

// ValidationError is rejected before any mutation takes place.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// InsufficientBalanceError is deterministic and never retried.
type InsufficientBalanceError struct {
	UserID    string
	TokenID   string
	Requested int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for user %s token %s: requested %d, available %d",
		e.UserID, e.TokenID, e.Requested, e.Available)
}

func IsInsufficientBalanceError(err error) bool {
	var e *InsufficientBalanceError
	return errors.As(err, &e)
}

// InvalidStakeStatusError carries a human-readable reason distinguishing
// "not yet confirmed" from "already terminal" from "not found".
type InvalidStakeStatusError struct {
	StakeID string
	Current StakeState
	Reason  string
}

func (e *InvalidStakeStatusError) Error() string {
	return fmt.Sprintf("invalid stake status for %s (current %s): %s", e.StakeID, e.Current, e.Reason)
}

func IsInvalidStakeStatusError(err error) bool {
	var e *InvalidStakeStatusError
	return errors.As(err, &e)
}

// InvalidStateTransitionError covers withdrawal and transaction status moves.
type InvalidStateTransitionError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition %s -> %s: %s", e.Entity, e.From, e.To, e.Reason)
}

func IsInvalidStateTransitionError(err error) bool {
	var e *InvalidStateTransitionError
	return errors.As(err, &e)
}

// DuplicateTickerError is returned by token registration.
type DuplicateTickerError struct {
	Ticker string
}

func (e *DuplicateTickerError) Error() string {
	return fmt.Sprintf("token ticker %s already registered", e.Ticker)
}

func IsDuplicateTickerError(err error) bool {
	var e *DuplicateTickerError
	return errors.As(err, &e)
}

// TierSumError is returned by waterfall calculation when tier percentages
// do not sum to 100 within tolerance.
type TierSumError struct {
	Sum float64
}

func (e *TierSumError) Error() string {
	return fmt.Sprintf("waterfall tier percentages sum to %.4f, expected 100", e.Sum)
}

func IsTierSumError(err error) bool {
	var e *TierSumError
	return errors.As(err, &e)
}

// DerivationError is returned on malformed derivation input. A signature
// that derives to a different address is not an error (see wallet.Recover).
type DerivationError struct {
	Message string
}

func (e *DerivationError) Error() string {
	return e.Message
}

func IsDerivationError(err error) bool {
	var e *DerivationError
	return errors.As(err, &e)
}

// PaymentNotConfirmedError gates purchase recording on the payment
// collaborator's verdict.
type PaymentNotConfirmedError struct {
	Reference string
}

func (e *PaymentNotConfirmedError) Error() string {
	return fmt.Sprintf("payment %s is not confirmed", e.Reference)
}

func IsPaymentNotConfirmedError(err error) bool {
	var e *PaymentNotConfirmedError
	return errors.As(err, &e)
}

// CircuitOpenError fails fast while the collaborator's circuit breaker is
// open. Not retried immediately.
type CircuitOpenError struct {
	Service string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker for %s is open", e.Service)
}

func IsCircuitOpenError(err error) bool {
	var e *CircuitOpenError
	return errors.As(err, &e)
}

// ExternalServiceError wraps chain/payment/kyc collaborator failures after
// local retries have been exhausted. Retryable by the caller.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s failed: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

func IsExternalServiceError(err error) bool {
	var e *ExternalServiceError
	return errors.As(err, &e)
}

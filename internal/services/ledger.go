package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bookledger-io/equity-ledger/internal/db"
	"github.com/bookledger-io/equity-ledger/internal/db/model"
	"github.com/bookledger-io/equity-ledger/internal/observability/metrics"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

// TokenSpec is the registration input for a new token.
type TokenSpec struct {
	Ticker      string
	Name        string
	Standard    string
	TotalSupply int64
	Decimals    uint8
	Blockchain  string
}

func (s *Service) RegisterToken(ctx context.Context, spec TokenSpec) (*model.Token, error) {
	if spec.Ticker == "" {
		return nil, &types.ValidationError{Field: "ticker", Message: "must not be empty"}
	}
	if spec.TotalSupply < 0 {
		return nil, &types.ValidationError{Field: "totalSupply", Message: "must not be negative"}
	}

	token := &model.Token{
		ID:          uuid.NewString(),
		Ticker:      spec.Ticker,
		Name:        spec.Name,
		Standard:    spec.Standard,
		TotalSupply: spec.TotalSupply,
		Decimals:    spec.Decimals,
		Blockchain:  spec.Blockchain,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.db.SaveToken(ctx, token); err != nil {
		if db.IsDuplicateKeyError(err) {
			return nil, &types.DuplicateTickerError{Ticker: spec.Ticker}
		}
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("token_id", token.ID).
		Str("ticker", token.Ticker).
		Msg("registered token")
	return token, nil
}

// GetBalance returns nil for a (user, token) pair that has never held
// anything.
func (s *Service) GetBalance(ctx context.Context, userID, tokenID string) (*model.Balance, error) {
	balance, err := s.db.GetBalance(ctx, userID, tokenID)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// TransactionInput is the generic append input. The type chooses the
// balance mutation (credit vs debit).
type TransactionInput struct {
	UserID    string
	TokenID   string
	Type      types.TransactionType
	Amount    int64
	TxID      string
	Reference string
}

// RecordTransaction appends a confirmed transaction and applies its
// balance mutation atomically with respect to the (user, token) key.
// MINT and BURN adjust total supply along with the credit or debit.
func (s *Service) RecordTransaction(ctx context.Context, in TransactionInput) (*model.Transaction, error) {
	if err := validateTransactionInput(in); err != nil {
		return nil, err
	}

	key := balanceKey(in.UserID, in.TokenID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	tx, err := s.recordTransactionLocked(ctx, in)
	metrics.RecordLedgerOp("RecordTransaction", err != nil)
	return tx, err
}

func (s *Service) recordTransactionLocked(ctx context.Context, in TransactionInput) (*model.Transaction, error) {
	// Supply moves first for MINT so the credit can never momentarily
	// exceed total supply.
	if in.Type == types.TxMint {
		if err := s.db.AdjustTokenSupply(ctx, in.TokenID, in.Amount); err != nil {
			return nil, fmt.Errorf("failed to mint supply: %w", err)
		}
	}

	if err := s.applyBalanceMutation(ctx, in); err != nil {
		if in.Type == types.TxMint {
			if compErr := s.db.AdjustTokenSupply(ctx, in.TokenID, -in.Amount); compErr != nil {
				log.Ctx(ctx).Error().Err(compErr).
					Str("token_id", in.TokenID).
					Msg("failed to compensate supply after mint credit failure")
			}
		}
		return nil, err
	}

	if in.Type == types.TxBurn {
		if err := s.db.AdjustTokenSupply(ctx, in.TokenID, -in.Amount); err != nil {
			// put the burned amount back so the debit is not orphaned
			if compErr := s.db.CreditBalance(ctx, in.UserID, in.TokenID, in.Amount, model.CounterNone); compErr != nil {
				log.Ctx(ctx).Error().Err(compErr).
					Str("user_id", in.UserID).
					Msg("failed to compensate balance after burn supply failure")
			}
			return nil, fmt.Errorf("failed to burn supply: %w", err)
		}
	}

	tx := &model.Transaction{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		TokenID:   in.TokenID,
		Type:      in.Type,
		Status:    types.TxConfirmed,
		Amount:    in.Amount,
		TxID:      in.TxID,
		Reference: in.Reference,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.db.SaveTransaction(ctx, tx); err != nil {
		s.reverseTransactionEffects(ctx, in)
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}
	return tx, nil
}

// reverseTransactionEffects undoes the balance mutation and any supply
// adjustment after the transaction row failed to persist, so no value
// moves without a row replay can see.
func (s *Service) reverseTransactionEffects(ctx context.Context, in TransactionInput) {
	switch {
	case in.Type.Credits():
		if err := s.db.DebitBalance(ctx, in.UserID, in.TokenID, in.Amount, model.CounterNone); err != nil {
			log.Ctx(ctx).Error().Err(err).
				Str("user_id", in.UserID).
				Str("token_id", in.TokenID).
				Msg("failed to reverse credit after transaction save failure")
		}
		if in.Type == types.TxMint {
			if err := s.db.AdjustTokenSupply(ctx, in.TokenID, -in.Amount); err != nil {
				log.Ctx(ctx).Error().Err(err).
					Str("token_id", in.TokenID).
					Msg("failed to reverse minted supply after transaction save failure")
			}
		}
	case in.Type.Debits():
		// Restore supply before the balance so held amounts never
		// exceed total supply mid-reversal.
		if in.Type == types.TxBurn {
			if err := s.db.AdjustTokenSupply(ctx, in.TokenID, in.Amount); err != nil {
				log.Ctx(ctx).Error().Err(err).
					Str("token_id", in.TokenID).
					Msg("failed to reverse burned supply after transaction save failure")
			}
		}
		if err := s.db.CreditBalance(ctx, in.UserID, in.TokenID, in.Amount, model.CounterNone); err != nil {
			log.Ctx(ctx).Error().Err(err).
				Str("user_id", in.UserID).
				Str("token_id", in.TokenID).
				Msg("failed to reverse debit after transaction save failure")
		}
	}
}

func (s *Service) applyBalanceMutation(ctx context.Context, in TransactionInput) error {
	switch {
	case in.Type.Credits():
		counter := model.CounterNone
		if in.Type == types.TxPurchase {
			counter = model.CounterPurchased
		}
		if err := s.db.CreditBalance(ctx, in.UserID, in.TokenID, in.Amount, counter); err != nil {
			return fmt.Errorf("failed to credit balance: %w", err)
		}
	case in.Type.Debits():
		if err := s.db.DebitBalance(ctx, in.UserID, in.TokenID, in.Amount, model.CounterNone); err != nil {
			if db.IsPreconditionFailedError(err) {
				return s.insufficientBalance(ctx, in.UserID, in.TokenID, in.Amount)
			}
			return fmt.Errorf("failed to debit balance: %w", err)
		}
	}
	return nil
}

// insufficientBalance builds the typed error with the actual available
// amount for the caller's message.
func (s *Service) insufficientBalance(ctx context.Context, userID, tokenID string, requested int64) error {
	var available int64
	if balance, err := s.db.GetBalance(ctx, userID, tokenID); err == nil {
		available = balance.AvailableBalance()
	}
	return &types.InsufficientBalanceError{
		UserID:    userID,
		TokenID:   tokenID,
		Requested: requested,
		Available: available,
	}
}

// PurchaseInput records a share purchase settled by the external payment
// provider.
type PurchaseInput struct {
	UserID           string
	TokenID          string
	Amount           int64
	PaymentReference string
}

// RecordPurchase verifies the payment reference with the collaborator
// before any mutation, then credits the buyer.
func (s *Service) RecordPurchase(ctx context.Context, in PurchaseInput) (*model.Transaction, error) {
	if in.Amount <= 0 {
		return nil, &types.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if in.PaymentReference == "" {
		return nil, &types.ValidationError{Field: "paymentReference", Message: "must not be empty"}
	}

	// Collaborator call before taking any lock.
	verified, err := s.payment.IsPaymentVerified(ctx, in.PaymentReference)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, &types.PaymentNotConfirmedError{Reference: in.PaymentReference}
	}

	return s.RecordTransaction(ctx, TransactionInput{
		UserID:    in.UserID,
		TokenID:   in.TokenID,
		Type:      types.TxPurchase,
		Amount:    in.Amount,
		Reference: in.PaymentReference,
	})
}

func (s *Service) GetTransactions(
	ctx context.Context, filter model.TransactionFilter, limit, offset int64,
) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.db.GetTransactions(ctx, filter, limit, offset)
}

func validateTransactionInput(in TransactionInput) error {
	if in.UserID == "" {
		return &types.ValidationError{Field: "userId", Message: "must not be empty"}
	}
	if in.TokenID == "" {
		return &types.ValidationError{Field: "tokenId", Message: "must not be empty"}
	}
	if in.Type == "" {
		return &types.ValidationError{Field: "type", Message: "must not be empty"}
	}
	// BURN may carry a zero amount (a no-op audit row); everything else
	// must move value.
	if in.Type == types.TxBurn {
		if in.Amount < 0 {
			return &types.ValidationError{Field: "amount", Message: "must not be negative"}
		}
		return nil
	}
	if in.Amount <= 0 {
		return &types.ValidationError{Field: "amount", Message: "must be positive"}
	}
	return nil
}

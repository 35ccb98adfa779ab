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

// TransferInput moves tokens between two users of the same token.
type TransferInput struct {
	FromUserID string
	ToUserID   string
	TokenID    string
	Amount     int64
	Reference  string
}

// TransferResult carries both legs of a completed transfer.
type TransferResult struct {
	OutTransaction *model.Transaction
	InTransaction  *model.Transaction
}

// Transfer debits the sender and credits the receiver, recording a
// TRANSFER_OUT and a TRANSFER_IN row sharing one reference. Both balance
// keys are held for the duration; LockAll orders them so two opposing
// transfers cannot deadlock.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	if err := validateTransferInput(in); err != nil {
		return nil, err
	}

	fromKey := balanceKey(in.FromUserID, in.TokenID)
	toKey := balanceKey(in.ToUserID, in.TokenID)
	s.locks.LockAll(fromKey, toKey)
	defer s.locks.UnlockAll(fromKey, toKey)

	result, err := s.transferLocked(ctx, in)
	metrics.RecordLedgerOp("Transfer", err != nil)
	return result, err
}

func (s *Service) transferLocked(ctx context.Context, in TransferInput) (*TransferResult, error) {
	if err := s.db.DebitBalance(
		ctx, in.FromUserID, in.TokenID, in.Amount, model.CounterSent,
	); err != nil {
		if db.IsPreconditionFailedError(err) {
			return nil, s.insufficientBalance(ctx, in.FromUserID, in.TokenID, in.Amount)
		}
		return nil, fmt.Errorf("failed to debit sender: %w", err)
	}

	if err := s.db.CreditBalance(
		ctx, in.ToUserID, in.TokenID, in.Amount, model.CounterReceived,
	); err != nil {
		// Return the debited amount so the sender is not left short.
		if compErr := s.db.CreditBalance(
			ctx, in.FromUserID, in.TokenID, in.Amount, model.CounterNone,
		); compErr != nil {
			log.Ctx(ctx).Error().Err(compErr).
				Str("from_user_id", in.FromUserID).
				Str("token_id", in.TokenID).
				Int64("amount", in.Amount).
				Msg("failed to compensate sender after credit failure")
		}
		return nil, fmt.Errorf("failed to credit receiver: %w", err)
	}

	reference := in.Reference
	if reference == "" {
		reference = uuid.NewString()
	}
	now := time.Now().UTC()

	outTx := &model.Transaction{
		ID:         uuid.NewString(),
		UserID:     in.FromUserID,
		TokenID:    in.TokenID,
		Type:       types.TxTransferOut,
		Status:     types.TxConfirmed,
		Amount:     in.Amount,
		FromUserID: in.FromUserID,
		ToUserID:   in.ToUserID,
		Reference:  reference,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	inTx := &model.Transaction{
		ID:         uuid.NewString(),
		UserID:     in.ToUserID,
		TokenID:    in.TokenID,
		Type:       types.TxTransferIn,
		Status:     types.TxConfirmed,
		Amount:     in.Amount,
		FromUserID: in.FromUserID,
		ToUserID:   in.ToUserID,
		Reference:  reference,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.db.SaveTransaction(ctx, outTx); err != nil {
		s.reverseTransfer(ctx, in)
		return nil, fmt.Errorf("failed to save transfer-out transaction: %w", err)
	}
	if err := s.db.SaveTransaction(ctx, inTx); err != nil {
		// The out row is already durable; supersede it so replay does
		// not count a debit whose balance move is being reversed.
		if statusErr := s.db.UpdateTransactionStatus(
			ctx, outTx.ID,
			[]types.TransactionStatus{types.TxConfirmed}, types.TxFailed,
		); statusErr != nil {
			log.Ctx(ctx).Error().Err(statusErr).
				Str("transaction_id", outTx.ID).
				Msg("failed to supersede transfer-out transaction")
		}
		s.reverseTransfer(ctx, in)
		return nil, fmt.Errorf("failed to save transfer-in transaction: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("from_user_id", in.FromUserID).
		Str("to_user_id", in.ToUserID).
		Str("token_id", in.TokenID).
		Int64("amount", in.Amount).
		Msg("completed transfer")

	return &TransferResult{OutTransaction: outTx, InTransaction: inTx}, nil
}

// reverseTransfer undoes both balance legs after a step past them
// failed. Runs under the same locks as the forward path, so the moved
// amount is still on the receiver's balance.
func (s *Service) reverseTransfer(ctx context.Context, in TransferInput) {
	if err := s.db.DebitBalance(
		ctx, in.ToUserID, in.TokenID, in.Amount, model.CounterNone,
	); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("to_user_id", in.ToUserID).
			Str("token_id", in.TokenID).
			Int64("amount", in.Amount).
			Msg("failed to debit receiver while reversing transfer")
	}
	if err := s.db.CreditBalance(
		ctx, in.FromUserID, in.TokenID, in.Amount, model.CounterNone,
	); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("from_user_id", in.FromUserID).
			Str("token_id", in.TokenID).
			Int64("amount", in.Amount).
			Msg("failed to credit sender while reversing transfer")
	}
}

func validateTransferInput(in TransferInput) error {
	if in.FromUserID == "" {
		return &types.ValidationError{Field: "fromUserId", Message: "must not be empty"}
	}
	if in.ToUserID == "" {
		return &types.ValidationError{Field: "toUserId", Message: "must not be empty"}
	}
	if in.FromUserID == in.ToUserID {
		return &types.ValidationError{Field: "toUserId", Message: "must differ from sender"}
	}
	if in.TokenID == "" {
		return &types.ValidationError{Field: "tokenId", Message: "must not be empty"}
	}
	if in.Amount <= 0 {
		return &types.ValidationError{Field: "amount", Message: "must be positive"}
	}
	return nil
}

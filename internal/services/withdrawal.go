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
	"github.com/bookledger-io/equity-ledger/internal/queue"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

// WithdrawalInput requests an on-chain withdrawal. The amount is
// reserved immediately so it cannot be double-spent while the request
// waits for approval.
type WithdrawalInput struct {
	UserID      string
	TokenID     string
	Amount      int64
	Destination string
}

func (s *Service) RequestWithdrawal(ctx context.Context, in WithdrawalInput) (*model.WithdrawalRequest, error) {
	if in.UserID == "" {
		return nil, &types.ValidationError{Field: "userId", Message: "must not be empty"}
	}
	if in.TokenID == "" {
		return nil, &types.ValidationError{Field: "tokenId", Message: "must not be empty"}
	}
	if in.Amount <= 0 {
		return nil, &types.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if in.Destination == "" {
		return nil, &types.ValidationError{Field: "destination", Message: "must not be empty"}
	}

	key := balanceKey(in.UserID, in.TokenID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if err := s.db.ReserveBalance(ctx, in.UserID, in.TokenID, in.Amount); err != nil {
		if db.IsPreconditionFailedError(err) {
			return nil, s.insufficientBalance(ctx, in.UserID, in.TokenID, in.Amount)
		}
		return nil, fmt.Errorf("failed to reserve withdrawal amount: %w", err)
	}

	now := time.Now().UTC()
	req := &model.WithdrawalRequest{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		TokenID:     in.TokenID,
		Amount:      in.Amount,
		Destination: in.Destination,
		State:       types.WithdrawalPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.SaveWithdrawalRequest(ctx, req); err != nil {
		if relErr := s.db.ReleaseReservation(ctx, in.UserID, in.TokenID, in.Amount); relErr != nil {
			log.Ctx(ctx).Error().Err(relErr).
				Str("user_id", in.UserID).
				Str("token_id", in.TokenID).
				Msg("failed to release reservation after withdrawal save failure")
		}
		return nil, fmt.Errorf("failed to save withdrawal request: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("request_id", req.ID).
		Str("user_id", in.UserID).
		Int64("amount", in.Amount).
		Msg("created withdrawal request")
	return req, nil
}

func (s *Service) ApproveWithdrawal(ctx context.Context, requestID string) error {
	return s.transitionWithdrawal(ctx, requestID, types.WithdrawalApproved, "", "")
}

// RejectWithdrawal moves a pending request to REJECTED and returns the
// reserved amount to the holder.
func (s *Service) RejectWithdrawal(ctx context.Context, requestID, reason string) error {
	req, err := s.db.GetWithdrawalRequest(ctx, requestID)
	if err != nil {
		if db.IsNotFoundError(err) {
			return &types.InvalidStateTransitionError{
				Entity: "withdrawal",
				To:     types.WithdrawalRejected.String(),
				Reason: "withdrawal request not found",
			}
		}
		return fmt.Errorf("failed to get withdrawal request: %w", err)
	}

	if err := s.transitionWithdrawal(ctx, requestID, types.WithdrawalRejected, reason, ""); err != nil {
		return err
	}

	if err := s.db.ReleaseReservation(ctx, req.UserID, req.TokenID, req.Amount); err != nil {
		return fmt.Errorf("failed to release rejected withdrawal reservation: %w", err)
	}
	s.publishWithdrawalEvent(ctx, req, types.WithdrawalRejected)
	return nil
}

// ExecuteWithdrawal broadcasts the signed transaction for an approved
// request. The chain call happens while the request sits in EXECUTING so
// a crash between broadcast and settlement is visible and resumable.
func (s *Service) ExecuteWithdrawal(ctx context.Context, requestID, rawTx string) (string, error) {
	if err := s.transitionWithdrawal(ctx, requestID, types.WithdrawalExecuting, "", ""); err != nil {
		return "", err
	}

	txID, err := s.chain.Broadcast(ctx, rawTx)
	if err != nil {
		if settleErr := s.SettleWithdrawal(ctx, requestID, false, "", err.Error()); settleErr != nil {
			log.Ctx(ctx).Error().Err(settleErr).
				Str("request_id", requestID).
				Msg("failed to settle withdrawal after broadcast failure")
		}
		return "", err
	}

	if err := s.db.UpdateWithdrawalState(
		ctx, requestID,
		[]types.WithdrawalState{types.WithdrawalExecuting},
		types.WithdrawalExecuting, "", txID,
	); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("request_id", requestID).
			Str("txid", txID).
			Msg("failed to record broadcast txid")
	}

	log.Ctx(ctx).Info().
		Str("request_id", requestID).
		Str("txid", txID).
		Msg("broadcast withdrawal")
	return txID, nil
}

// SettleWithdrawal finishes an EXECUTING request: success finalizes the
// reservation (the tokens are gone) and records a WITHDRAWAL transaction;
// failure releases the reservation back to the holder.
func (s *Service) SettleWithdrawal(ctx context.Context, requestID string, success bool, txID, reason string) error {
	req, err := s.db.GetWithdrawalRequest(ctx, requestID)
	if err != nil {
		if db.IsNotFoundError(err) {
			return &types.InvalidStateTransitionError{
				Entity: "withdrawal",
				To:     types.WithdrawalCompleted.String(),
				Reason: "withdrawal request not found",
			}
		}
		return fmt.Errorf("failed to get withdrawal request: %w", err)
	}

	final := types.WithdrawalFailed
	if success {
		final = types.WithdrawalCompleted
	}
	if err := s.transitionWithdrawal(ctx, requestID, final, reason, txID); err != nil {
		return err
	}

	if success {
		// The row goes in PENDING before the reservation is finalized:
		// replay ignores it until the balance move lands, and a failure
		// at either step leaves no counted debit without its move.
		now := time.Now().UTC()
		tx := &model.Transaction{
			ID:        uuid.NewString(),
			UserID:    req.UserID,
			TokenID:   req.TokenID,
			Type:      types.TxWithdrawal,
			Status:    types.TxPending,
			Amount:    req.Amount,
			TxID:      txID,
			Reference: req.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.db.SaveTransaction(ctx, tx); err != nil {
			return fmt.Errorf("failed to save withdrawal transaction: %w", err)
		}
		if err := s.db.FinalizeReservation(ctx, req.UserID, req.TokenID, req.Amount); err != nil {
			if statusErr := s.db.UpdateTransactionStatus(
				ctx, tx.ID,
				[]types.TransactionStatus{types.TxPending}, types.TxFailed,
			); statusErr != nil {
				log.Ctx(ctx).Error().Err(statusErr).
					Str("transaction_id", tx.ID).
					Msg("failed to supersede withdrawal transaction after finalize failure")
			}
			return fmt.Errorf("failed to finalize withdrawal reservation: %w", err)
		}
		if err := s.db.UpdateTransactionStatus(
			ctx, tx.ID,
			[]types.TransactionStatus{types.TxPending}, types.TxConfirmed,
		); err != nil {
			return fmt.Errorf("failed to confirm withdrawal transaction: %w", err)
		}
	} else {
		if err := s.db.ReleaseReservation(ctx, req.UserID, req.TokenID, req.Amount); err != nil {
			return fmt.Errorf("failed to release failed withdrawal reservation: %w", err)
		}
	}

	s.publishWithdrawalEvent(ctx, req, final)
	metrics.RecordLedgerOp("SettleWithdrawal", !success)

	log.Ctx(ctx).Info().
		Str("request_id", requestID).
		Str("final_state", final.String()).
		Msg("settled withdrawal")
	return nil
}

func (s *Service) GetWithdrawalsByUser(ctx context.Context, userID string) ([]model.WithdrawalRequest, error) {
	return s.db.GetWithdrawalsByUser(ctx, userID)
}

func (s *Service) transitionWithdrawal(
	ctx context.Context, requestID string, newState types.WithdrawalState, reason, txID string,
) error {
	qualified := types.QualifiedStatesForWithdrawalTransition(newState)
	if err := s.db.UpdateWithdrawalState(ctx, requestID, qualified, newState, reason, txID); err != nil {
		if db.IsNotFoundError(err) {
			return s.withdrawalTransitionError(ctx, requestID, newState)
		}
		return fmt.Errorf("failed to transition withdrawal to %s: %w", newState, err)
	}
	return nil
}

// withdrawalTransitionError distinguishes "not found" from "wrong
// current state" for the caller's message.
func (s *Service) withdrawalTransitionError(
	ctx context.Context, requestID string, newState types.WithdrawalState,
) error {
	req, err := s.db.GetWithdrawalRequest(ctx, requestID)
	if err != nil {
		return &types.InvalidStateTransitionError{
			Entity: "withdrawal",
			To:     newState.String(),
			Reason: "withdrawal request not found",
		}
	}
	reason := "current state is not qualified"
	if req.State.IsTerminal() {
		reason = "withdrawal is already terminal"
	}
	return &types.InvalidStateTransitionError{
		Entity: "withdrawal",
		From:   req.State.String(),
		To:     newState.String(),
		Reason: reason,
	}
}

func (s *Service) publishWithdrawalEvent(ctx context.Context, req *model.WithdrawalRequest, final types.WithdrawalState) {
	if s.events == nil {
		return
	}
	event := queue.WithdrawalEvent{
		EventType: queue.WithdrawalSettledEventType,
		RequestID: req.ID,
		UserID:    req.UserID,
		TokenID:   req.TokenID,
		Amount:    req.Amount,
		Final:     final.String(),
	}
	if err := s.events.Publish(ctx, queue.WithdrawalSettledEventType, event); err != nil {
		metrics.IncQueueSendError()
		log.Ctx(ctx).Error().Err(err).
			Str("request_id", req.ID).
			Msg("failed to publish withdrawal event")
	}
}

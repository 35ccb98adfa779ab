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

// StakeInput creates a stake intent against tokens the user already
// holds. The amount is reserved immediately; the stake only becomes
// dividend-eligible once its on-chain deposit confirms.
type StakeInput struct {
	UserID      string
	TokenID     string
	Amount      int64
	DepositTxID string
}

func (s *Service) CreateStake(ctx context.Context, in StakeInput) (*model.Stake, error) {
	if in.UserID == "" {
		return nil, &types.ValidationError{Field: "userId", Message: "must not be empty"}
	}
	if in.TokenID == "" {
		return nil, &types.ValidationError{Field: "tokenId", Message: "must not be empty"}
	}
	if in.Amount <= 0 {
		return nil, &types.ValidationError{Field: "amount", Message: "must be positive"}
	}

	key := balanceKey(in.UserID, in.TokenID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if err := s.db.ReserveBalance(ctx, in.UserID, in.TokenID, in.Amount); err != nil {
		if db.IsPreconditionFailedError(err) {
			return nil, s.insufficientBalance(ctx, in.UserID, in.TokenID, in.Amount)
		}
		return nil, fmt.Errorf("failed to reserve staked amount: %w", err)
	}

	now := time.Now().UTC()
	stake := &model.Stake{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		TokenID:         in.TokenID,
		Amount:          in.Amount,
		State:           types.StakePendingDeposit,
		DepositTxID:     in.DepositTxID,
		DepositDeadline: now.Add(s.cfg.Chain.DepositWindow),
		StakedAt:        now,
	}
	if err := s.db.SaveNewStake(ctx, stake); err != nil {
		if relErr := s.db.ReleaseReservation(ctx, in.UserID, in.TokenID, in.Amount); relErr != nil {
			log.Ctx(ctx).Error().Err(relErr).
				Str("user_id", in.UserID).
				Str("token_id", in.TokenID).
				Msg("failed to release reservation after stake save failure")
		}
		return nil, fmt.Errorf("failed to save stake: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("stake_id", stake.ID).
		Str("user_id", in.UserID).
		Int64("amount", in.Amount).
		Msg("created stake, awaiting deposit confirmation")
	return stake, nil
}

// ConfirmStake flips a pending stake to CONFIRMED once its deposit has
// enough confirmations. Confirmation moves no balance; the reservation
// made at creation stays in place. A confirmation arriving after the
// deposit deadline is rejected and the stake marked expired.
func (s *Service) ConfirmStake(ctx context.Context, stakeID string) (*model.Stake, error) {
	stake, err := s.db.GetStakeByID(ctx, stakeID)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, &types.InvalidStakeStatusError{
				StakeID: stakeID,
				Reason:  "stake not found",
			}
		}
		return nil, fmt.Errorf("failed to get stake: %w", err)
	}
	if stake.State != types.StakePendingDeposit {
		return nil, stakeStatusError(stake, "only a pending stake can be confirmed")
	}

	// Collaborator call first; no lock is held here.
	confirmed, err := s.chain.IsConfirmed(ctx, stake.DepositTxID, s.cfg.Chain.MinConfirmations)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, &types.InvalidStakeStatusError{
			StakeID: stakeID,
			Current: stake.State,
			Reason:  "deposit transaction does not have enough confirmations",
		}
	}

	now := time.Now().UTC()
	if now.After(stake.DepositDeadline) {
		if markErr := s.db.MarkStakeSubState(ctx, stakeID, types.SubStateDepositExpired); markErr != nil {
			log.Ctx(ctx).Error().Err(markErr).
				Str("stake_id", stakeID).
				Msg("failed to mark expired stake")
		}
		s.publishStakeEvent(ctx, queue.StakeDepositExpiredType, stake)
		return nil, &types.InvalidStakeStatusError{
			StakeID: stakeID,
			Current: stake.State,
			Reason:  "deposit confirmation arrived after the deadline",
		}
	}

	if err := s.db.UpdateStakeState(
		ctx, stakeID, types.QualifiedStatesForConfirm(),
		types.StakeConfirmed, "confirmed_at", now,
	); err != nil {
		if db.IsNotFoundError(err) {
			// Lost the race with a concurrent confirm or expiry.
			return nil, s.stakeStatusErrorFromDb(ctx, stakeID)
		}
		return nil, fmt.Errorf("failed to confirm stake: %w", err)
	}
	stake.State = types.StakeConfirmed
	stake.ConfirmedAt = &now

	entry := &model.CapTableEntry{
		StakeID:      stake.ID,
		HolderUserID: stake.UserID,
		TokenID:      stake.TokenID,
		Amount:       stake.Amount,
		Status:       model.CapEntryActive,
	}
	if err := s.db.UpsertCapTableEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to upsert cap table entry: %w", err)
	}
	if err := s.RebuildCapTable(ctx, stake.TokenID); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("token_id", stake.TokenID).
			Msg("failed to rebuild cap table after confirm")
	}

	s.publishStakeEvent(ctx, queue.StakeConfirmedEventType, stake)
	metrics.RecordLedgerOp("ConfirmStake", false)

	log.Ctx(ctx).Info().
		Str("stake_id", stake.ID).
		Str("user_id", stake.UserID).
		Msg("confirmed stake")
	return stake, nil
}

// Unstake transitions an exactly-CONFIRMED stake to UNSTAKED, removes
// its cap table entry and releases the reserved amount back to the
// holder's available balance. Accrued dividends are untouched and stay
// claimable.
func (s *Service) Unstake(ctx context.Context, stakeID string) (*model.Stake, error) {
	stake, err := s.db.GetStakeByID(ctx, stakeID)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, &types.InvalidStakeStatusError{
				StakeID: stakeID,
				Reason:  "stake not found",
			}
		}
		return nil, fmt.Errorf("failed to get stake: %w", err)
	}

	now := time.Now().UTC()
	if err := s.db.UpdateStakeState(
		ctx, stakeID, types.QualifiedStatesForUnstake(),
		types.StakeUnstaked, "unstaked_at", now,
	); err != nil {
		if db.IsNotFoundError(err) {
			return nil, stakeStatusError(stake, unstakeRejectionReason(stake.State))
		}
		return nil, fmt.Errorf("failed to unstake: %w", err)
	}

	if err := s.releaseUnstakedAmount(ctx, stake); err != nil {
		// Steps after the transition must all apply or none. Put the
		// stake back to CONFIRMED, clearing the timestamp the failed
		// transition stamped, before surfacing the failure.
		if revertErr := s.db.RevertStakeState(
			ctx, stakeID, types.StakeUnstaked, types.StakeConfirmed, "unstaked_at",
		); revertErr != nil {
			log.Ctx(ctx).Error().Err(revertErr).
				Str("stake_id", stakeID).
				Msg("failed to revert stake state after unstake failure")
		}
		metrics.RecordLedgerOp("Unstake", true)
		return nil, err
	}

	stake.State = types.StakeUnstaked
	stake.UnstakedAt = &now
	s.publishStakeEvent(ctx, queue.StakeUnstakedEventType, stake)
	metrics.RecordLedgerOp("Unstake", false)

	log.Ctx(ctx).Info().
		Str("stake_id", stake.ID).
		Str("user_id", stake.UserID).
		Int64("amount", stake.Amount).
		Int64("dividends_accumulated", stake.DividendsAccumulated).
		Msg("unstaked")
	return stake, nil
}

// releaseUnstakedAmount performs the cap-table removal and balance
// release as a pair, compensating the removal if the release fails.
func (s *Service) releaseUnstakedAmount(ctx context.Context, stake *model.Stake) error {
	if err := s.db.RemoveCapTableEntry(ctx, stake.ID); err != nil {
		return fmt.Errorf("failed to remove cap table entry: %w", err)
	}

	if err := s.db.ReleaseReservation(ctx, stake.UserID, stake.TokenID, stake.Amount); err != nil {
		if restoreErr := s.db.RestoreCapTableEntry(ctx, stake.ID); restoreErr != nil {
			log.Ctx(ctx).Error().Err(restoreErr).
				Str("stake_id", stake.ID).
				Msg("failed to restore cap table entry after release failure")
		}
		return fmt.Errorf("failed to release staked amount: %w", err)
	}

	if err := s.RebuildCapTable(ctx, stake.TokenID); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("token_id", stake.TokenID).
			Msg("failed to rebuild cap table after unstake")
	}
	return nil
}

func (s *Service) GetStakesByUser(ctx context.Context, userID string) ([]model.Stake, error) {
	return s.db.GetStakesByUser(ctx, userID)
}

// GetAccruedDividends sums the dividend amounts accrued onto the user's
// stakes over their lifetime, in minor units.
func (s *Service) GetAccruedDividends(ctx context.Context, userID string) (int64, error) {
	stakes, err := s.db.GetStakesByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get stakes: %w", err)
	}
	var total int64
	for _, stake := range stakes {
		total += stake.DividendsAccumulated
	}
	return total, nil
}

func (s *Service) publishStakeEvent(ctx context.Context, eventType queue.EventType, stake *model.Stake) {
	if s.events == nil {
		return
	}
	event := queue.StakeEvent{
		EventType: eventType,
		StakeID:   stake.ID,
		UserID:    stake.UserID,
		TokenID:   stake.TokenID,
		Amount:    stake.Amount,
	}
	if err := s.events.Publish(ctx, eventType, event); err != nil {
		metrics.IncQueueSendError()
		log.Ctx(ctx).Error().Err(err).
			Str("event_type", eventType.String()).
			Str("stake_id", stake.ID).
			Msg("failed to publish stake event")
	}
}

// stakeStatusErrorFromDb re-fetches the stake to build a meaningful
// rejection after a guarded transition found no qualifying document.
func (s *Service) stakeStatusErrorFromDb(ctx context.Context, stakeID string) error {
	stake, err := s.db.GetStakeByID(ctx, stakeID)
	if err != nil {
		return &types.InvalidStakeStatusError{
			StakeID: stakeID,
			Reason:  "stake not found",
		}
	}
	return stakeStatusError(stake, "current state is not qualified")
}

func stakeStatusError(stake *model.Stake, reason string) error {
	return &types.InvalidStakeStatusError{
		StakeID: stake.ID,
		Current: stake.State,
		Reason:  reason,
	}
}

func unstakeRejectionReason(state types.StakeState) string {
	switch state {
	case types.StakePendingDeposit:
		return "stake deposit is not confirmed yet"
	case types.StakeUnstaked:
		return "stake is already unstaked"
	default:
		return "current state is not qualified for unstaking"
	}
}

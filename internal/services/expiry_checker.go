package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bookledger-io/equity-ledger/internal/observability/metrics"
	"github.com/bookledger-io/equity-ledger/internal/queue"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

// checkExpiredStakes marks pending stakes whose deposit deadline has
// passed. Expired stakes stay PENDING_DEPOSIT; the sub state and the
// published event make the overdue deposit visible for follow-up rather
// than silently retrying.
func (s *Service) checkExpiredStakes(ctx context.Context) error {
	stakes, err := s.db.FindExpiredPendingStakes(
		ctx, time.Now().UTC(), s.cfg.Poller.ExpiredStakesLimit,
	)
	if err != nil {
		return fmt.Errorf("failed to find expired pending stakes: %w", err)
	}
	metrics.RecordExpiredStakesCount(len(stakes))
	if len(stakes) == 0 {
		return nil
	}

	for i := range stakes {
		stake := &stakes[i]
		if err := s.db.MarkStakeSubState(ctx, stake.ID, types.SubStateDepositExpired); err != nil {
			log.Ctx(ctx).Error().Err(err).
				Str("stake_id", stake.ID).
				Msg("failed to mark stake deposit expired")
			continue
		}
		s.publishStakeEvent(ctx, queue.StakeDepositExpiredType, stake)
		log.Ctx(ctx).Warn().
			Str("stake_id", stake.ID).
			Str("user_id", stake.UserID).
			Time("deposit_deadline", stake.DepositDeadline).
			Msg("stake deposit deadline passed without confirmation")
	}
	return nil
}

package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bookledger-io/equity-ledger/internal/db"
	"github.com/bookledger-io/equity-ledger/internal/db/model"
	"github.com/bookledger-io/equity-ledger/internal/dividend"
	"github.com/bookledger-io/equity-ledger/internal/observability/metrics"
	"github.com/bookledger-io/equity-ledger/internal/queue"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

// SnapshotHolders builds the distribution input snapshot from confirmed
// stakes, aggregated per holder. The payout handle comes from the
// holder's derived wallet when one is linked.
func (s *Service) SnapshotHolders(ctx context.Context, tokenID string) ([]dividend.Holder, error) {
	stakes, err := s.db.GetConfirmedStakes(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmed stakes: %w", err)
	}

	byUser := make(map[string]int64)
	for _, stake := range stakes {
		byUser[stake.UserID] += stake.Amount
	}

	holders := make([]dividend.Holder, 0, len(byUser))
	for userID, balance := range byUser {
		holder := dividend.Holder{UserID: userID, Balance: balance}
		wallet, err := s.db.GetWalletByUserID(ctx, userID)
		if err != nil {
			if !db.IsNotFoundError(err) {
				return nil, fmt.Errorf("failed to get wallet for holder %s: %w", userID, err)
			}
		} else {
			holder.PayoutHandle = wallet.Handle
		}
		holders = append(holders, holder)
	}
	// Map iteration order is random; snapshots must be reproducible.
	sort.Slice(holders, func(i, j int) bool {
		return holders[i].UserID < holders[j].UserID
	})
	return holders, nil
}

// DistributionRequest is the operator-facing input for a payout run.
// Amounts are in the currency's minor unit.
type DistributionRequest struct {
	TokenID         string
	Currency        string
	TotalAmount     int64
	MinPayment      int64
	IncludeUnlinked bool
}

// CalculateAndStore snapshots the current confirmed stakes, computes the
// distribution and persists it. The stored distribution is immutable;
// paying it out is ExecuteDistribution.
func (s *Service) CalculateAndStore(ctx context.Context, req DistributionRequest) (*model.DividendDistribution, error) {
	holders, err := s.SnapshotHolders(ctx, req.TokenID)
	if err != nil {
		return nil, err
	}

	dist, err := dividend.CalculateDistribution(dividend.DistributionInput{
		TokenID:         req.TokenID,
		Currency:        req.Currency,
		TotalAmount:     req.TotalAmount,
		MinPayment:      req.MinPayment,
		Holders:         holders,
		IncludeUnlinked: req.IncludeUnlinked,
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.SaveDistribution(ctx, dist); err != nil {
		return nil, fmt.Errorf("failed to save distribution: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("distribution_id", dist.ID).
		Str("token_id", dist.TokenID).
		Int64("total_distributed", dist.TotalDistributed).
		Int64("below_threshold", dist.BelowThreshold).
		Int("payment_count", len(dist.Payments)).
		Msg("calculated distribution")
	return dist, nil
}

// ExecuteDistribution pays out a stored distribution. Execution is
// idempotent per (distribution, holder): the unique index on dividend
// transactions makes a second run skip holders already paid. Payout is
// gated on the KYC collaborator per holder; unverified holders are
// skipped and reported, not failed.
func (s *Service) ExecuteDistribution(ctx context.Context, distributionID string) error {
	start := time.Now()
	err := s.executeDistribution(ctx, distributionID)
	metrics.RecordDividendRunDuration(time.Since(start), err != nil)
	return err
}

func (s *Service) executeDistribution(ctx context.Context, distributionID string) error {
	dist, err := s.db.GetDistributionByID(ctx, distributionID)
	if err != nil {
		if db.IsNotFoundError(err) {
			return &types.ValidationError{
				Field:   "distributionId",
				Message: "distribution not found",
			}
		}
		return fmt.Errorf("failed to get distribution: %w", err)
	}

	var paid int64
	var paidCount, skipped int
	for _, payment := range dist.Payments {
		ok, err := s.payDistributionHolder(ctx, dist, payment)
		if err != nil {
			return err
		}
		if ok {
			paid += payment.Amount
			paidCount++
		} else {
			skipped++
		}
	}

	s.publishDividendEvent(ctx, dist, paid, paidCount)

	log.Ctx(ctx).Info().
		Str("distribution_id", dist.ID).
		Int("paid", paidCount).
		Int("skipped", skipped).
		Int64("total_paid", paid).
		Msg("executed distribution")
	return nil
}

// payDistributionHolder records one holder's dividend transaction and
// accrues the amount onto their confirmed stakes. Returns false when the
// holder was skipped (already paid or not KYC-verified).
func (s *Service) payDistributionHolder(
	ctx context.Context, dist *model.DividendDistribution, payment model.DividendPayment,
) (bool, error) {
	verified, err := s.kyc.IsVerified(ctx, payment.UserID)
	if err != nil {
		return false, err
	}
	if !verified {
		log.Ctx(ctx).Warn().
			Str("distribution_id", dist.ID).
			Str("user_id", payment.UserID).
			Msg("skipping dividend payment, holder is not KYC verified")
		return false, nil
	}

	now := time.Now().UTC()
	tx := &model.Transaction{
		ID:             uuid.NewString(),
		UserID:         payment.UserID,
		TokenID:        dist.TokenID,
		Type:           types.TxDividend,
		Status:         types.TxConfirmed,
		Amount:         payment.Amount,
		DistributionID: dist.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.db.SaveTransaction(ctx, tx); err != nil {
		if db.IsDuplicateKeyError(err) {
			// Already paid by a previous run.
			return false, nil
		}
		return false, fmt.Errorf("failed to save dividend transaction: %w", err)
	}

	if err := s.accrueToStakes(ctx, dist.TokenID, payment.UserID, payment.Amount); err != nil {
		return false, err
	}
	return true, nil
}

// accrueToStakes spreads a holder's dividend across their confirmed
// stakes pro-rata by stake amount, with the rounding remainder on the
// first stake, and mirrors the amounts into the cap table.
func (s *Service) accrueToStakes(ctx context.Context, tokenID, userID string, amount int64) error {
	stakes, err := s.db.GetStakesByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get stakes for accrual: %w", err)
	}

	var confirmed []model.Stake
	var totalStaked int64
	for _, stake := range stakes {
		if stake.TokenID == tokenID && stake.State == types.StakeConfirmed {
			confirmed = append(confirmed, stake)
			totalStaked += stake.Amount
		}
	}
	if len(confirmed) == 0 || totalStaked == 0 {
		// The holder unstaked between snapshot and execution; the
		// payment stands, there is just no live stake to accrue onto.
		log.Ctx(ctx).Warn().
			Str("user_id", userID).
			Str("token_id", tokenID).
			Msg("no confirmed stakes left to accrue dividend onto")
		return nil
	}

	shares := make([]int64, len(confirmed))
	var assigned int64
	for i, stake := range confirmed {
		shares[i] = amount * stake.Amount / totalStaked
		assigned += shares[i]
	}
	shares[0] += amount - assigned

	for i, stake := range confirmed {
		if shares[i] == 0 {
			continue
		}
		if err := s.db.AccrueDividends(ctx, stake.ID, shares[i]); err != nil {
			if db.IsNotFoundError(err) {
				// Unstaked mid-run; the guard kept the accrual off.
				continue
			}
			return fmt.Errorf("failed to accrue dividends on stake %s: %w", stake.ID, err)
		}
		if err := s.db.RecordCapTableDividend(ctx, stake.ID, shares[i]); err != nil {
			log.Ctx(ctx).Error().Err(err).
				Str("stake_id", stake.ID).
				Msg("failed to record cap table dividend")
		}
	}
	return nil
}

// GetDistributionsForUser lists the distributions containing a payment
// addressed to the user, executed or not.
func (s *Service) GetDistributionsForUser(ctx context.Context, userID string) ([]model.DividendDistribution, error) {
	return s.db.GetDistributionsForUser(ctx, userID)
}

// PendingDividend is a calculated payment the holder has not been paid
// under yet. Amount is in the distribution currency's minor unit.
type PendingDividend struct {
	DistributionID string
	TokenID        string
	Currency       string
	Amount         int64
}

// GetPendingDividends lists the per-distribution payments addressed to
// the user that no execution run has paid out so far.
func (s *Service) GetPendingDividends(ctx context.Context, userID string) ([]PendingDividend, error) {
	dists, err := s.db.GetDistributionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get distributions: %w", err)
	}
	executed, err := s.db.GetExecutedDistributionIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get executed distributions: %w", err)
	}

	var pending []PendingDividend
	for _, dist := range dists {
		if _, done := executed[dist.ID]; done {
			continue
		}
		for _, payment := range dist.Payments {
			if payment.UserID != userID {
				continue
			}
			pending = append(pending, PendingDividend{
				DistributionID: dist.ID,
				TokenID:        dist.TokenID,
				Currency:       dist.Currency,
				Amount:         payment.Amount,
			})
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].DistributionID < pending[j].DistributionID
	})
	return pending, nil
}

func (s *Service) publishDividendEvent(ctx context.Context, dist *model.DividendDistribution, totalPaid int64, paymentCount int) {
	if s.events == nil {
		return
	}
	event := queue.DividendEvent{
		EventType:      queue.DividendExecutedEventType,
		DistributionID: dist.ID,
		TokenID:        dist.TokenID,
		Currency:       dist.Currency,
		TotalPaid:      totalPaid,
		PaymentCount:   paymentCount,
	}
	if err := s.events.Publish(ctx, queue.DividendExecutedEventType, event); err != nil {
		metrics.IncQueueSendError()
		log.Ctx(ctx).Error().Err(err).
			Str("distribution_id", dist.ID).
			Msg("failed to publish dividend event")
	}
}

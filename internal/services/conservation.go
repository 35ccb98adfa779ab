package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
)

// ConservationMismatch is one (user, token) balance whose replayed value
// disagrees with the live document.
type ConservationMismatch struct {
	UserID   string
	Live     int64
	Replayed int64
}

// ConservationReport is the outcome of a full conservation check over
// one token.
type ConservationReport struct {
	TokenID     string
	TotalHeld   int64
	TotalSupply int64
	Mismatches  []ConservationMismatch
}

func (r *ConservationReport) Ok() bool {
	return len(r.Mismatches) == 0 && r.TotalHeld <= r.TotalSupply
}

// VerifyConservation replays the confirmed transaction log for every
// holder of a token and compares the result to the live balance plus its
// outstanding reservation. It also checks that the total held never
// exceeds the token's supply. Mismatches are reported, never repaired.
func (s *Service) VerifyConservation(ctx context.Context, tokenID string) (*ConservationReport, error) {
	token, err := s.db.GetTokenByID(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	balances, err := s.db.ListBalancesByToken(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}

	report := &ConservationReport{
		TokenID:     tokenID,
		TotalSupply: token.TotalSupply,
	}
	for _, balance := range balances {
		live := balance.Balance + balance.PendingOut
		report.TotalHeld += live

		replayed, err := s.db.ReplayBalance(ctx, balance.UserID, tokenID)
		if err != nil {
			return nil, fmt.Errorf("failed to replay balance for %s: %w", balance.UserID, err)
		}
		if replayed != live {
			report.Mismatches = append(report.Mismatches, ConservationMismatch{
				UserID:   balance.UserID,
				Live:     live,
				Replayed: replayed,
			})
		}
	}

	if !report.Ok() {
		log.Ctx(ctx).Error().
			Str("token_id", tokenID).
			Int64("total_held", report.TotalHeld).
			Int64("total_supply", report.TotalSupply).
			Int("mismatches", len(report.Mismatches)).
			Msg("conservation check failed")
	}
	return report, nil
}

func (s *Service) GetToken(ctx context.Context, tokenID string) (*model.Token, error) {
	return s.db.GetTokenByID(ctx, tokenID)
}

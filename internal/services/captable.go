package services

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
)

// GetCapTable returns the active entries for a token with percentages as
// of the last rebuild.
func (s *Service) GetCapTable(ctx context.Context, tokenID string) ([]model.CapTableEntry, error) {
	return s.db.GetActiveCapTable(ctx, tokenID)
}

// RebuildCapTable recomputes every active entry's percentage of the
// total staked amount. The cap table is a projection over confirmed
// stakes; it can be rebuilt at any time and is never a source of truth.
func (s *Service) RebuildCapTable(ctx context.Context, tokenID string) error {
	entries, err := s.db.GetActiveCapTable(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("failed to get active cap table: %w", err)
	}

	var total int64
	for _, entry := range entries {
		total += entry.Amount
	}
	if total == 0 {
		return nil
	}

	totalDec := sdkmath.LegacyNewDec(total)
	for _, entry := range entries {
		percentage := sdkmath.LegacyNewDec(entry.Amount).
			MulInt64(100).
			Quo(totalDec)
		if err := s.db.UpdateCapTablePercentage(ctx, entry.StakeID, percentage.String()); err != nil {
			return fmt.Errorf("failed to update cap table percentage for %s: %w", entry.StakeID, err)
		}
	}
	return nil
}

package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bookledger-io/equity-ledger/internal/db"
	"github.com/bookledger-io/equity-ledger/internal/db/model"
	"github.com/bookledger-io/equity-ledger/internal/wallet"
)

// WalletInfo is what callers see of a stored wallet. It never carries
// key material.
type WalletInfo struct {
	UserID    string
	Handle    string
	Address   string
	PublicKey string
}

// LinkWallet derives the user's withdrawal wallet from their signature
// and stores only the encrypted export form. Re-linking with the same
// signature is idempotent; the derivation is deterministic.
func (s *Service) LinkWallet(ctx context.Context, userID, signature, handle string) (*WalletInfo, error) {
	derived, err := wallet.Derive(signature, handle)
	if err != nil {
		return nil, err
	}

	salt, err := wallet.NewSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate encryption salt: %w", err)
	}
	encrypted, err := wallet.EncryptWIF(derived.WIF, handle, s.cfg.Wallet.ServerSecret, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt wallet key: %w", err)
	}

	now := time.Now().UTC()
	record := &model.Wallet{
		UserID:         userID,
		Handle:         handle,
		Address:        derived.Address,
		PublicKey:      derived.PublicKey,
		EncryptedWIF:   encrypted,
		EncryptionSalt: hex.EncodeToString(salt),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.db.UpsertWallet(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store wallet: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("address", derived.Address).
		Msg("linked wallet")
	return &WalletInfo{
		UserID:    userID,
		Handle:    handle,
		Address:   derived.Address,
		PublicKey: derived.PublicKey,
	}, nil
}

func (s *Service) GetWallet(ctx context.Context, userID string) (*WalletInfo, error) {
	record, err := s.db.GetWalletByUserID(ctx, userID)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &WalletInfo{
		UserID:    record.UserID,
		Handle:    record.Handle,
		Address:   record.Address,
		PublicKey: record.PublicKey,
	}, nil
}

// ExportWIF re-derives the caller's private key from their signature and
// returns the plaintext WIF exactly when the derivation reproduces the
// stored address. A mismatched signature returns nil with no error; it
// is an expected outcome of the ownership check, not a failure.
func (s *Service) ExportWIF(ctx context.Context, userID, signature string) (*string, error) {
	record, err := s.db.GetWalletByUserID(ctx, userID)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	derived, err := wallet.Recover(signature, record.Handle, record.Address)
	if err != nil {
		return nil, err
	}
	if derived == nil {
		log.Ctx(ctx).Warn().
			Str("user_id", userID).
			Msg("wallet export rejected, signature does not reproduce stored address")
		return nil, nil
	}
	return &derived.WIF, nil
}

// VerifyWalletOwnership reports whether the signature reproduces the
// stored address for the user.
func (s *Service) VerifyWalletOwnership(ctx context.Context, userID, signature string) (bool, error) {
	record, err := s.db.GetWalletByUserID(ctx, userID)
	if err != nil {
		if db.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet.VerifyOwnership(signature, record.Handle, record.Address)
}

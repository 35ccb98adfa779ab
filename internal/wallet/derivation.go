package wallet

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/bookledger-io/equity-ledger/internal/types"
)

// derivationVersionTag keys the seed HMAC. Bumping it invalidates every
// derived wallet, so it never changes within a deployment.
const derivationVersionTag = "equity-wallet-v1"

const minSignatureLength = 64

// DerivedWallet holds the derivation result. WIF is plaintext and is
// handed to the authenticated owner exactly once; only the encrypted form
// is ever persisted.
type DerivedWallet struct {
	Address   string
	PublicKey string
	WIF       string
}

// Derive turns a user's reusable signature into a deterministic keypair.
// The same (signature, handle) pair always reproduces the same address,
// which is what makes recovery possible without persisted secrets.
func Derive(signature, handle string) (*DerivedWallet, error) {
	if err := validateInput(signature, handle); err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, []byte(derivationVersionTag))
	mac.Write([]byte(signature))
	mac.Write([]byte(handle))
	seed := mac.Sum(nil)

	// The first 32 bytes of the seed are the scalar; btcec reduces it
	// mod the curve order.
	privKey, pubKey := btcec.PrivKeyFromBytes(seed[:32])
	if privKey.Key.IsZero() {
		return nil, fmt.Errorf("derived scalar is zero")
	}

	wif, err := btcutil.NewWIF(privKey, &chaincfg.MainNetParams, true)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WIF: %w", err)
	}

	pubKeyBytes := pubKey.SerializeCompressed()
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pubKeyBytes), &chaincfg.MainNetParams,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to derive address: %w", err)
	}

	return &DerivedWallet{
		Address:   addr.EncodeAddress(),
		PublicKey: hex.EncodeToString(pubKeyBytes),
		WIF:       wif.String(),
	}, nil
}

// VerifyOwnership re-derives from (signature, handle) and compares the
// resulting address. A mismatch is a normal outcome of the security
// check, not an error.
func VerifyOwnership(signature, handle, expectedAddress string) (bool, error) {
	derived, err := Derive(signature, handle)
	if err != nil {
		return false, err
	}
	return derived.Address == expectedAddress, nil
}

// Recover re-derives the wallet and returns nil on address mismatch.
func Recover(signature, handle, expectedAddress string) (*DerivedWallet, error) {
	derived, err := Derive(signature, handle)
	if err != nil {
		return nil, err
	}
	if derived.Address != expectedAddress {
		return nil, nil
	}
	return derived, nil
}

func validateInput(signature, handle string) error {
	if len(signature) < minSignatureLength {
		return &types.DerivationError{
			Message: fmt.Sprintf("signature must be at least %d characters", minSignatureLength),
		}
	}
	if handle == "" {
		return &types.DerivationError{
			Message: "handle must not be empty",
		}
	}
	return nil
}

package model

import "time"

const WalletCollection = "wallets"

// Wallet stores only the encrypted export form of a derived key. The
// plaintext WIF is re-derivable from the owner's signature and is never
// persisted.
type Wallet struct {
	UserID         string    `bson:"_id"`
	Handle         string    `bson:"handle"`
	Address        string    `bson:"address"`
	PublicKey      string    `bson:"public_key"`
	EncryptedWIF   string    `bson:"encrypted_wif"`
	EncryptionSalt string    `bson:"encryption_salt"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

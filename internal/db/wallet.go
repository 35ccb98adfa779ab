package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
)

// UpsertWallet stores the encrypted export form of a user's derived
// wallet. Re-derivation for the same user overwrites in place.
func (db *Database) UpsertWallet(ctx context.Context, wallet *model.Wallet) error {
	filter := bson.M{"_id": wallet.UserID}
	update := bson.M{
		"$set": bson.M{
			"handle":          wallet.Handle,
			"address":         wallet.Address,
			"public_key":      wallet.PublicKey,
			"encrypted_wif":   wallet.EncryptedWIF,
			"encryption_salt": wallet.EncryptionSalt,
			"updated_at":      time.Now().UTC(),
		},
		"$setOnInsert": bson.M{"created_at": time.Now().UTC()},
	}

	_, err := db.collection(model.WalletCollection).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (db *Database) GetWalletByUserID(ctx context.Context, userID string) (*model.Wallet, error) {
	res := db.collection(model.WalletCollection).FindOne(ctx, bson.M{"_id": userID})

	var wallet model.Wallet
	if err := res.Decode(&wallet); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     userID,
				Message: "wallet not found",
			}
		}
		return nil, err
	}
	return &wallet, nil
}

package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

func (db *Database) GetBalance(ctx context.Context, userID, tokenID string) (*model.Balance, error) {
	res := db.collection(model.BalanceCollection).
		FindOne(ctx, bson.M{"user_id": userID, "token_id": tokenID})

	var balance model.Balance
	if err := res.Decode(&balance); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     userID + "/" + tokenID,
				Message: "balance not found",
			}
		}
		return nil, err
	}
	return &balance, nil
}

// CreditBalance adds amount to the holder's available balance, creating
// the row if it does not exist. A single atomic upsert keyed by the
// natural (user, token) key, never check-then-insert.
func (db *Database) CreditBalance(
	ctx context.Context, userID, tokenID string, amount int64, counter model.BalanceCounter,
) error {
	inc := bson.M{"balance": amount}
	if counter != model.CounterNone {
		inc[string(counter)] = amount
	}

	filter := bson.M{"user_id": userID, "token_id": tokenID}
	update := bson.M{
		"$inc": inc,
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	_, err := db.collection(model.BalanceCollection).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// DebitBalance subtracts amount from the holder's available balance. The
// filter requires balance >= amount, so two concurrent debits can never
// both pass a stale InsufficientBalance check.
func (db *Database) DebitBalance(
	ctx context.Context, userID, tokenID string, amount int64, counter model.BalanceCounter,
) error {
	inc := bson.M{"balance": -amount}
	if counter != model.CounterNone {
		inc[string(counter)] = amount
	}

	filter := bson.M{
		"user_id":  userID,
		"token_id": tokenID,
		"balance":  bson.M{"$gte": amount},
	}
	update := bson.M{
		"$inc": inc,
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	res := db.collection(model.BalanceCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &PreconditionFailedError{
				Key:     userID + "/" + tokenID,
				Message: "balance not found or insufficient funds",
			}
		}
		return res.Err()
	}
	return nil
}

// ReserveBalance moves amount from the available balance into pending_out.
// Reserved funds are not spendable but are not yet gone.
func (db *Database) ReserveBalance(ctx context.Context, userID, tokenID string, amount int64) error {
	filter := bson.M{
		"user_id":  userID,
		"token_id": tokenID,
		"balance":  bson.M{"$gte": amount},
	}
	update := bson.M{
		"$inc": bson.M{"balance": -amount, "pending_out": amount},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	res := db.collection(model.BalanceCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &PreconditionFailedError{
				Key:     userID + "/" + tokenID,
				Message: "balance not found or insufficient funds",
			}
		}
		return res.Err()
	}
	return nil
}

// ReleaseReservation returns a reserved amount to the available balance
// (withdrawal rejected or failed).
func (db *Database) ReleaseReservation(ctx context.Context, userID, tokenID string, amount int64) error {
	filter := bson.M{
		"user_id":     userID,
		"token_id":    tokenID,
		"pending_out": bson.M{"$gte": amount},
	}
	update := bson.M{
		"$inc": bson.M{"balance": amount, "pending_out": -amount},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	res := db.collection(model.BalanceCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &PreconditionFailedError{
				Key:     userID + "/" + tokenID,
				Message: "no matching reservation to release",
			}
		}
		return res.Err()
	}
	return nil
}

// FinalizeReservation removes a reserved amount permanently (withdrawal
// completed) and bumps the lifetime withdrawn counter.
func (db *Database) FinalizeReservation(ctx context.Context, userID, tokenID string, amount int64) error {
	filter := bson.M{
		"user_id":     userID,
		"token_id":    tokenID,
		"pending_out": bson.M{"$gte": amount},
	}
	update := bson.M{
		"$inc": bson.M{"pending_out": -amount, "total_withdrawn": amount},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	res := db.collection(model.BalanceCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &PreconditionFailedError{
				Key:     userID + "/" + tokenID,
				Message: "no matching reservation to finalize",
			}
		}
		return res.Err()
	}
	return nil
}

func (db *Database) ListBalancesByToken(ctx context.Context, tokenID string) ([]model.Balance, error) {
	cursor, err := db.collection(model.BalanceCollection).Find(ctx, bson.M{"token_id": tokenID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var balances []model.Balance
	if err := cursor.All(ctx, &balances); err != nil {
		return nil, err
	}
	return balances, nil
}

// ReplayBalance reconstructs the running balance for (user, token) from
// the confirmed transaction log in commit order. The result must equal
// the live balance plus its outstanding reservation.
func (db *Database) ReplayBalance(ctx context.Context, userID, tokenID string) (int64, error) {
	filter := bson.M{
		"user_id":  userID,
		"token_id": tokenID,
		"status":   types.TxConfirmed.String(),
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := db.collection(model.TransactionCollection).Find(ctx, filter, opts)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var running int64
	for cursor.Next(ctx) {
		var tx model.Transaction
		if err := cursor.Decode(&tx); err != nil {
			return 0, err
		}
		switch {
		case tx.Type.Credits():
			running += tx.Amount
		case tx.Type.Debits():
			running -= tx.Amount
		}
	}
	return running, cursor.Err()
}

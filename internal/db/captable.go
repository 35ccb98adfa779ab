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

// UpsertCapTableEntry creates or reactivates the projection row for a
// confirmed stake. Keyed by stake id, so confirming the same stake twice
// is a no-op overwrite rather than a duplicate.
func (db *Database) UpsertCapTableEntry(ctx context.Context, entry *model.CapTableEntry) error {
	filter := bson.M{"_id": entry.StakeID}
	update := bson.M{
		"$set": bson.M{
			"holder_user_id":      entry.HolderUserID,
			"token_id":            entry.TokenID,
			"amount":              entry.Amount,
			"percentage_of_total": entry.PercentageOfTotal,
			"status":              model.CapEntryActive,
			"updated_at":          time.Now().UTC(),
		},
		"$setOnInsert": bson.M{
			"last_dividend_amount":        int64(0),
			"lifetime_dividends_received": int64(0),
			"created_at":                  time.Now().UTC(),
		},
	}

	_, err := db.collection(model.CapTableCollection).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// RemoveCapTableEntry marks the entry REMOVED. Entries are never deleted.
func (db *Database) RemoveCapTableEntry(ctx context.Context, stakeID string) error {
	filter := bson.M{
		"_id":    stakeID,
		"status": model.CapEntryActive,
	}
	update := bson.M{"$set": bson.M{
		"status":     model.CapEntryRemoved,
		"updated_at": time.Now().UTC(),
	}}

	res := db.collection(model.CapTableCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     stakeID,
				Message: "cap table entry not found or already removed",
			}
		}
		return res.Err()
	}
	return nil
}

// RestoreCapTableEntry reactivates a removed entry. Used only as the
// compensating step when an unstake fails after the entry was removed.
func (db *Database) RestoreCapTableEntry(ctx context.Context, stakeID string) error {
	filter := bson.M{"_id": stakeID}
	update := bson.M{"$set": bson.M{
		"status":     model.CapEntryActive,
		"updated_at": time.Now().UTC(),
	}}

	res := db.collection(model.CapTableCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     stakeID,
				Message: "cap table entry not found",
			}
		}
		return res.Err()
	}
	return nil
}

func (db *Database) GetActiveCapTable(ctx context.Context, tokenID string) ([]model.CapTableEntry, error) {
	filter := bson.M{
		"token_id": tokenID,
		"status":   model.CapEntryActive,
	}

	cursor, err := db.collection(model.CapTableCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []model.CapTableEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// UpdateCapTablePercentage rewrites the ownership percentage on an active
// entry during a projection rebuild.
func (db *Database) UpdateCapTablePercentage(ctx context.Context, stakeID, percentage string) error {
	_, err := db.collection(model.CapTableCollection).UpdateOne(
		ctx,
		bson.M{"_id": stakeID, "status": model.CapEntryActive},
		bson.M{"$set": bson.M{
			"percentage_of_total": percentage,
			"updated_at":          time.Now().UTC(),
		}},
	)
	return err
}

// RecordCapTableDividend tracks the latest and lifetime dividend amounts
// on the holder's entry after an executed payment.
func (db *Database) RecordCapTableDividend(ctx context.Context, stakeID string, amount int64) error {
	_, err := db.collection(model.CapTableCollection).UpdateOne(
		ctx,
		bson.M{"_id": stakeID},
		bson.M{
			"$set": bson.M{
				"last_dividend_amount": amount,
				"updated_at":           time.Now().UTC(),
			},
			"$inc": bson.M{"lifetime_dividends_received": amount},
		},
	)
	return err
}

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

func (db *Database) SaveTransaction(ctx context.Context, tx *model.Transaction) error {
	_, err := db.collection(model.TransactionCollection).InsertOne(ctx, tx)
	if mongo.IsDuplicateKeyError(err) {
		return &DuplicateKeyError{
			Key:     tx.ID,
			Message: "transaction already recorded",
		}
	}
	return err
}

func (db *Database) GetTransactionByID(ctx context.Context, txID string) (*model.Transaction, error) {
	res := db.collection(model.TransactionCollection).FindOne(ctx, bson.M{"_id": txID})

	var tx model.Transaction
	if err := res.Decode(&tx); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     txID,
				Message: "transaction not found",
			}
		}
		return nil, err
	}
	return &tx, nil
}

func (db *Database) GetTransactions(
	ctx context.Context, filter model.TransactionFilter, limit, offset int64,
) ([]model.Transaction, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.TokenID != "" {
		query["token_id"] = filter.TokenID
	}
	if filter.Type != "" {
		query["type"] = filter.Type.String()
	}
	if filter.Status != "" {
		query["status"] = filter.Status.String()
	}
	createdAt := bson.M{}
	if !filter.After.IsZero() {
		createdAt["$gte"] = filter.After
	}
	if !filter.Before.IsZero() {
		createdAt["$lt"] = filter.Before
	}
	if len(createdAt) > 0 {
		query["created_at"] = createdAt
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetSkip(offset).
		SetLimit(limit)

	cursor, err := db.collection(model.TransactionCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txs []model.Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// UpdateTransactionStatus moves a transaction between statuses guarded by
// the set of qualified previous statuses. Transactions are append-only in
// every other respect.
func (db *Database) UpdateTransactionStatus(
	ctx context.Context,
	txID string,
	qualifiedPreviousStatuses []types.TransactionStatus,
	newStatus types.TransactionStatus,
) error {
	qualified := make([]string, len(qualifiedPreviousStatuses))
	for i, s := range qualifiedPreviousStatuses {
		qualified[i] = s.String()
	}

	filter := bson.M{
		"_id":    txID,
		"status": bson.M{"$in": qualified},
	}
	update := bson.M{"$set": bson.M{
		"status":     newStatus.String(),
		"updated_at": time.Now().UTC(),
	}}

	res := db.collection(model.TransactionCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     txID,
				Message: "transaction not found or current status is not qualified",
			}
		}
		return res.Err()
	}
	return nil
}

// GetExecutedDistributionIDs returns the distribution ids for which the
// holder already has a DIVIDEND transaction.
func (db *Database) GetExecutedDistributionIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	filter := bson.M{
		"user_id":         userID,
		"type":            types.TxDividend.String(),
		"distribution_id": bson.M{"$exists": true},
	}

	values, err := db.collection(model.TransactionCollection).Distinct(ctx, "distribution_id", filter)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{}, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			ids[s] = struct{}{}
		}
	}
	return ids, nil
}

package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

func (db *Database) SaveWithdrawalRequest(ctx context.Context, req *model.WithdrawalRequest) error {
	_, err := db.collection(model.WithdrawalRequestCollection).InsertOne(ctx, req)
	if mongo.IsDuplicateKeyError(err) {
		return &DuplicateKeyError{
			Key:     req.ID,
			Message: "withdrawal request already exists",
		}
	}
	return err
}

func (db *Database) GetWithdrawalRequest(ctx context.Context, requestID string) (*model.WithdrawalRequest, error) {
	res := db.collection(model.WithdrawalRequestCollection).
		FindOne(ctx, bson.M{"_id": requestID})

	var req model.WithdrawalRequest
	if err := res.Decode(&req); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     requestID,
				Message: "withdrawal request not found",
			}
		}
		return nil, err
	}
	return &req, nil
}

// UpdateWithdrawalState transitions a withdrawal guarded by the qualified
// previous states for the target state. Reason and txid are stamped when
// provided.
func (db *Database) UpdateWithdrawalState(
	ctx context.Context,
	requestID string,
	qualifiedPreviousStates []types.WithdrawalState,
	newState types.WithdrawalState,
	reason string,
	txID string,
) error {
	qualified := make([]string, len(qualifiedPreviousStates))
	for i, s := range qualifiedPreviousStates {
		qualified[i] = s.String()
	}

	filter := bson.M{
		"_id":   requestID,
		"state": bson.M{"$in": qualified},
	}

	setFields := bson.M{
		"state":      newState.String(),
		"updated_at": time.Now().UTC(),
	}
	if reason != "" {
		setFields["reason"] = reason
	}
	if txID != "" {
		setFields["txid"] = txID
	}

	res := db.collection(model.WithdrawalRequestCollection).
		FindOneAndUpdate(ctx, filter, bson.M{"$set": setFields})
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     requestID,
				Message: "withdrawal request not found or current state is not qualified",
			}
		}
		return res.Err()
	}
	return nil
}

func (db *Database) GetWithdrawalsByUser(ctx context.Context, userID string) ([]model.WithdrawalRequest, error) {
	cursor, err := db.collection(model.WithdrawalRequestCollection).
		Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reqs []model.WithdrawalRequest
	if err := cursor.All(ctx, &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

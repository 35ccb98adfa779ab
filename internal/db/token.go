package db

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
)

func (db *Database) SaveToken(ctx context.Context, token *model.Token) error {
	_, err := db.collection(model.TokenCollection).InsertOne(ctx, token)
	if mongo.IsDuplicateKeyError(err) {
		return &DuplicateKeyError{
			Key:     token.Ticker,
			Message: "token ticker already registered",
		}
	}
	return err
}

func (db *Database) GetTokenByID(ctx context.Context, tokenID string) (*model.Token, error) {
	res := db.collection(model.TokenCollection).FindOne(ctx, bson.M{"_id": tokenID})

	var token model.Token
	if err := res.Decode(&token); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     tokenID,
				Message: "token not found",
			}
		}
		return nil, err
	}
	return &token, nil
}

func (db *Database) GetTokenByTicker(ctx context.Context, ticker string) (*model.Token, error) {
	res := db.collection(model.TokenCollection).FindOne(ctx, bson.M{"ticker": ticker})

	var token model.Token
	if err := res.Decode(&token); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     ticker,
				Message: "token not found",
			}
		}
		return nil, err
	}
	return &token, nil
}

// AdjustTokenSupply applies a mint (positive) or burn (negative) delta to
// total supply. The supply never goes negative; a burn larger than supply
// fails the precondition.
func (db *Database) AdjustTokenSupply(ctx context.Context, tokenID string, delta int64) error {
	filter := bson.M{"_id": tokenID}
	if delta < 0 {
		filter["total_supply"] = bson.M{"$gte": -delta}
	}

	res := db.collection(model.TokenCollection).FindOneAndUpdate(
		ctx, filter, bson.M{"$inc": bson.M{"total_supply": delta}},
	)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &PreconditionFailedError{
				Key:     tokenID,
				Message: "token not found or burn exceeds total supply",
			}
		}
		return res.Err()
	}
	return nil
}

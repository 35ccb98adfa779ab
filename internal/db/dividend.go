package db

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
)

func (db *Database) SaveDistribution(ctx context.Context, dist *model.DividendDistribution) error {
	_, err := db.collection(model.DividendDistributionCollection).InsertOne(ctx, dist)
	if mongo.IsDuplicateKeyError(err) {
		return &DuplicateKeyError{
			Key:     dist.ID,
			Message: "distribution already saved",
		}
	}
	return err
}

func (db *Database) GetDistributionByID(ctx context.Context, distributionID string) (*model.DividendDistribution, error) {
	res := db.collection(model.DividendDistributionCollection).
		FindOne(ctx, bson.M{"_id": distributionID})

	var dist model.DividendDistribution
	if err := res.Decode(&dist); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     distributionID,
				Message: "distribution not found",
			}
		}
		return nil, err
	}
	return &dist, nil
}

// GetDistributionsForUser returns every distribution containing a payment
// addressed to the holder.
func (db *Database) GetDistributionsForUser(ctx context.Context, userID string) ([]model.DividendDistribution, error) {
	filter := bson.M{"payments.user_id": userID}

	cursor, err := db.collection(model.DividendDistributionCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var dists []model.DividendDistribution
	if err := cursor.All(ctx, &dists); err != nil {
		return nil, err
	}
	return dists, nil
}

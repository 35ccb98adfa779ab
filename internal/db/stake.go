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

func (db *Database) SaveNewStake(ctx context.Context, stake *model.Stake) error {
	_, err := db.collection(model.StakeCollection).InsertOne(ctx, stake)
	if mongo.IsDuplicateKeyError(err) {
		return &DuplicateKeyError{
			Key:     stake.ID,
			Message: "stake already exists",
		}
	}
	return err
}

func (db *Database) GetStakeByID(ctx context.Context, stakeID string) (*model.Stake, error) {
	res := db.collection(model.StakeCollection).FindOne(ctx, bson.M{"_id": stakeID})

	var stake model.Stake
	if err := res.Decode(&stake); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     stakeID,
				Message: "stake not found",
			}
		}
		return nil, err
	}
	return &stake, nil
}

// UpdateStakeState transitions a stake guarded by the set of qualified
// previous states, optionally stamping a timestamp field in the same
// atomic update. No transition may skip a state.
func (db *Database) UpdateStakeState(
	ctx context.Context,
	stakeID string,
	qualifiedPreviousStates []types.StakeState,
	newState types.StakeState,
	stampField string,
	stampAt time.Time,
) error {
	qualified := make([]string, len(qualifiedPreviousStates))
	for i, s := range qualifiedPreviousStates {
		qualified[i] = s.String()
	}

	filter := bson.M{
		"_id":   stakeID,
		"state": bson.M{"$in": qualified},
	}

	setFields := bson.M{"state": newState.String()}
	if stampField != "" {
		setFields[stampField] = stampAt
	}

	res := db.collection(model.StakeCollection).
		FindOneAndUpdate(ctx, filter, bson.M{"$set": setFields})
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     stakeID,
				Message: "stake not found or current state is not qualified",
			}
		}
		return res.Err()
	}
	return nil
}

// RevertStakeState is the compensating transition for a failed
// multi-step operation: it moves the stake back from the state the
// forward transition set and unsets the timestamp that transition
// stamped, so the audit trail carries no timestamp for a step that was
// undone.
func (db *Database) RevertStakeState(
	ctx context.Context,
	stakeID string,
	from, to types.StakeState,
	clearField string,
) error {
	filter := bson.M{
		"_id":   stakeID,
		"state": from.String(),
	}
	update := bson.M{"$set": bson.M{"state": to.String()}}
	if clearField != "" {
		update["$unset"] = bson.M{clearField: ""}
	}

	res := db.collection(model.StakeCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     stakeID,
				Message: "stake not found or current state is not qualified",
			}
		}
		return res.Err()
	}
	return nil
}

// MarkStakeSubState annotates a stake without changing its state, e.g.
// DEPOSIT_EXPIRED on a pending stake whose deadline has passed.
func (db *Database) MarkStakeSubState(
	ctx context.Context, stakeID string, subState types.StakeSubState,
) error {
	res := db.collection(model.StakeCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": stakeID},
		bson.M{"$set": bson.M{"sub_state": subState.String()}},
	)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     stakeID,
				Message: "stake not found",
			}
		}
		return res.Err()
	}
	return nil
}

// AccrueDividends increments a stake's accumulated dividends. Only
// CONFIRMED stakes accrue; the guard keeps accrual from racing an unstake.
func (db *Database) AccrueDividends(ctx context.Context, stakeID string, amount int64) error {
	filter := bson.M{
		"_id":   stakeID,
		"state": types.StakeConfirmed.String(),
	}
	update := bson.M{"$inc": bson.M{"dividends_accumulated": amount}}

	res := db.collection(model.StakeCollection).FindOneAndUpdate(ctx, filter, update)
	if res.Err() != nil {
		if errors.Is(res.Err(), mongo.ErrNoDocuments) {
			return &NotFoundError{
				Key:     stakeID,
				Message: "stake not found or not confirmed",
			}
		}
		return res.Err()
	}
	return nil
}

func (db *Database) GetStakesByUser(ctx context.Context, userID string) ([]model.Stake, error) {
	cursor, err := db.collection(model.StakeCollection).Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stakes []model.Stake
	if err := cursor.All(ctx, &stakes); err != nil {
		return nil, err
	}
	return stakes, nil
}

func (db *Database) GetConfirmedStakes(ctx context.Context, tokenID string) ([]model.Stake, error) {
	filter := bson.M{
		"token_id": tokenID,
		"state":    types.StakeConfirmed.String(),
	}

	cursor, err := db.collection(model.StakeCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stakes []model.Stake
	if err := cursor.All(ctx, &stakes); err != nil {
		return nil, err
	}
	return stakes, nil
}

// FindExpiredPendingStakes returns pending stakes whose deposit deadline
// has passed and which have not yet been annotated as expired.
func (db *Database) FindExpiredPendingStakes(ctx context.Context, now time.Time, limit int64) ([]model.Stake, error) {
	filter := bson.M{
		"state":            types.StakePendingDeposit.String(),
		"deposit_deadline": bson.M{"$lt": now},
		"sub_state":        bson.M{"$ne": types.SubStateDepositExpired.String()},
	}

	cursor, err := db.collection(model.StakeCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stakes []model.Stake
	for cursor.Next(ctx) {
		if limit > 0 && int64(len(stakes)) >= limit {
			break
		}
		var stake model.Stake
		if err := cursor.Decode(&stake); err != nil {
			return nil, err
		}
		stakes = append(stakes, stake)
	}
	return stakes, cursor.Err()
}

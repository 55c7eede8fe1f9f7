package repository

import (
	"brokerage/pkg/config"
	"brokerage/pkg/model"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Visit_locks"

// ErrLockHeld is returned when another request holds the slot lock.
var ErrLockHeld = errors.New("visit slot lock already held")

type VisitLockRepository interface {
	Create(ctx context.Context, lock *model.VisitLock) (*model.VisitLock, error)
	Delete(ctx context.Context, lockID string) error
}

type mongoVisitLockRepository struct {
	collection *mongo.Collection
}

func NewVisitLockRepository(cfg *config.Config) VisitLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoVisitLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

// Create inserts the lock document; the _id uniqueness is the lock.
// Stale locks are reaped by the TTL index on expires_at.
func (r *mongoVisitLockRepository) Create(ctx context.Context, lock *model.VisitLock) (*model.VisitLock, error) {
	lock.CreatedAt = time.Now().UTC()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrLockHeld
		}
		return nil, err
	}

	return lock, nil
}

func (r *mongoVisitLockRepository) Delete(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}

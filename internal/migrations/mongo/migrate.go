package mongo

import (
	"brokerage/internal/migrations/mongo/validators"
	"brokerage/internal/visits/repository"
	"brokerage/pkg/logger"
	"brokerage/pkg/model"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const UniqueSlotIndexName = "uniq_scheduled_property_slot"

var (
	// At most one SCHEDULED visit per property and instant. Visits in any
	// other status may share the slot.
	VisitsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "property_id", Value: 1},
				{Key: "visit_date_time", Value: 1},
			},
			Options: options.Index().
				SetName(UniqueSlotIndexName).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": model.StatusScheduled}),
		},
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "visit_date_time", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "visit_date_time", Value: 1}}},
		{Keys: bson.D{{Key: "broker_id", Value: 1}, {Key: "visit_date_time", Value: 1}}},
	}

	// Locks left behind by a crashed writer expire on their own.
	VisitLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
)

type CollectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func Collections() map[string]CollectionDef {
	return map[string]CollectionDef{
		repository.CollectionName: {
			Indexes:   VisitsIndexes,
			Validator: validators.VisitValidator,
		},
		repository.LockCollectionName: {
			Indexes:   VisitLocksIndexes,
			Validator: validators.VisitLockValidator,
		},
	}
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for name, def := range Collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	coll := db.Collection(name)
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}

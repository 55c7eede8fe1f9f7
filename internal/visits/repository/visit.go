package repository

import (
	visitserrors "brokerage/internal/visits/errors"
	"brokerage/pkg/config"
	mongotx "brokerage/pkg/db/mongo"
	"brokerage/pkg/model"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Visits"
)

type VisitRepository interface {
	FindByID(ctx context.Context, id string) (*model.Visit, error)
	// FindConflicting returns the SCHEDULED visit occupying (propertyID, at),
	// ignoring excludeID, or nil when the slot is free.
	FindConflicting(ctx context.Context, propertyID int64, at time.Time, excludeID string) (*model.Visit, error)
	FindByFilter(ctx context.Context, filter model.VisitFilter) ([]*model.Visit, error)
	CountByFilter(ctx context.Context, filter model.VisitFilter) (int64, error)
	FindByCustomer(ctx context.Context, customerID int64, filter model.VisitFilter) ([]*model.Visit, error)
	FindByProperty(ctx context.Context, propertyID int64, filter model.VisitFilter) ([]*model.Visit, error)
	Save(ctx context.Context, visit *model.Visit) error
	// AssignBroker claims an unassigned, claimable visit and returns it
	// together with the status it held when the claim matched.
	AssignBroker(ctx context.Context, id string, brokerID int64) (*model.Visit, model.VisitStatus, error)
	// Cancel is the compare-and-swap counterpart of AssignBroker for
	// SCHEDULED and WAITING_CONFIRMATION visits.
	Cancel(ctx context.Context, id string) (*model.Visit, model.VisitStatus, error)
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoVisitRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoVisitRepository(cfg *config.Config) VisitRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoVisitRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// visitDocument is the stored shape. The _id is a real ObjectID so that
// replaces keep the identity the insert generated.
type visitDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	VisitDateTime time.Time          `bson:"visit_date_time"`
	Status        model.VisitStatus  `bson:"status"`
	PropertyID    int64              `bson:"property_id"`
	CustomerID    int64              `bson:"customer_id"`
	BrokerID      *int64             `bson:"broker_id"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

func toDocument(v *model.Visit, id primitive.ObjectID) *visitDocument {
	return &visitDocument{
		ID:            id,
		VisitDateTime: v.VisitDateTime,
		Status:        v.Status,
		PropertyID:    v.PropertyID,
		CustomerID:    v.CustomerID,
		BrokerID:      v.BrokerID,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func (d *visitDocument) toModel() *model.Visit {
	return &model.Visit{
		ID:            d.ID.Hex(),
		VisitDateTime: d.VisitDateTime.UTC(),
		Status:        d.Status,
		PropertyID:    d.PropertyID,
		CustomerID:    d.CustomerID,
		BrokerID:      d.BrokerID,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// A SessionContext cannot be wrapped without losing the session.
func (r *mongoVisitRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}

	return context.WithTimeout(ctx, timeout)
}

func parseID(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", visitserrors.ErrInvalidID, id)
	}
	return objectID, nil
}

func (r *mongoVisitRepository) FindByID(ctx context.Context, id string) (*model.Visit, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc visitDocument
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, visitserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find visit: %w", err)
	}

	return doc.toModel(), nil
}

func (r *mongoVisitRepository) FindConflicting(ctx context.Context, propertyID int64, at time.Time, excludeID string) (*model.Visit, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"property_id":     propertyID,
		"visit_date_time": model.NormalizeTime(at),
		"status":          model.StatusScheduled,
	}
	if excludeID != "" {
		objectID, err := parseID(excludeID)
		if err != nil {
			return nil, err
		}
		filter["_id"] = bson.M{"$ne": objectID}
	}

	var doc visitDocument
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check conflicting visits: %w", err)
	}

	return doc.toModel(), nil
}

func (r *mongoVisitRepository) FindByFilter(ctx context.Context, filter model.VisitFilter) ([]*model.Visit, error) {
	return r.find(ctx, bson.M{}, filter)
}

func (r *mongoVisitRepository) CountByFilter(ctx context.Context, filter model.VisitFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildFilter(bson.M{}, filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return count, nil
}

func (r *mongoVisitRepository) FindByCustomer(ctx context.Context, customerID int64, filter model.VisitFilter) ([]*model.Visit, error) {
	return r.find(ctx, bson.M{"customer_id": customerID}, filter)
}

func (r *mongoVisitRepository) FindByProperty(ctx context.Context, propertyID int64, filter model.VisitFilter) ([]*model.Visit, error) {
	return r.find(ctx, bson.M{"property_id": propertyID}, filter)
}

func (r *mongoVisitRepository) find(ctx context.Context, base bson.M, filter model.VisitFilter) ([]*model.Visit, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "visit_date_time", Value: 1},
		{Key: "_id", Value: 1},
	})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(filter.Offset)
	}

	cursor, err := r.collection.Find(ctx, buildFilter(base, filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find visits: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []visitDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode visits: %w", err)
	}

	visits := make([]*model.Visit, 0, len(docs))
	for i := range docs {
		visits = append(visits, docs[i].toModel())
	}
	return visits, nil
}

// buildFilter compiles a VisitFilter on top of the scoping clause. The date
// range is inclusive on both ends.
func buildFilter(base bson.M, filter model.VisitFilter) bson.M {
	out := bson.M{}
	for k, v := range base {
		out[k] = v
	}

	if filter.Status != nil {
		out["status"] = *filter.Status
	}

	if filter.Range != nil && (filter.Range.Start != nil || filter.Range.End != nil) {
		timeFilter := bson.M{}
		if filter.Range.Start != nil {
			timeFilter["$gte"] = model.NormalizeTime(*filter.Range.Start)
		}
		if filter.Range.End != nil {
			timeFilter["$lte"] = model.NormalizeTime(*filter.Range.End)
		}
		out["visit_date_time"] = timeFilter
	}

	return out
}

// Save inserts visits without an ID and replaces (upserting) the rest.
func (r *mongoVisitRepository) Save(ctx context.Context, visit *model.Visit) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := model.NormalizeTime(time.Now())
	visit.VisitDateTime = model.NormalizeTime(visit.VisitDateTime)
	visit.UpdatedAt = now

	if visit.ID == "" {
		visit.CreatedAt = now
		result, err := r.collection.InsertOne(ctx, toDocument(visit, primitive.NilObjectID))
		if err != nil {
			return translateWriteError("failed to create visit", err)
		}
		if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
			visit.ID = oid.Hex()
		}
		return nil
	}

	objectID, err := parseID(visit.ID)
	if err != nil {
		return err
	}
	if visit.CreatedAt.IsZero() {
		visit.CreatedAt = now
	}

	opts := options.Replace().SetUpsert(true)
	_, err = r.collection.ReplaceOne(ctx, bson.M{"_id": objectID}, toDocument(visit, objectID), opts)
	if err != nil {
		return translateWriteError("failed to save visit", err)
	}
	return nil
}

func (r *mongoVisitRepository) AssignBroker(ctx context.Context, id string, brokerID int64) (*model.Visit, model.VisitStatus, error) {
	now := model.NormalizeTime(time.Now())
	filter := bson.M{
		"broker_id": nil,
		"status":    bson.M{"$in": []model.VisitStatus{model.StatusScheduled, model.StatusWaitingConfirmation}},
	}
	set := bson.M{
		"broker_id":  brokerID,
		"status":     model.StatusScheduled,
		"updated_at": now,
	}

	visit, err := r.swap(ctx, id, filter, set, visitserrors.ErrClaimRejected, "failed to assign broker")
	if err != nil {
		return nil, "", err
	}
	previous := visit.Status
	visit.BrokerID = &brokerID
	visit.Status = model.StatusScheduled
	visit.UpdatedAt = now
	return visit, previous, nil
}

func (r *mongoVisitRepository) Cancel(ctx context.Context, id string) (*model.Visit, model.VisitStatus, error) {
	now := model.NormalizeTime(time.Now())
	filter := bson.M{
		"status": bson.M{"$in": []model.VisitStatus{model.StatusScheduled, model.StatusWaitingConfirmation}},
	}
	set := bson.M{
		"status":     model.StatusCanceled,
		"updated_at": now,
	}

	visit, err := r.swap(ctx, id, filter, set, visitserrors.ErrCancelRejected, "failed to cancel visit")
	if err != nil {
		return nil, "", err
	}
	previous := visit.Status
	visit.Status = model.StatusCanceled
	visit.UpdatedAt = now
	return visit, previous, nil
}

// swap applies set to visit id when filter still matches and returns the
// pre-image, the document as the filter saw it.
func (r *mongoVisitRepository) swap(ctx context.Context, id string, filter, set bson.M, missErr error, msg string) (*model.Visit, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	filter["_id"] = objectID

	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var doc visitDocument
	err = r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, missErr
		}
		return nil, translateWriteError(msg, err)
	}
	return doc.toModel(), nil
}

func (r *mongoVisitRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := parseID(id)
	if err != nil {
		return err
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete visit: %w", err)
	}
	if result.DeletedCount == 0 {
		return visitserrors.ErrNotFound
	}
	return nil
}

func (r *mongoVisitRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

// translateWriteError maps the partial unique index on SCHEDULED slots to
// ErrDuplicateSlot.
func translateWriteError(msg string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return visitserrors.ErrDuplicateSlot
	}
	return fmt.Errorf("%s: %w", msg, err)
}

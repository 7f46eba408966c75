package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/settlement-reconciliation/internal/domain/payout"
)

const (
	// PayoutBatchCollectionName is the name of the payout batches collection in MongoDB
	PayoutBatchCollectionName = "payout_batches"
)

// PayoutRepository implements the payout.Repository interface for MongoDB
type PayoutRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewPayoutRepository creates a new MongoDB payout batch repository
func NewPayoutRepository(logger *slog.Logger, db *mongo.Database) payout.Repository {
	return &PayoutRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new payout batch
func (r *PayoutRepository) Create(ctx context.Context, batch *payout.Batch) error {
	collection := r.db.Collection(PayoutBatchCollectionName)

	_, err := collection.InsertOne(ctx, batch)
	if err != nil {
		r.logger.Error("Failed to create payout batch",
			"batch_id", batch.ID.String(),
			"error", err)
		return fmt.Errorf("failed to create payout batch: %w", err)
	}

	return nil
}

// GetByID retrieves a payout batch by its ID.
// Returns ErrBatchNotFound if no batch exists.
func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*payout.Batch, error) {
	collection := r.db.Collection(PayoutBatchCollectionName)

	filter := bson.M{"id": id}
	var batch payout.Batch
	err := collection.FindOne(ctx, filter).Decode(&batch)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, payout.ErrBatchNotFound{ID: id}
		}
		r.logger.Error("Failed to get payout batch",
			"batch_id", id.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get payout batch: %w", err)
	}

	return &batch, nil
}

// List retrieves paginated payout batches sorted by creation time, newest first.
func (r *PayoutRepository) List(ctx context.Context, filter payout.ListFilter, limit, offset int) ([]*payout.Batch, error) {
	collection := r.db.Collection(PayoutBatchCollectionName)

	query := bson.M{}
	if filter.OrganizerID != "" {
		query["organizer_id"] = filter.OrganizerID
	}
	if filter.AppliedFrom != nil || filter.AppliedTo != nil {
		applied := bson.M{}
		if filter.AppliedFrom != nil {
			applied["$gte"] = *filter.AppliedFrom
		}
		if filter.AppliedTo != nil {
			applied["$lte"] = *filter.AppliedTo
		}
		query["applied_at"] = applied
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		r.logger.Error("Failed to list payout batches", "error", err)
		return nil, fmt.Errorf("failed to list payout batches: %w", err)
	}
	defer cursor.Close(ctx)

	var batches []*payout.Batch
	if err := cursor.All(ctx, &batches); err != nil {
		r.logger.Error("Failed to decode payout batches", "error", err)
		return nil, fmt.Errorf("failed to decode payout batches: %w", err)
	}

	return batches, nil
}

// UpdateStatus updates the batch's status and applied timestamp.
// Returns ErrBatchNotFound if the batch doesn't exist.
func (r *PayoutRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status payout.BatchStatus, appliedAt *time.Time) error {
	collection := r.db.Collection(PayoutBatchCollectionName)

	filter := bson.M{"id": id}
	set := bson.M{"status": status}
	if appliedAt != nil {
		set["applied_at"] = *appliedAt
	}
	update := bson.M{"$set": set}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to update payout batch status",
			"batch_id", id.String(),
			"status", string(status),
			"error", err)
		return fmt.Errorf("failed to update payout batch status: %w", err)
	}

	if result.MatchedCount == 0 {
		return payout.ErrBatchNotFound{ID: id}
	}

	return nil
}

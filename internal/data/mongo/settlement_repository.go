package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/settlement-reconciliation/internal/domain/settlement"
	"github.com/settlement-reconciliation/internal/domain/shared"
)

const (
	// SettlementCollectionName is the name of the settlements collection in MongoDB
	SettlementCollectionName = "settlements"
)

// SettlementRepository implements the settlement.Repository interface for MongoDB
type SettlementRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewSettlementRepository creates a new MongoDB settlement repository
func NewSettlementRepository(logger *slog.Logger, db *mongo.Database) settlement.Repository {
	return &SettlementRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new settlement after checking that the same report/export
// pair has not been imported before. Returns ErrDuplicateSettlement when the
// content hashes already exist.
func (r *SettlementRepository) Create(ctx context.Context, s *settlement.Settlement) error {
	collection := r.db.Collection(SettlementCollectionName)

	existing, err := r.GetByContentHashes(ctx, s.HashPDF, s.HashCSV)
	if err != nil {
		r.logger.Error("Failed to check for existing settlement",
			"hash_pdf", s.HashPDF,
			"error", err)
		return fmt.Errorf("failed to check for existing settlement: %w", err)
	}
	if existing != nil {
		return settlement.ErrDuplicateSettlement{ExistingID: existing.ID}
	}

	_, err = collection.InsertOne(ctx, s)
	if err != nil {
		r.logger.Error("Failed to create settlement",
			"settlement_id", s.ID.String(),
			"error", err)
		return fmt.Errorf("failed to create settlement: %w", err)
	}

	return nil
}

// GetByID retrieves a settlement by its ID.
// Returns ErrSettlementNotFound if no settlement exists.
func (r *SettlementRepository) GetByID(ctx context.Context, id uuid.UUID) (*settlement.Settlement, error) {
	collection := r.db.Collection(SettlementCollectionName)

	filter := bson.M{"id": id}
	var s settlement.Settlement
	err := collection.FindOne(ctx, filter).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, settlement.ErrSettlementNotFound{ID: id}
		}
		r.logger.Error("Failed to get settlement",
			"settlement_id", id.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}

	return &s, nil
}

// GetByContentHashes looks up a settlement by the hashes of its source files.
// Returns nil when no settlement with that pair exists.
func (r *SettlementRepository) GetByContentHashes(ctx context.Context, hashPDF, hashCSV string) (*settlement.Settlement, error) {
	collection := r.db.Collection(SettlementCollectionName)

	filter := bson.M{"hash_pdf": hashPDF, "hash_csv": hashCSV}
	var s settlement.Settlement
	err := collection.FindOne(ctx, filter).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		r.logger.Error("Failed to get settlement by content hashes",
			"hash_pdf", hashPDF,
			"error", err)
		return nil, fmt.Errorf("failed to get settlement by content hashes: %w", err)
	}

	return &s, nil
}

// List retrieves paginated settlements sorted by creation time,
// newest first.
func (r *SettlementRepository) List(ctx context.Context, limit, offset int) ([]*settlement.Settlement, error) {
	collection := r.db.Collection(SettlementCollectionName)

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to list settlements", "error", err)
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer cursor.Close(ctx)

	var settlements []*settlement.Settlement
	if err := cursor.All(ctx, &settlements); err != nil {
		r.logger.Error("Failed to decode settlements", "error", err)
		return nil, fmt.Errorf("failed to decode settlements: %w", err)
	}

	return settlements, nil
}

// Count counts the total number of settlements
func (r *SettlementRepository) Count(ctx context.Context) (int64, error) {
	collection := r.db.Collection(SettlementCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		r.logger.Error("Failed to count settlements", "error", err)
		return 0, fmt.Errorf("failed to count settlements: %w", err)
	}

	return count, nil
}

// UpdateStatus updates the settlement's status.
// Returns ErrSettlementNotFound if the settlement doesn't exist.
func (r *SettlementRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status shared.SettlementStatus) error {
	collection := r.db.Collection(SettlementCollectionName)

	filter := bson.M{"id": id}
	update := bson.M{
		"$set": bson.M{
			"status": status,
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to update settlement status",
			"settlement_id", id.String(),
			"status", string(status),
			"error", err)
		return fmt.Errorf("failed to update settlement status: %w", err)
	}

	if result.MatchedCount == 0 {
		return settlement.ErrSettlementNotFound{ID: id}
	}

	return nil
}

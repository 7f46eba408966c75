package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/settlement-reconciliation/internal/domain/settlement"
)

const (
	// LineCollectionName is the name of the settlement lines collection in MongoDB
	LineCollectionName = "settlement_lines"
)

// LineRepository implements the settlement.LineRepository interface for MongoDB
type LineRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewLineRepository creates a new MongoDB settlement line repository
func NewLineRepository(logger *slog.Logger, db *mongo.Database) settlement.LineRepository {
	return &LineRepository{
		db:     db,
		logger: logger,
	}
}

// CreateMany inserts the extracted lines, skipping documents that collide on
// the unique line hash index. Returns the number of lines actually inserted.
func (r *LineRepository) CreateMany(ctx context.Context, lines []*settlement.Line) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}
	collection := r.db.Collection(LineCollectionName)

	docs := make([]interface{}, len(lines))
	for i, line := range lines {
		docs[i] = line
	}

	// Unordered insert keeps going past duplicate-key errors so a partial
	// re-import does not abort the whole batch.
	opts := options.InsertMany().SetOrdered(false)
	result, err := collection.InsertMany(ctx, docs, opts)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		r.logger.Error("Failed to insert settlement lines",
			"count", len(lines),
			"error", err)
		return 0, fmt.Errorf("failed to insert settlement lines: %w", err)
	}

	inserted := 0
	if result != nil {
		inserted = len(result.InsertedIDs)
	}
	return inserted, nil
}

// GetBySettlementID retrieves all lines of a settlement in insertion order.
func (r *LineRepository) GetBySettlementID(ctx context.Context, settlementID uuid.UUID) ([]*settlement.Line, error) {
	collection := r.db.Collection(LineCollectionName)

	filter := bson.M{"settlement_id": settlementID}
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to get settlement lines",
			"settlement_id", settlementID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get settlement lines: %w", err)
	}
	defer cursor.Close(ctx)

	var lines []*settlement.Line
	if err := cursor.All(ctx, &lines); err != nil {
		r.logger.Error("Failed to decode settlement lines",
			"settlement_id", settlementID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode settlement lines: %w", err)
	}

	return lines, nil
}

// ExistingFingerprints returns the subset of the given line hashes that are
// already stored, used to drop re-imported duplicates.
func (r *LineRepository) ExistingFingerprints(ctx context.Context, fingerprints []string) (map[string]struct{}, error) {
	if len(fingerprints) == 0 {
		return map[string]struct{}{}, nil
	}
	collection := r.db.Collection(LineCollectionName)

	filter := bson.M{"line_hash": bson.M{"$in": fingerprints}}
	opts := options.Find().SetProjection(bson.M{"line_hash": 1})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to query existing line fingerprints", "error", err)
		return nil, fmt.Errorf("failed to query existing line fingerprints: %w", err)
	}
	defer cursor.Close(ctx)

	existing := make(map[string]struct{})
	for cursor.Next(ctx) {
		var doc struct {
			LineHash string `bson:"line_hash"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode line fingerprint: %w", err)
		}
		existing[doc.LineHash] = struct{}{}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate line fingerprints: %w", err)
	}

	return existing, nil
}

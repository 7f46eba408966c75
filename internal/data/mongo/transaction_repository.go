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
	// TransactionCollectionName is the name of the imported transactions collection in MongoDB
	TransactionCollectionName = "transactions"
)

// TransactionRepository implements the settlement.TransactionRepository interface for MongoDB
type TransactionRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewTransactionRepository creates a new MongoDB transaction repository
func NewTransactionRepository(logger *slog.Logger, db *mongo.Database) settlement.TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateMany inserts the imported transactions, skipping documents that
// collide on the unique transaction hash index. Returns the number actually
// inserted.
func (r *TransactionRepository) CreateMany(ctx context.Context, txs []*settlement.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	collection := r.db.Collection(TransactionCollectionName)

	docs := make([]interface{}, len(txs))
	for i, tx := range txs {
		docs[i] = tx
	}

	opts := options.InsertMany().SetOrdered(false)
	result, err := collection.InsertMany(ctx, docs, opts)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		r.logger.Error("Failed to insert transactions",
			"count", len(txs),
			"error", err)
		return 0, fmt.Errorf("failed to insert transactions: %w", err)
	}

	inserted := 0
	if result != nil {
		inserted = len(result.InsertedIDs)
	}
	return inserted, nil
}

// GetBySettlementID retrieves all imported transactions of a settlement.
func (r *TransactionRepository) GetBySettlementID(ctx context.Context, settlementID uuid.UUID) ([]*settlement.Transaction, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"settlement_id": settlementID}
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to get transactions",
			"settlement_id", settlementID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var txs []*settlement.Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		r.logger.Error("Failed to decode transactions",
			"settlement_id", settlementID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	return txs, nil
}

// GetByFingerprints retrieves the stored transactions matching the given
// hashes. Used to rebuild a candidate pool out of rows imported by an
// earlier settlement.
func (r *TransactionRepository) GetByFingerprints(ctx context.Context, fingerprints []string) ([]*settlement.Transaction, error) {
	if len(fingerprints) == 0 {
		return nil, nil
	}
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"tx_hash": bson.M{"$in": fingerprints}}
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to get transactions by fingerprints", "error", err)
		return nil, fmt.Errorf("failed to get transactions by fingerprints: %w", err)
	}
	defer cursor.Close(ctx)

	var txs []*settlement.Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		r.logger.Error("Failed to decode transactions by fingerprints", "error", err)
		return nil, fmt.Errorf("failed to decode transactions by fingerprints: %w", err)
	}

	return txs, nil
}

// ExistingFingerprints returns the subset of the given transaction hashes that
// are already stored.
func (r *TransactionRepository) ExistingFingerprints(ctx context.Context, fingerprints []string) (map[string]struct{}, error) {
	if len(fingerprints) == 0 {
		return map[string]struct{}{}, nil
	}
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"tx_hash": bson.M{"$in": fingerprints}}
	opts := options.Find().SetProjection(bson.M{"tx_hash": 1})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to query existing transaction fingerprints", "error", err)
		return nil, fmt.Errorf("failed to query existing transaction fingerprints: %w", err)
	}
	defer cursor.Close(ctx)

	existing := make(map[string]struct{})
	for cursor.Next(ctx) {
		var doc struct {
			TxHash string `bson:"tx_hash"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode transaction fingerprint: %w", err)
		}
		existing[doc.TxHash] = struct{}{}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction fingerprints: %w", err)
	}

	return existing, nil
}

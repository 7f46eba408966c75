package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/settlement-reconciliation/internal/domain/settlement"
	"github.com/settlement-reconciliation/internal/domain/shared"
)

const (
	// ReconciliationCollectionName is the name of the reconciliations collection in MongoDB
	ReconciliationCollectionName = "reconciliations"
)

// ReconciliationRepository implements the settlement.ReconciliationRepository interface for MongoDB
type ReconciliationRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewReconciliationRepository creates a new MongoDB reconciliation repository
func NewReconciliationRepository(logger *slog.Logger, db *mongo.Database) settlement.ReconciliationRepository {
	return &ReconciliationRepository{
		db:     db,
		logger: logger,
	}
}

// ReplaceForSettlement deletes the settlement's unpaid rows and inserts the
// new run's rows. Paid rows survive re-runs untouched.
func (r *ReconciliationRepository) ReplaceForSettlement(ctx context.Context, settlementID uuid.UUID, rows []*settlement.Reconciliation) error {
	collection := r.db.Collection(ReconciliationCollectionName)

	filter := bson.M{
		"settlement_id": settlementID,
		"status":        bson.M{"$ne": shared.ReconStatusPaid},
	}
	if _, err := collection.DeleteMany(ctx, filter); err != nil {
		r.logger.Error("Failed to delete previous reconciliation rows",
			"settlement_id", settlementID.String(),
			"error", err)
		return fmt.Errorf("failed to delete previous reconciliation rows: %w", err)
	}

	if len(rows) == 0 {
		return nil
	}

	docs := make([]interface{}, len(rows))
	for i, row := range rows {
		docs[i] = row
	}
	if _, err := collection.InsertMany(ctx, docs); err != nil {
		r.logger.Error("Failed to insert reconciliation rows",
			"settlement_id", settlementID.String(),
			"count", len(rows),
			"error", err)
		return fmt.Errorf("failed to insert reconciliation rows: %w", err)
	}

	return nil
}

// GetBySettlementID retrieves all reconciliation rows of a settlement.
func (r *ReconciliationRepository) GetBySettlementID(ctx context.Context, settlementID uuid.UUID) ([]*settlement.Reconciliation, error) {
	collection := r.db.Collection(ReconciliationCollectionName)

	filter := bson.M{"settlement_id": settlementID}
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to get reconciliation rows",
			"settlement_id", settlementID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get reconciliation rows: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []*settlement.Reconciliation
	if err := cursor.All(ctx, &rows); err != nil {
		r.logger.Error("Failed to decode reconciliation rows",
			"settlement_id", settlementID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode reconciliation rows: %w", err)
	}

	return rows, nil
}

// GetByIDs retrieves reconciliation rows by their IDs.
func (r *ReconciliationRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*settlement.Reconciliation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	collection := r.db.Collection(ReconciliationCollectionName)

	filter := bson.M{"id": bson.M{"$in": ids}}
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to get reconciliation rows by IDs", "error", err)
		return nil, fmt.Errorf("failed to get reconciliation rows by IDs: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []*settlement.Reconciliation
	if err := cursor.All(ctx, &rows); err != nil {
		r.logger.Error("Failed to decode reconciliation rows", "error", err)
		return nil, fmt.Errorf("failed to decode reconciliation rows: %w", err)
	}

	return rows, nil
}

// ListPendingPayout retrieves all reconciled rows that have not yet been
// assigned to a payout batch, oldest first.
func (r *ReconciliationRepository) ListPendingPayout(ctx context.Context) ([]*settlement.Reconciliation, error) {
	collection := r.db.Collection(ReconciliationCollectionName)

	filter := bson.M{
		"status":          shared.ReconStatusReconciled,
		"payout_batch_id": bson.M{"$exists": false},
	}
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list pending payout rows", "error", err)
		return nil, fmt.Errorf("failed to list pending payout rows: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []*settlement.Reconciliation
	if err := cursor.All(ctx, &rows); err != nil {
		r.logger.Error("Failed to decode pending payout rows", "error", err)
		return nil, fmt.Errorf("failed to decode pending payout rows: %w", err)
	}

	return rows, nil
}

// MarkPaid transitions reconciled rows to paid, recording the batch and the
// payment time. Rows that are not in the reconciled state are left alone, so
// replayed payout messages are harmless. Returns the number of rows updated.
func (r *ReconciliationRepository) MarkPaid(ctx context.Context, ids []uuid.UUID, batchID uuid.UUID, paidAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	collection := r.db.Collection(ReconciliationCollectionName)

	filter := bson.M{
		"id":     bson.M{"$in": ids},
		"status": shared.ReconStatusReconciled,
	}
	update := bson.M{
		"$set": bson.M{
			"status":          shared.ReconStatusPaid,
			"payout_batch_id": batchID,
			"paid_at":         paidAt,
		},
	}

	result, err := collection.UpdateMany(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to mark reconciliation rows paid",
			"batch_id", batchID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to mark reconciliation rows paid: %w", err)
	}

	return result.ModifiedCount, nil
}

// ConsumedFingerprints returns the subset of the given transaction
// fingerprints already claimed by a reconciled or paid row. Claimed
// transactions must not enter the candidate pool of a later import.
func (r *ReconciliationRepository) ConsumedFingerprints(ctx context.Context, fingerprints []string) (map[string]struct{}, error) {
	if len(fingerprints) == 0 {
		return map[string]struct{}{}, nil
	}
	collection := r.db.Collection(ReconciliationCollectionName)

	filter := bson.M{
		"tx_fingerprint": bson.M{"$in": fingerprints},
		"status":         bson.M{"$in": []shared.ReconStatus{shared.ReconStatusReconciled, shared.ReconStatusPaid}},
	}
	opts := options.Find().SetProjection(bson.M{"tx_fingerprint": 1})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to query consumed fingerprints", "error", err)
		return nil, fmt.Errorf("failed to query consumed fingerprints: %w", err)
	}
	defer cursor.Close(ctx)

	consumed := make(map[string]struct{})
	for cursor.Next(ctx) {
		var doc struct {
			TxFingerprint string `bson:"tx_fingerprint"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode consumed fingerprint: %w", err)
		}
		consumed[doc.TxFingerprint] = struct{}{}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate consumed fingerprints: %w", err)
	}

	return consumed, nil
}

package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the collection indexes the repositories rely on.
// Creation is idempotent; it runs on every startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		SettlementCollectionName: {
			{
				Keys:    bson.D{{Key: "id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "hash_pdf", Value: 1}, {Key: "hash_csv", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "created_at", Value: -1}},
			},
		},
		LineCollectionName: {
			{
				Keys: bson.D{{Key: "settlement_id", Value: 1}},
			},
			{
				Keys:    bson.D{{Key: "line_hash", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
		TransactionCollectionName: {
			{
				Keys: bson.D{{Key: "settlement_id", Value: 1}},
			},
			{
				Keys:    bson.D{{Key: "tx_hash", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
		ReconciliationCollectionName: {
			{
				Keys: bson.D{{Key: "settlement_id", Value: 1}},
			},
			{
				Keys: bson.D{{Key: "id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "status", Value: 1}, {Key: "payout_batch_id", Value: 1}},
			},
			{
				Keys:    bson.D{{Key: "tx_fingerprint", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
		PayoutBatchCollectionName: {
			{
				Keys:    bson.D{{Key: "id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "organizer_id", Value: 1}, {Key: "created_at", Value: -1}},
			},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", collection, err)
		}
	}

	return nil
}

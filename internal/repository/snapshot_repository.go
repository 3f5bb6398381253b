package repository

import (
	"context"
	"time"

	"test-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SnapshotRepository struct {
	Col *mongo.Collection
}

func NewSnapshotRepository(db *mongo.Database) *SnapshotRepository {
	return &SnapshotRepository{Col: db.Collection("analytics_snapshots")}
}

func (r *SnapshotRepository) CreateIndexes(ctx context.Context) error {
	_, err := r.Col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "snapshot_type", Value: 1},
			{Key: "category", Value: 1},
			{Key: "snapshot_date", Value: -1},
		}},
	})
	return err
}

// Upsert stores a snapshot keyed by (type, category, calendar day), so a rerun
// for the same day replaces the earlier document instead of duplicating it.
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot *models.AnalyticsSnapshot) error {
	day := snapshot.SnapshotDate.Truncate(24 * time.Hour)
	snapshot.SnapshotDate = day
	snapshot.UpdatedAt = time.Now()
	if snapshot.ID == "" {
		snapshot.ID = primitive.NewObjectID().Hex()
	}

	filter := bson.M{
		"snapshot_type": snapshot.SnapshotType,
		"category":      snapshot.Category,
		"snapshot_date": day,
	}
	update := bson.M{
		"$set": bson.M{
			"metrics":      snapshot.Metrics,
			"test_metrics": snapshot.TestMetrics,
			"updated_at":   snapshot.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":           snapshot.ID,
			"snapshot_type": snapshot.SnapshotType,
			"category":      snapshot.Category,
			"snapshot_date": day,
			"created_at":    time.Now(),
		},
	}
	_, err := r.Col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// FindLatest returns the most recent snapshot for a type/category pair, or nil
// when none has been generated yet.
func (r *SnapshotRepository) FindLatest(ctx context.Context, snapshotType models.SnapshotType, category models.TestCategory) (*models.AnalyticsSnapshot, error) {
	var snapshot models.AnalyticsSnapshot
	opts := options.FindOne().SetSort(bson.D{{Key: "snapshot_date", Value: -1}})
	err := r.Col.FindOne(ctx, bson.M{
		"snapshot_type": snapshotType,
		"category":      category,
	}, opts).Decode(&snapshot)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *SnapshotRepository) FindRange(ctx context.Context, snapshotType models.SnapshotType, category models.TestCategory, from, to time.Time) ([]models.AnalyticsSnapshot, error) {
	filter := bson.M{
		"snapshot_type": snapshotType,
		"snapshot_date": bson.M{"$gte": from, "$lte": to},
	}
	if category != "" {
		filter["category"] = category
	}
	opts := options.Find().SetSort(bson.D{{Key: "snapshot_date", Value: 1}})
	cur, err := r.Col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var snapshots []models.AnalyticsSnapshot
	if err := cur.All(ctx, &snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}

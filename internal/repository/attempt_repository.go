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

type AttemptRepository struct {
	Col *mongo.Collection
}

func NewAttemptRepository(db *mongo.Database) *AttemptRepository {
	return &AttemptRepository{Col: db.Collection("test_attempts")}
}

func (r *AttemptRepository) CreateIndexes(ctx context.Context) error {
	_, err := r.Col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "test_id", Value: 1}, {Key: "candidate_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "candidate_id", Value: 1}}},
		{Keys: bson.D{{Key: "start_time", Value: -1}}},
	})
	return err
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *models.TestAttempt) error {
	if attempt.ID == "" {
		attempt.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now()
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	_, err := r.Col.InsertOne(ctx, attempt)
	return err
}

func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*models.TestAttempt, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, err
	}
	var attempt models.TestAttempt
	if err := r.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&attempt); err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindByStatus returns the attempt for (test, candidate) in the given status,
// or nil when none exists.
func (r *AttemptRepository) FindByStatus(ctx context.Context, testID, candidateID string, status models.AttemptStatus) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	err := r.Col.FindOne(ctx, bson.M{
		"test_id":      testID,
		"candidate_id": candidateID,
		"status":       status,
	}).Decode(&attempt)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) Save(ctx context.Context, attempt *models.TestAttempt) error {
	attempt.UpdatedAt = time.Now()
	_, err := r.Col.ReplaceOne(ctx, bson.M{"_id": attempt.ID}, attempt)
	return err
}

// FindInProgress returns every attempt still in progress; the reaper scans
// these for expiry.
func (r *AttemptRepository) FindInProgress(ctx context.Context) ([]models.TestAttempt, error) {
	cur, err := r.Col.Find(ctx, bson.M{"status": models.AttemptStatusInProgress})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var attempts []models.TestAttempt
	if err := cur.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

type AttemptFilter struct {
	Status      models.AttemptStatus
	TestID      string
	CandidateID string
}

func (r *AttemptRepository) FindByCandidate(ctx context.Context, candidateID string, filter AttemptFilter) ([]models.TestAttempt, error) {
	query := bson.M{"candidate_id": candidateID}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.TestID != "" {
		query["test_id"] = filter.TestID
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: -1}})
	cur, err := r.Col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var attempts []models.TestAttempt
	if err := cur.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

type PageOptions struct {
	Page  int
	Limit int
	Sort  string
	Desc  bool
}

// FindByTest returns one page of a test's attempts plus the unpaged total.
func (r *AttemptRepository) FindByTest(ctx context.Context, testID string, filter AttemptFilter, page PageOptions) ([]models.TestAttempt, int64, error) {
	query := bson.M{"test_id": testID}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.CandidateID != "" {
		query["candidate_id"] = filter.CandidateID
	}

	total, err := r.Col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	order := 1
	if page.Desc {
		order = -1
	}
	sortField := page.Sort
	if sortField == "" {
		sortField = "start_time"
	}
	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: order}}).
		SetSkip(int64((page.Page - 1) * page.Limit)).
		SetLimit(int64(page.Limit))

	cur, err := r.Col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var attempts []models.TestAttempt
	if err := cur.All(ctx, &attempts); err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

// FindByTestIDsSince returns every attempt for the given tests started at or
// after the cutoff; the analytics rollup reads its trailing window through this.
func (r *AttemptRepository) FindByTestIDsSince(ctx context.Context, testIDs []string, since time.Time) ([]models.TestAttempt, error) {
	if len(testIDs) == 0 {
		return nil, nil
	}
	cur, err := r.Col.Find(ctx, bson.M{
		"test_id":    bson.M{"$in": testIDs},
		"start_time": bson.M{"$gte": since},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var attempts []models.TestAttempt
	if err := cur.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

// FindByTestInRange returns a test's attempts with optional start-time bounds.
func (r *AttemptRepository) FindByTestInRange(ctx context.Context, testID string, from, to *time.Time) ([]models.TestAttempt, error) {
	query := bson.M{"test_id": testID}
	timeFilter := bson.M{}
	if from != nil {
		timeFilter["$gte"] = *from
	}
	if to != nil {
		timeFilter["$lte"] = *to
	}
	if len(timeFilter) > 0 {
		query["start_time"] = timeFilter
	}

	cur, err := r.Col.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var attempts []models.TestAttempt
	if err := cur.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

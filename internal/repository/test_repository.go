package repository

import (
	"context"

	"test-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type TestRepository struct {
	Col *mongo.Collection
}

func NewTestRepository(db *mongo.Database) *TestRepository {
	return &TestRepository{Col: db.Collection("tests")}
}

func (r *TestRepository) FindByID(ctx context.Context, id string) (*models.Test, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, err
	}
	var test models.Test
	if err := r.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&test); err != nil {
		return nil, err
	}
	return &test, nil
}

// FindByCategory returns every test in the category, or every test when the
// category is the "all" sentinel.
func (r *TestRepository) FindByCategory(ctx context.Context, category models.TestCategory) ([]models.Test, error) {
	filter := bson.M{}
	if category != models.CategoryAll {
		filter["category"] = category
	}
	cur, err := r.Col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var tests []models.Test
	if err := cur.All(ctx, &tests); err != nil {
		return nil, err
	}
	return tests, nil
}

func (r *TestRepository) SaveAnalytics(ctx context.Context, id string, analytics models.TestAnalytics) error {
	_, err := r.Col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"analytics": analytics}})
	return err
}

package repository

import (
	"context"

	"test-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type QuestionRepository struct {
	Col *mongo.Collection
}

func NewQuestionRepository(db *mongo.Database) *QuestionRepository {
	return &QuestionRepository{Col: db.Collection("questions")}
}

func (r *QuestionRepository) FindByID(ctx context.Context, id string) (*models.Question, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, err
	}
	var question models.Question
	if err := r.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&question); err != nil {
		return nil, err
	}
	return &question, nil
}

// FindByTest returns the test's questions ordered by question number.
func (r *QuestionRepository) FindByTest(ctx context.Context, testID string) ([]models.Question, error) {
	opts := options.Find().SetSort(bson.D{{Key: "question_number", Value: 1}})
	cur, err := r.Col.Find(ctx, bson.M{"test_id": testID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var questions []models.Question
	if err := cur.All(ctx, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *QuestionRepository) SaveAnalytics(ctx context.Context, id string, analytics models.QuestionAnalytics) error {
	_, err := r.Col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"analytics": analytics}})
	return err
}

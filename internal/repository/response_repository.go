package repository

import (
	"context"
	"time"

	"test-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type ResponseRepository struct {
	Col *mongo.Collection
}

func NewResponseRepository(db *mongo.Database) *ResponseRepository {
	return &ResponseRepository{Col: db.Collection("question_responses")}
}

func (r *ResponseRepository) CreateIndexes(ctx context.Context) error {
	_, err := r.Col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "attempt_id", Value: 1}, {Key: "question_id", Value: 1}}},
		{Keys: bson.D{{Key: "question_id", Value: 1}}},
	})
	return err
}

func (r *ResponseRepository) Create(ctx context.Context, response *models.QuestionResponse) error {
	if response.ID == "" {
		response.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now()
	response.CreatedAt = now
	response.UpdatedAt = now
	_, err := r.Col.InsertOne(ctx, response)
	return err
}

// CreateMany inserts a batch of responses in one call; used by attempt start to
// initialize one empty response per question.
func (r *ResponseRepository) CreateMany(ctx context.Context, responses []models.QuestionResponse) error {
	if len(responses) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, len(responses))
	for i := range responses {
		if responses[i].ID == "" {
			responses[i].ID = primitive.NewObjectID().Hex()
		}
		responses[i].CreatedAt = now
		responses[i].UpdatedAt = now
		docs[i] = responses[i]
	}
	_, err := r.Col.InsertMany(ctx, docs)
	return err
}

// FindOne returns the response for (attempt, question), or nil when it does not
// exist yet.
func (r *ResponseRepository) FindOne(ctx context.Context, attemptID, questionID string) (*models.QuestionResponse, error) {
	var response models.QuestionResponse
	err := r.Col.FindOne(ctx, bson.M{
		"attempt_id":  attemptID,
		"question_id": questionID,
	}).Decode(&response)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &response, nil
}

func (r *ResponseRepository) FindByAttempt(ctx context.Context, attemptID string) ([]models.QuestionResponse, error) {
	cur, err := r.Col.Find(ctx, bson.M{"attempt_id": attemptID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var responses []models.QuestionResponse
	if err := cur.All(ctx, &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

func (r *ResponseRepository) FindByAttemptIDs(ctx context.Context, attemptIDs []string) ([]models.QuestionResponse, error) {
	if len(attemptIDs) == 0 {
		return nil, nil
	}
	cur, err := r.Col.Find(ctx, bson.M{"attempt_id": bson.M{"$in": attemptIDs}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var responses []models.QuestionResponse
	if err := cur.All(ctx, &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

func (r *ResponseRepository) FindByQuestion(ctx context.Context, questionID string) ([]models.QuestionResponse, error) {
	cur, err := r.Col.Find(ctx, bson.M{"question_id": questionID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var responses []models.QuestionResponse
	if err := cur.All(ctx, &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

func (r *ResponseRepository) Save(ctx context.Context, response *models.QuestionResponse) error {
	response.UpdatedAt = time.Now()
	_, err := r.Col.ReplaceOne(ctx, bson.M{"_id": response.ID}, response)
	return err
}

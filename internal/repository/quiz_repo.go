package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"quizlive/internal/model"
)

// QuizRepo handles MongoDB operations for quiz definitions. The engine only
// reads quizzes; writes exist so the external authoring surface has
// somewhere to put them.
type QuizRepo interface {
	Create(ctx context.Context, quiz *model.Quiz) (string, error)
	GetByID(ctx context.Context, id string) (*model.Quiz, error)
}

type quizRepo struct {
	collection *mongo.Collection
}

// NewQuizRepo creates a new quiz repository.
func NewQuizRepo(db *mongo.Database) QuizRepo {
	return &quizRepo{
		collection: db.Collection("quizzes"),
	}
}

func (r *quizRepo) Create(ctx context.Context, quiz *model.Quiz) (string, error) {
	quiz.CreatedAt = time.Now()
	quiz.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, quiz)
	if err != nil {
		return "", err
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", nil
	}
	return oid.Hex(), nil
}

func (r *quizRepo) GetByID(ctx context.Context, id string) (*model.Quiz, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var quiz model.Quiz
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&quiz)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	quiz.ID = id
	return &quiz, nil
}

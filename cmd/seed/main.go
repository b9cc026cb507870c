package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizlive/internal/model"
	"quizlive/internal/repository"
)

func main() {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "quizlive"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	quizzes := repository.NewQuizRepo(client.Database(dbName))

	quiz := model.Quiz{
		Title: "General Knowledge Warmup",
		Questions: []model.Question{
			{
				ID:           "q1",
				Prompt:       "Which planet is known as the Red Planet?",
				TimeLimitSec: 20,
				Answers: []model.Answer{
					{Text: "Venus"},
					{Text: "Mars", IsCorrect: true},
					{Text: "Jupiter"},
					{Text: "Mercury"},
				},
			},
			{
				ID:           "q2",
				Prompt:       "What is the largest ocean on Earth?",
				TimeLimitSec: 15,
				Answers: []model.Answer{
					{Text: "Atlantic"},
					{Text: "Indian"},
					{Text: "Pacific", IsCorrect: true},
					{Text: "Arctic"},
				},
			},
			{
				ID:           "q3",
				Prompt:       "How many strings does a standard violin have?",
				TimeLimitSec: 10,
				Answers: []model.Answer{
					{Text: "Four", IsCorrect: true},
					{Text: "Five"},
					{Text: "Six"},
				},
			},
		},
	}

	id, err := quizzes.Create(ctx, &quiz)
	if err != nil {
		log.Fatalf("Failed to seed quiz: %v", err)
	}

	fmt.Printf("Seeded quiz %q with id %s\n", quiz.Title, id)
}

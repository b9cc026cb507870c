package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizlive/internal/cache"
	"quizlive/internal/config"
	"quizlive/internal/game"
	"quizlive/internal/repository"
	"quizlive/internal/transport/rest"
	"quizlive/internal/transport/ws"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB holds the quiz definitions the engine plays from.
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDB)
	quizRepo := repository.NewQuizRepo(db)

	// Redis carries the leaderboard mirror for dashboards.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	leaderboard := cache.NewLeaderboardCache(rdb)

	hub := ws.NewHub()
	registry := game.NewRegistry(cfg.RoomRetention)
	registry.SetEvictHook(func(code string) {
		clearCtx, clearCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer clearCancel()
		if err := leaderboard.Clear(clearCtx, code); err != nil {
			log.Printf("warning: could not clear mirror for room %s: %v", code, err)
		}
	})
	go registry.Run(ctx, cfg.SweepInterval)

	ctrl := game.NewController(cfg, registry, hub, quizRepo, leaderboard)
	wsHandler := ws.NewHandler(hub, ctrl)

	router := rest.NewRouter(&rest.Container{
		QuizRepo:        quizRepo,
		Leaderboard:     leaderboard,
		LeaderboardSize: cfg.LeaderboardSize,
		WSHandler:       wsHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.HTTPPort)
		log.Println("Endpoints:")
		log.Println("  POST /v1/quizzes")
		log.Println("  GET  /v1/quizzes/{quizId}")
		log.Println("  GET  /v1/rooms/{code}/leaderboard")
		log.Println("  WS   /v1/ws")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

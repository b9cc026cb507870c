package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server settings and the game timing constants.
type Config struct {
	MongoURI  string
	MongoDB   string
	RedisAddr string
	HTTPPort  string

	// Game timing. ReadingDuration is fixed for every question; the
	// answering phase duration comes from each question's time limit,
	// falling back to DefaultAnswerTime when the quiz omits one.
	ReadingDuration   time.Duration
	DefaultAnswerTime time.Duration

	// Registry housekeeping.
	SweepInterval time.Duration
	RoomRetention time.Duration

	LeaderboardSize int
}

// Load reads configuration from the environment with sane defaults.
func Load() *Config {
	return &Config{
		MongoURI:  getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:   getEnv("MONGO_DB", "quizlive"),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		HTTPPort:  getEnv("PORT", "8080"),

		ReadingDuration:   getDuration("READING_DURATION", 5*time.Second),
		DefaultAnswerTime: getDuration("DEFAULT_ANSWER_TIME", 20*time.Second),
		SweepInterval:     getDuration("SWEEP_INTERVAL", 10*time.Minute),
		RoomRetention:     getDuration("ROOM_RETENTION", time.Hour),

		LeaderboardSize: getInt("LEADERBOARD_SIZE", 10),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

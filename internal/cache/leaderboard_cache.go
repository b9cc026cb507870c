package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quizlive/internal/model"
)

// LeaderboardCache mirrors room standings into Redis so dashboards can read
// them without touching the game engine. The in-memory room remains the
// source of truth; this is a write-behind copy refreshed after every scoring
// pass and expired with the room.
type LeaderboardCache interface {
	Replace(ctx context.Context, roomCode string, entries []model.LeaderboardEntry) error
	GetTop(ctx context.Context, roomCode string, limit int) ([]model.LeaderboardEntry, error)
	Clear(ctx context.Context, roomCode string) error
}

type leaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache creates a Redis-backed leaderboard mirror.
func NewLeaderboardCache(client *redis.Client) LeaderboardCache {
	return &leaderboardCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func (c *leaderboardCache) key(roomCode string) string {
	return fmt.Sprintf("room:%s:lb", roomCode)
}

func (c *leaderboardCache) namesKey(roomCode string) string {
	return fmt.Sprintf("room:%s:names", roomCode)
}

func (c *leaderboardCache) Replace(ctx context.Context, roomCode string, entries []model.LeaderboardEntry) error {
	key := c.key(roomCode)
	namesKey := c.namesKey(roomCode)

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key, namesKey)
	for _, e := range entries {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(e.Score), Member: e.PlayerID})
		pipe.HSet(ctx, namesKey, e.PlayerID, e.Name)
	}
	pipe.Expire(ctx, key, c.ttl)
	pipe.Expire(ctx, namesKey, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *leaderboardCache) GetTop(ctx context.Context, roomCode string, limit int) ([]model.LeaderboardEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(roomCode), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, len(results))
	for i, z := range results {
		playerID, _ := z.Member.(string)
		name, err := c.client.HGet(ctx, c.namesKey(roomCode), playerID).Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		entries[i] = model.LeaderboardEntry{
			PlayerID: playerID,
			Name:     name,
			Score:    int(z.Score),
			Rank:     i + 1,
		}
	}
	return entries, nil
}

func (c *leaderboardCache) Clear(ctx context.Context, roomCode string) error {
	return c.client.Del(ctx, c.key(roomCode), c.namesKey(roomCode)).Err()
}

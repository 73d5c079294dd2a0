package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gamehub-engine/internal/config"
	"github.com/gamehub-engine/internal/domain"
)

// Store provides the Redis-backed global leaderboards (all-time score
// totals per game type) and the AI response cache.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStore creates a new Redis store
func NewStore(cfg *config.RedisConfig, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Store{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *Store) Client() *redis.Client {
	return s.client
}

// leaderboardKey returns the Redis key for a game type's all-time sorted set
func (s *Store) leaderboardKey(gameType domain.GameType) string {
	return fmt.Sprintf("gamehub:leaderboard:%s", gameType)
}

// playerNameKey returns the Redis key for a player's display name cache
func (s *Store) playerNameKey(playerID string) string {
	return fmt.Sprintf("gamehub:player:%s:name", playerID)
}

// AddScore adds a finished session's score to the player's all-time total
func (s *Store) AddScore(ctx context.Context, gameType domain.GameType, playerID string, delta int64) (int64, error) {
	key := s.leaderboardKey(gameType)
	total, err := s.client.ZIncrBy(ctx, key, float64(delta), playerID).Result()
	if err != nil {
		return 0, fmt.Errorf("adding score: %w", err)
	}
	return int64(total), nil
}

// SetPlayerName caches a player's display name for leaderboard reads
func (s *Store) SetPlayerName(ctx context.Context, playerID, name string) error {
	if err := s.client.Set(ctx, s.playerNameKey(playerID), name, 0).Err(); err != nil {
		return fmt.Errorf("setting player name: %w", err)
	}
	return nil
}

// TopN returns the top N players for a game type (descending totals)
func (s *Store) TopN(ctx context.Context, gameType domain.GameType, n int) ([]domain.LeaderboardEntry, error) {
	key := s.leaderboardKey(gameType)
	results, err := s.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(results))
	for i, result := range results {
		playerID := result.Member.(string)
		entries[i] = domain.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: playerID,
			Score:    int64(result.Score),
		}
		if name, err := s.client.Get(ctx, s.playerNameKey(playerID)).Result(); err == nil {
			entries[i].Name = name
		}
	}
	return entries, nil
}

// PlayerRank returns a player's all-time rank and total for a game type
func (s *Store) PlayerRank(ctx context.Context, gameType domain.GameType, playerID string) (*domain.LeaderboardEntry, error) {
	key := s.leaderboardKey(gameType)

	// Use pipeline to get both rank and score
	pipe := s.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, key, playerID)
	scoreCmd := pipe.ZScore(ctx, key, playerID)
	_, err := pipe.Exec(ctx)

	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player rank: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting rank result: %w", err)
	}

	score, err := scoreCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting score result: %w", err)
	}

	return &domain.LeaderboardEntry{
		Rank:     int(rank) + 1, // Convert 0-indexed to 1-indexed
		PlayerID: playerID,
		Score:    int64(score),
	}, nil
}

// Count returns the number of ranked players for a game type
func (s *Store) Count(ctx context.Context, gameType domain.GameType) (int64, error) {
	key := s.leaderboardKey(gameType)
	count, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// AllTotals returns every player's all-time total for a game type,
// used by the sync worker
func (s *Store) AllTotals(ctx context.Context, gameType domain.GameType) (map[string]int64, error) {
	key := s.leaderboardKey(gameType)
	results, err := s.client.ZRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("getting all totals: %w", err)
	}

	totals := make(map[string]int64, len(results))
	for _, result := range results {
		totals[result.Member.(string)] = int64(result.Score)
	}
	return totals, nil
}

// BatchSetTotals writes multiple totals using pipelining, used when
// rebuilding Redis from the archive after a restart
func (s *Store) BatchSetTotals(ctx context.Context, gameType domain.GameType, totals map[string]int64) error {
	key := s.leaderboardKey(gameType)
	pipe := s.client.Pipeline()

	for playerID, total := range totals {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(total),
			Member: playerID,
		})
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("batch setting totals: %w", err)
	}
	return nil
}

// Get implements the AI response cache read
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading cache: %w", err)
	}
	return val, true, nil
}

// Set implements the AI response cache write with TTL
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

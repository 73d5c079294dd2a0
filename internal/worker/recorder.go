package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gamehub-engine/internal/domain"
	"github.com/gamehub-engine/internal/postgres"
	"github.com/gamehub-engine/internal/redis"
)

// Recorder consumes engine lifecycle events and maintains the read
// models outside the engine: the Redis all-time leaderboards and the
// PostgreSQL event audit log. It satisfies the engine's event sink;
// all writes happen off the caller's goroutine and are best-effort.
type Recorder struct {
	redis    *redis.Store
	postgres *postgres.Repository
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewRecorder creates a recorder. Either store may be nil to disable
// the corresponding write path.
func NewRecorder(store *redis.Store, repo *postgres.Repository, logger *slog.Logger) *Recorder {
	return &Recorder{
		redis:    store,
		postgres: repo,
		logger:   logger,
	}
}

// Publish handles one lifecycle event without blocking the engine
func (r *Recorder) Publish(ctx context.Context, event domain.Event) {
	// Heartbeats are high-volume and carry no durable information
	if event.Type == domain.EventGameUpdate {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.record(event)
	}()
}

// Close waits for in-flight writes to drain
func (r *Recorder) Close() {
	r.wg.Wait()
}

func (r *Recorder) record(event domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if r.postgres != nil {
		if err := r.postgres.RecordEvent(ctx, event); err != nil {
			r.logger.Warn("event audit write failed",
				"session_id", event.SessionID, "type", event.Type, "error", err)
		}
	}

	if event.Type == domain.EventGameFinished && r.redis != nil {
		data, ok := event.Data.(domain.GameFinishedData)
		if !ok {
			return
		}
		if data.Reason == domain.EndReasonCancelled {
			return
		}
		for _, entry := range data.Leaderboard {
			if entry.IsAI || entry.Score == 0 {
				continue
			}
			if _, err := r.redis.AddScore(ctx, data.GameType, entry.PlayerID, entry.Score); err != nil {
				r.logger.Warn("leaderboard total update failed",
					"player_id", entry.PlayerID, "error", err)
				continue
			}
			if entry.Name != "" {
				if err := r.redis.SetPlayerName(ctx, entry.PlayerID, entry.Name); err != nil {
					r.logger.Warn("player name cache write failed",
						"player_id", entry.PlayerID, "error", err)
				}
			}
		}
	}
}

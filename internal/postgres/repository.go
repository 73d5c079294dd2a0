package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gamehub-engine/internal/config"
	"github.com/gamehub-engine/internal/domain"
)

// Repository provides PostgreSQL-based persistence: the finished-session
// archive, the lifecycle-event audit log and durable all-time totals.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS game_sessions (
			id VARCHAR(64) PRIMARY KEY,
			game_type VARCHAR(32) NOT NULL,
			status VARCHAR(16) NOT NULL,
			end_reason VARCHAR(16),
			winner_id VARCHAR(64),
			turn_count INT NOT NULL DEFAULT 0,
			ai_interactions INT NOT NULL DEFAULT 0,
			players JSONB,
			leaderboard JSONB,
			game_data JSONB,
			tx_hashes JSONB,
			created_at TIMESTAMP NOT NULL,
			started_at TIMESTAMP,
			ended_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS session_events (
			id BIGSERIAL PRIMARY KEY,
			session_id VARCHAR(64) NOT NULL,
			event_type VARCHAR(32) NOT NULL,
			payload JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS player_totals (
			game_type VARCHAR(32) NOT NULL,
			player_id VARCHAR(64) NOT NULL,
			total_score BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (game_type, player_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_game_sessions_type ON game_sessions(game_type, ended_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_player_totals_score ON player_totals(game_type, total_score DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// ArchiveSession persists a terminal session snapshot
func (r *Repository) ArchiveSession(ctx context.Context, session domain.Session) error {
	players, err := json.Marshal(session.Players)
	if err != nil {
		return fmt.Errorf("marshaling players: %w", err)
	}
	leaderboard, err := json.Marshal(session.Leaderboard)
	if err != nil {
		return fmt.Errorf("marshaling leaderboard: %w", err)
	}
	gameData, err := json.Marshal(session.GameData)
	if err != nil {
		return fmt.Errorf("marshaling game data: %w", err)
	}
	txHashes, err := json.Marshal(session.TxHashes)
	if err != nil {
		return fmt.Errorf("marshaling tx hashes: %w", err)
	}

	query := `
		INSERT INTO game_sessions (id, game_type, status, end_reason, winner_id, turn_count,
			ai_interactions, players, leaderboard, game_data, tx_hashes, created_at, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = $3, end_reason = $4, winner_id = $5, turn_count = $6,
			ai_interactions = $7, players = $8, leaderboard = $9, game_data = $10,
			tx_hashes = $11, ended_at = $14
	`
	_, err = r.pool.Exec(ctx, query,
		session.ID,
		string(session.Config.GameType),
		string(session.Status),
		string(session.EndReason),
		session.WinnerID,
		session.TurnCount,
		session.AIInteractions,
		players,
		leaderboard,
		gameData,
		txHashes,
		session.CreatedAt,
		nullableTime(session.StartedAt),
		nullableTime(session.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("archiving session: %w", err)
	}
	return nil
}

// RecordEvent records a lifecycle event for auditing
func (r *Repository) RecordEvent(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	query := `
		INSERT INTO session_events (session_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = r.pool.Exec(ctx, query, event.SessionID, event.Type, payload, event.Timestamp)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// ArchivedSession is one row of the finished-session archive
type ArchivedSession struct {
	ID             string                    `json:"id"`
	GameType       domain.GameType           `json:"game_type"`
	Status         domain.SessionStatus      `json:"status"`
	EndReason      domain.EndReason          `json:"end_reason,omitempty"`
	WinnerID       string                    `json:"winner_id,omitempty"`
	TurnCount      int                       `json:"turn_count"`
	AIInteractions int                       `json:"ai_interactions"`
	Leaderboard    []domain.LeaderboardEntry `json:"leaderboard"`
	TxHashes       []string                  `json:"tx_hashes,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	EndedAt        *time.Time                `json:"ended_at,omitempty"`
}

// ListSessions retrieves archived sessions, newest first. gameType may
// be empty to list across all game types.
func (r *Repository) ListSessions(ctx context.Context, gameType domain.GameType, limit, offset int) ([]ArchivedSession, error) {
	query := `
		SELECT id, game_type, status, end_reason, winner_id, turn_count,
			   ai_interactions, leaderboard, tx_hashes, created_at, ended_at
		FROM game_sessions
		WHERE ($1 = '' OR game_type = $1)
		ORDER BY ended_at DESC NULLS LAST
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, string(gameType), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []ArchivedSession
	for rows.Next() {
		var s ArchivedSession
		var leaderboard, txHashes []byte
		err := rows.Scan(
			&s.ID,
			&s.GameType,
			&s.Status,
			&s.EndReason,
			&s.WinnerID,
			&s.TurnCount,
			&s.AIInteractions,
			&leaderboard,
			&txHashes,
			&s.CreatedAt,
			&s.EndedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if len(leaderboard) > 0 {
			if err := json.Unmarshal(leaderboard, &s.Leaderboard); err != nil {
				return nil, fmt.Errorf("decoding leaderboard: %w", err)
			}
		}
		if len(txHashes) > 0 {
			if err := json.Unmarshal(txHashes, &s.TxHashes); err != nil {
				return nil, fmt.Errorf("decoding tx hashes: %w", err)
			}
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// GetSession retrieves one archived session by ID
func (r *Repository) GetSession(ctx context.Context, sessionID string) (*ArchivedSession, error) {
	query := `
		SELECT id, game_type, status, end_reason, winner_id, turn_count,
			   ai_interactions, leaderboard, tx_hashes, created_at, ended_at
		FROM game_sessions
		WHERE id = $1
	`
	var s ArchivedSession
	var leaderboard, txHashes []byte
	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&s.ID,
		&s.GameType,
		&s.Status,
		&s.EndReason,
		&s.WinnerID,
		&s.TurnCount,
		&s.AIInteractions,
		&leaderboard,
		&txHashes,
		&s.CreatedAt,
		&s.EndedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}
	if len(leaderboard) > 0 {
		if err := json.Unmarshal(leaderboard, &s.Leaderboard); err != nil {
			return nil, fmt.Errorf("decoding leaderboard: %w", err)
		}
	}
	if len(txHashes) > 0 {
		if err := json.Unmarshal(txHashes, &s.TxHashes); err != nil {
			return nil, fmt.Errorf("decoding tx hashes: %w", err)
		}
	}
	return &s, nil
}

// BatchUpsertTotals inserts or updates multiple all-time totals efficiently
func (r *Repository) BatchUpsertTotals(ctx context.Context, gameType domain.GameType, totals map[string]int64) error {
	if len(totals) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO player_totals (game_type, player_id, total_score, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_type, player_id)
		DO UPDATE SET total_score = $3, updated_at = $4
	`
	now := time.Now()

	for playerID, total := range totals {
		batch.Queue(query, string(gameType), playerID, total, now)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range totals {
		_, err := br.Exec()
		if err != nil {
			return fmt.Errorf("batch upserting totals: %w", err)
		}
	}
	return nil
}

// AllTotals retrieves every player's durable total for a game type (for sync)
func (r *Repository) AllTotals(ctx context.Context, gameType domain.GameType) (map[string]int64, error) {
	query := `SELECT player_id, total_score FROM player_totals WHERE game_type = $1`
	rows, err := r.pool.Query(ctx, query, string(gameType))
	if err != nil {
		return nil, fmt.Errorf("getting all totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var playerID string
		var total int64
		if err := rows.Scan(&playerID, &total); err != nil {
			return nil, fmt.Errorf("scanning total: %w", err)
		}
		totals[playerID] = total
	}
	return totals, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

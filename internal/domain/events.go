package domain

import "time"

// Event types emitted over the session lifecycle
const (
	EventSessionCreated  = "session_created"
	EventPlayerJoined    = "player_joined"
	EventGameStarted     = "game_started"
	EventActionProcessed = "action_processed"
	EventGameUpdate      = "game_update"
	EventGameFinished    = "game_finished"
)

// Event is the envelope published for every lifecycle transition
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SessionCreatedData accompanies EventSessionCreated
type SessionCreatedData struct {
	Config    GameConfig `json:"config"`
	CreatorID string     `json:"creator_id"`
}

// PlayerJoinedData accompanies EventPlayerJoined
type PlayerJoinedData struct {
	Player      Player `json:"player"`
	PlayerCount int    `json:"player_count"`
}

// GameStartedData accompanies EventGameStarted
type GameStartedData struct {
	GameType    GameType  `json:"game_type"`
	PlayerCount int       `json:"player_count"`
	AIPlayers   int       `json:"ai_players"`
	StartedAt   time.Time `json:"started_at"`
}

// ActionProcessedData accompanies EventActionProcessed
type ActionProcessedData struct {
	Action      Action             `json:"action"`
	TurnCount   int                `json:"turn_count"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// GameUpdateData accompanies the per-second EventGameUpdate heartbeat
type GameUpdateData struct {
	Status      SessionStatus      `json:"status"`
	TurnCount   int                `json:"turn_count"`
	Remaining   time.Duration      `json:"remaining"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// GameFinishedData accompanies EventGameFinished
type GameFinishedData struct {
	GameType    GameType           `json:"game_type"`
	Reason      EndReason          `json:"reason"`
	WinnerID    string             `json:"winner_id,omitempty"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	TurnCount   int                `json:"turn_count"`
}

package domain

import "time"

// SessionStatus is the lifecycle state of a game session.
// Transitions are monotonic: waiting -> starting -> active -> finished,
// with waiting -> cancelled as the only other path. Terminal states never
// transition out.
type SessionStatus string

const (
	StatusWaiting   SessionStatus = "waiting"
	StatusStarting  SessionStatus = "starting"
	StatusActive    SessionStatus = "active"
	StatusFinished  SessionStatus = "finished"
	StatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the status is an end state
func (s SessionStatus) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// EndReason records why a session ended
type EndReason string

const (
	EndReasonVictory   EndReason = "victory"
	EndReasonTimeout   EndReason = "timeout"
	EndReasonCancelled EndReason = "cancelled"
)

// LeaderboardEntry represents a single ranked row. Within a session the
// order is descending score; equal scores rank the earlier joiner higher.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name,omitempty"`
	Score    int64  `json:"score"`
	IsAI     bool   `json:"is_ai,omitempty"`
}

// Session is an immutable snapshot of one live game session as exposed to
// callers. The engine owns the mutable aggregate; all queries and events
// carry copies.
type Session struct {
	ID             string                 `json:"id"`
	Config         GameConfig             `json:"config"`
	Status         SessionStatus          `json:"status"`
	Players        []Player               `json:"players"`
	CurrentTurn    string                 `json:"current_turn,omitempty"`
	TurnCount      int                    `json:"turn_count"`
	CreatedAt      time.Time              `json:"created_at"`
	StartedAt      time.Time              `json:"started_at,omitempty"`
	EndedAt        time.Time              `json:"ended_at,omitempty"`
	WinnerID       string                 `json:"winner_id,omitempty"`
	EndReason      EndReason              `json:"end_reason,omitempty"`
	Leaderboard    []LeaderboardEntry     `json:"leaderboard"`
	GameData       map[string]interface{} `json:"game_data,omitempty"`
	AIInteractions int                    `json:"ai_interactions"`
	TxHashes       []string               `json:"tx_hashes,omitempty"`
}

// PlayerByID returns the snapshot's player with the given ID, if present
func (s *Session) PlayerByID(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// HumanPlayers returns the snapshot's non-AI players
func (s *Session) HumanPlayers() []Player {
	var out []Player
	for _, p := range s.Players {
		if !p.IsAI {
			out = append(out, p)
		}
	}
	return out
}

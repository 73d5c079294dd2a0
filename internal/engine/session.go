package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/gamehub-engine/internal/domain"
)

// session is the engine-internal mutable aggregate. Every field is
// guarded by mu; snapshots are taken under the lock and handed out as
// immutable domain.Session values.
type session struct {
	mu sync.Mutex

	id          string
	config      domain.GameConfig
	status      domain.SessionStatus
	players     map[string]*domain.Player
	joinOrder   []string
	currentTurn string
	turnCount   int

	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time

	winnerID  string
	endReason domain.EndReason

	leaderboard    []domain.LeaderboardEntry
	gameData       map[string]interface{}
	aiInteractions int
	txHashes       []string

	// autoStartAt is the pending auto-start deadline; zero means none.
	// It is cleared on any transition out of waiting, so a scheduled
	// auto-start cannot race a manual start.
	autoStartAt time.Time

	// aiDue maps AI player IDs to their next decision time. Cleared on
	// session end so a late scheduler tick is a no-op.
	aiDue map[string]time.Time
}

func newSession(id string, cfg domain.GameConfig, now time.Time) *session {
	return &session{
		id:        id,
		config:    cfg,
		status:    domain.StatusWaiting,
		players:   make(map[string]*domain.Player),
		gameData:  make(map[string]interface{}),
		aiDue:     make(map[string]time.Time),
		createdAt: now,
	}
}

// recomputeLeaderboardLocked rebuilds the leaderboard: descending score,
// ties broken by join order (earlier joiner ranks higher). Player ranks
// are updated in place.
func (s *session) recomputeLeaderboardLocked() {
	entries := make([]domain.LeaderboardEntry, 0, len(s.players))
	for _, id := range s.joinOrder {
		p := s.players[id]
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.Score,
			IsAI:     p.IsAI,
		})
	}
	// Stable sort over join order makes the tie-break explicit
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	for i := range entries {
		entries[i].Rank = i + 1
		s.players[entries[i].PlayerID].Rank = i + 1
	}
	s.leaderboard = entries
}

// copyStateBag deep-copies the nested maps and slices rule handlers
// build up, so a snapshot stays stable while later actions mutate the
// live session.
func copyStateBag(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = copyStateValue(v)
	}
	return out
}

func copyStateValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return copyStateBag(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyStateValue(item)
		}
		return out
	default:
		return val
	}
}

func (s *session) leaderboardCopyLocked() []domain.LeaderboardEntry {
	out := make([]domain.LeaderboardEntry, len(s.leaderboard))
	copy(out, s.leaderboard)
	return out
}

// snapshotLocked builds an immutable view of the session. Players are
// listed in join order.
func (s *session) snapshotLocked() domain.Session {
	players := make([]domain.Player, 0, len(s.players))
	for _, id := range s.joinOrder {
		players = append(players, *s.players[id])
	}
	gameData := copyStateBag(s.gameData)
	txHashes := make([]string, len(s.txHashes))
	copy(txHashes, s.txHashes)

	return domain.Session{
		ID:             s.id,
		Config:         s.config,
		Status:         s.status,
		Players:        players,
		CurrentTurn:    s.currentTurn,
		TurnCount:      s.turnCount,
		CreatedAt:      s.createdAt,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
		WinnerID:       s.winnerID,
		EndReason:      s.endReason,
		Leaderboard:    s.leaderboardCopyLocked(),
		GameData:       gameData,
		AIInteractions: s.aiInteractions,
		TxHashes:       txHashes,
	}
}

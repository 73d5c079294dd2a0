package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gamehub-engine/internal/domain"
)

// AI player display names, paired with a short ID suffix at backfill time
var aiNamePool = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon",
	"Wolf", "Hawk", "Viper", "Ghost", "Titan", "Frost", "Cyber", "Nova",
	"Raven", "Omega", "Alpha", "Delta", "Sigma", "Quantum", "Rebel",
	"Spark", "Turbo", "Oracle", "Cipher", "Vector", "Nexus",
}

// Run drives the scheduler: one tick per interval advances auto-start
// deadlines, session timeouts, heartbeats and AI decision due times for
// every live session. It blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.logger.Info("engine scheduler started", "tick_interval", e.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine scheduler stopping")
			return
		case <-ticker.C:
			e.tick(ctx, e.clock.Now())
		}
	}
}

// tick advances every live session once. Exposed internally so tests can
// drive the scheduler with a synthetic clock.
func (e *Engine) tick(ctx context.Context, now time.Time) {
	e.mu.RLock()
	live := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		live = append(live, s)
	}
	e.mu.RUnlock()

	for _, s := range live {
		e.tickSession(ctx, s, now)
	}
}

func (e *Engine) tickSession(ctx context.Context, s *session, now time.Time) {
	s.mu.Lock()
	switch s.status {
	case domain.StatusWaiting:
		if !s.autoStartAt.IsZero() && !now.Before(s.autoStartAt) {
			ev, ok := e.startLocked(s, now)
			s.mu.Unlock()
			if ok {
				e.sink.Publish(ctx, ev)
			}
			return
		}
		s.mu.Unlock()

	case domain.StatusActive:
		if now.Sub(s.startedAt) >= s.config.Duration {
			var winnerID string
			if len(s.leaderboard) > 0 {
				winnerID = s.leaderboard[0].PlayerID
			}
			ev := e.endLocked(s, domain.StatusFinished, domain.EndReasonTimeout, winnerID, now)
			s.mu.Unlock()
			e.sink.Publish(ctx, ev)
			return
		}

		heartbeat := domain.Event{
			Type:      domain.EventGameUpdate,
			SessionID: s.id,
			Timestamp: now,
			Data: domain.GameUpdateData{
				Status:      s.status,
				TurnCount:   s.turnCount,
				Remaining:   s.config.Duration - now.Sub(s.startedAt),
				Leaderboard: s.leaderboardCopyLocked(),
			},
		}

		var due []domain.Player
		for id, at := range s.aiDue {
			if at.After(now) {
				continue
			}
			p, ok := s.players[id]
			if !ok {
				delete(s.aiDue, id)
				continue
			}
			due = append(due, *p)
			s.aiDue[id] = now.Add(p.Difficulty.DecisionInterval())
		}
		var snap domain.Session
		if len(due) > 0 {
			s.aiInteractions += len(due)
			snap = s.snapshotLocked()
		}
		s.mu.Unlock()

		e.sink.Publish(ctx, heartbeat)
		for _, p := range due {
			player := p
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				e.runAITurn(ctx, snap, player)
			}()
		}

	default:
		s.mu.Unlock()
	}
}

// startLocked transitions waiting -> starting -> active: it backfills AI
// players up to min(free slots, the configured percentage of max players),
// arms per-AI decision deadlines and clears the auto-start deadline.
// Backfill cannot fail; the session always proceeds to active.
func (e *Engine) startLocked(s *session, now time.Time) (domain.Event, bool) {
	if s.status != domain.StatusWaiting {
		return domain.Event{}, false
	}

	s.status = domain.StatusStarting
	s.startedAt = now
	s.autoStartAt = time.Time{}

	aiAdded := 0
	if s.config.AIEnabled && len(s.players) < s.config.MaxPlayers {
		quota := s.config.MaxPlayers * e.cfg.AIBackfillPercent / 100
		if free := s.config.MaxPlayers - len(s.players); quota > free {
			quota = free
		}
		for i := 0; i < quota; i++ {
			id := uuid.New().String()
			p := &domain.Player{
				ID:         id,
				Name:       fmt.Sprintf("%s-%s", aiNamePool[rand.Intn(len(aiNamePool))], strings.Split(id, "-")[0][:4]),
				Rank:       len(s.players) + 1,
				IsAI:       true,
				Difficulty: domain.Difficulties[rand.Intn(len(domain.Difficulties))],
				JoinedAt:   now,
			}
			s.players[id] = p
			s.joinOrder = append(s.joinOrder, id)
			aiAdded++
		}
	}

	for _, p := range s.players {
		if p.IsAI {
			s.aiDue[p.ID] = now.Add(p.Difficulty.DecisionInterval())
		}
	}

	s.status = domain.StatusActive
	s.recomputeLeaderboardLocked()

	e.logger.Info("session started",
		"session_id", s.id,
		"game_type", s.config.GameType,
		"players", len(s.players),
		"ai_players", aiAdded,
	)

	return domain.Event{
		Type:      domain.EventGameStarted,
		SessionID: s.id,
		Timestamp: now,
		Data: domain.GameStartedData{
			GameType:    s.config.GameType,
			PlayerCount: len(s.players),
			AIPlayers:   aiAdded,
			StartedAt:   now,
		},
	}, true
}

// endLocked moves the session into a terminal state, clears every pending
// deadline so late ticks are no-ops, and hands a snapshot to the
// asynchronous settlement path.
func (e *Engine) endLocked(s *session, status domain.SessionStatus, reason domain.EndReason, winnerID string, now time.Time) domain.Event {
	s.status = status
	s.endedAt = now
	s.winnerID = winnerID
	s.endReason = reason
	s.autoStartAt = time.Time{}
	s.aiDue = make(map[string]time.Time)
	s.recomputeLeaderboardLocked()

	snap := s.snapshotLocked()

	e.logger.Info("session ended",
		"session_id", s.id,
		"reason", reason,
		"winner_id", winnerID,
		"turns", s.turnCount,
	)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.finalize(snap)
	}()

	return domain.Event{
		Type:      domain.EventGameFinished,
		SessionID: s.id,
		Timestamp: now,
		Data: domain.GameFinishedData{
			GameType:    s.config.GameType,
			Reason:      reason,
			WinnerID:    winnerID,
			Leaderboard: snap.Leaderboard,
			TurnCount:   snap.TurnCount,
		},
	}
}

// finalize performs post-terminal settlement: submits each human player's
// final score, mints the winner's reward when eligible, archives the
// session and removes it from the live set. Every step is best-effort;
// the in-memory terminal state never depends on settlement succeeding.
func (e *Engine) finalize(snap domain.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SettleTimeout)
	defer cancel()

	if e.chain != nil && snap.EndReason != domain.EndReasonCancelled {
		for _, p := range snap.HumanPlayers() {
			if p.Wallet == "" {
				continue
			}
			hash, err := e.chain.SubmitGameScore(ctx, p.Wallet, snap.ID, p.Score)
			if err != nil {
				e.logger.Warn("score settlement failed",
					"session_id", snap.ID, "player_id", p.ID, "error", err)
				continue
			}
			snap.TxHashes = append(snap.TxHashes, hash)
		}

		if snap.Config.RewardEligible && snap.WinnerID != "" {
			if winner, ok := snap.PlayerByID(snap.WinnerID); ok && !winner.IsAI && winner.Wallet != "" {
				uri := fmt.Sprintf("%s/%s/%s.json",
					strings.TrimSuffix(e.cfg.RewardBaseURI, "/"), snap.Config.GameType, snap.ID)
				hash, err := e.chain.MintNFTReward(ctx, winner.Wallet, snap.Config.GameType, "champion", uri)
				if err != nil {
					e.logger.Warn("reward mint failed",
						"session_id", snap.ID, "winner_id", winner.ID, "error", err)
				} else {
					snap.TxHashes = append(snap.TxHashes, hash)
				}
			}
		}
	}

	if e.archiver != nil {
		if err := e.archiver.ArchiveSession(ctx, snap); err != nil {
			e.logger.Warn("session archive failed", "session_id", snap.ID, "error", err)
		}
	}

	e.removeSession(snap.ID)
}

// runAITurn asks the advisor for the AI player's next move and submits it
// through the same ProcessAction path as a human action. Any advisor
// failure falls back to a structurally valid random action so the AI
// player never skips its turn.
func (e *Engine) runAITurn(ctx context.Context, snap domain.Session, player domain.Player) {
	var action domain.Action
	if e.advisor != nil {
		actx, cancel := context.WithTimeout(ctx, e.cfg.AdvisorTimeout)
		proposed, err := e.advisor.ProposeAction(actx, snap, player)
		cancel()
		if err != nil {
			e.logger.Warn("AI proposal failed, using random action",
				"session_id", snap.ID, "player_id", player.ID, "error", err)
		} else {
			action = proposed
		}
	}
	if !action.Valid() {
		action = e.rules.RandomAction(snap.Config.GameType, player.ID, opponentIDs(snap, player.ID))
	}
	action.PlayerID = player.ID

	e.ProcessAction(ctx, snap.ID, action)
}

func opponentIDs(snap domain.Session, selfID string) []string {
	var out []string
	for _, p := range snap.Players {
		if p.ID != selfID {
			out = append(out, p.ID)
		}
	}
	return out
}

// Package engine owns all live game sessions: creation, joins, starts,
// action dispatch, AI player turns, win checks and end-of-session
// settlement. All mutation of a session is serialized behind a per-session
// mutex; timers are driven by a single scheduler tick so tests can inject
// a synthetic clock.
package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gamehub-engine/internal/config"
	"github.com/gamehub-engine/internal/domain"
	"github.com/gamehub-engine/internal/engine/rules"
)

// Clock abstracts wall-clock time so the scheduler is testable
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ChainService records session lifecycle milestones on the ledger. Calls
// are fire-and-forget from the engine's perspective: it keeps the returned
// tx hash and never retries or verifies confirmation.
type ChainService interface {
	CreateGameSession(ctx context.Context, creatorWallet string, gameType domain.GameType, maxPlayers int, entryFee string) (string, error)
	JoinGameSession(ctx context.Context, wallet, sessionID, entryFee string) (string, error)
	SubmitGameScore(ctx context.Context, wallet, sessionID string, score int64) (string, error)
	MintNFTReward(ctx context.Context, wallet string, gameType domain.GameType, achievement, metadataURI string) (string, error)
}

// Advisor proposes the next action for an AI player as a typed action,
// validated through the same path as human actions.
type Advisor interface {
	ProposeAction(ctx context.Context, session domain.Session, player domain.Player) (domain.Action, error)
}

// Archiver persists a terminal session before it is removed from the
// live set.
type Archiver interface {
	ArchiveSession(ctx context.Context, session domain.Session) error
}

// EventSink receives lifecycle events. Implementations must not block.
type EventSink interface {
	Publish(ctx context.Context, event domain.Event)
}

type noopSink struct{}

func (noopSink) Publish(context.Context, domain.Event) {}

type fanoutSink []EventSink

func (f fanoutSink) Publish(ctx context.Context, event domain.Event) {
	for _, s := range f {
		s.Publish(ctx, event)
	}
}

// Fanout combines several sinks into one
func Fanout(sinks ...EventSink) EventSink {
	return fanoutSink(sinks)
}

// Dependencies carries the engine's collaborators. Any of them may be nil
// except Clock, which defaults to the system clock.
type Dependencies struct {
	Chain    ChainService
	Advisor  Advisor
	Archiver Archiver
	Sink     EventSink
	Clock    Clock
}

// Engine owns the live session set
type Engine struct {
	cfg      *config.EngineConfig
	rules    *rules.Registry
	chain    ChainService
	advisor  Advisor
	archiver Archiver
	sink     EventSink
	clock    Clock
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session

	wg sync.WaitGroup
}

// New creates a game engine. The caller owns its lifetime: start the
// scheduler with Run and wait for in-flight settlement with Stop.
func New(cfg *config.EngineConfig, reg *rules.Registry, deps Dependencies, logger *slog.Logger) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}
	sink := deps.Sink
	if sink == nil {
		sink = noopSink{}
	}
	return &Engine{
		cfg:      cfg,
		rules:    reg,
		chain:    deps.Chain,
		advisor:  deps.Advisor,
		archiver: deps.Archiver,
		sink:     sink,
		clock:    clock,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Rules returns the engine's rule registry
func (e *Engine) Rules() *rules.Registry {
	return e.rules
}

// CreateSession stores a new session in waiting status and requests an
// on-chain session record. The chain call is best-effort: its failure is
// logged and never fails creation.
func (e *Engine) CreateSession(ctx context.Context, cfg domain.GameConfig, creator domain.Player) string {
	now := e.clock.Now()
	s := newSession(uuid.New().String(), cfg, now)

	e.mu.Lock()
	e.sessions[s.id] = s
	e.mu.Unlock()

	e.publish(ctx, s.id, domain.EventSessionCreated, domain.SessionCreatedData{
		Config:    cfg,
		CreatorID: creator.ID,
	})
	e.logger.Info("session created",
		"session_id", s.id,
		"game_type", cfg.GameType,
		"max_players", cfg.MaxPlayers,
	)

	if e.chain != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			cctx, cancel := context.WithTimeout(context.Background(), e.cfg.SettleTimeout)
			defer cancel()
			hash, err := e.chain.CreateGameSession(cctx, creator.Wallet, cfg.GameType, cfg.MaxPlayers, cfg.EntryFee)
			if err != nil {
				e.logger.Warn("on-chain session record failed", "session_id", s.id, "error", err)
				return
			}
			e.recordTx(s.id, hash)
		}()
	}

	return s.id
}

// JoinSession adds a player to a waiting session. It returns false with
// no side effects if the session is unknown, not waiting, full, or the
// player already joined. Reaching the configured minimum schedules an
// automatic start after the auto-start delay.
func (e *Engine) JoinSession(ctx context.Context, sessionID string, p domain.Player) bool {
	s := e.session(sessionID)
	if s == nil {
		return false
	}
	now := e.clock.Now()

	s.mu.Lock()
	if s.status != domain.StatusWaiting {
		s.mu.Unlock()
		return false
	}
	if len(s.players) >= s.config.MaxPlayers {
		s.mu.Unlock()
		return false
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, exists := s.players[p.ID]; exists {
		s.mu.Unlock()
		return false
	}

	player := &domain.Player{
		ID:         p.ID,
		Wallet:     p.Wallet,
		Name:       p.Name,
		Rank:       len(s.players) + 1,
		IsAI:       p.IsAI,
		Difficulty: p.Difficulty,
		JoinedAt:   now,
	}
	if player.IsAI && player.Difficulty == "" {
		player.Difficulty = domain.Difficulties[rand.Intn(len(domain.Difficulties))]
	}
	s.players[player.ID] = player
	s.joinOrder = append(s.joinOrder, player.ID)
	s.recomputeLeaderboardLocked()

	count := len(s.players)
	if count >= s.config.MinPlayers && s.autoStartAt.IsZero() {
		s.autoStartAt = now.Add(e.cfg.AutoStartDelay)
	}
	joined := *player
	s.mu.Unlock()

	e.publish(ctx, sessionID, domain.EventPlayerJoined, domain.PlayerJoinedData{
		Player:      joined,
		PlayerCount: count,
	})

	if !joined.IsAI && joined.Wallet != "" && e.chain != nil {
		entryFee := s.config.EntryFee
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			cctx, cancel := context.WithTimeout(context.Background(), e.cfg.SettleTimeout)
			defer cancel()
			hash, err := e.chain.JoinGameSession(cctx, joined.Wallet, sessionID, entryFee)
			if err != nil {
				e.logger.Warn("on-chain join failed", "session_id", sessionID, "player_id", joined.ID, "error", err)
				return
			}
			e.recordTx(sessionID, hash)
		}()
	}

	return true
}

// StartSession manually starts a waiting session. Starting clears any
// pending auto-start deadline, so a scheduled auto-start can never fire a
// second time.
func (e *Engine) StartSession(ctx context.Context, sessionID string) bool {
	s := e.session(sessionID)
	if s == nil {
		return false
	}

	s.mu.Lock()
	ev, ok := e.startLocked(s, e.clock.Now())
	s.mu.Unlock()
	if !ok {
		return false
	}
	e.sink.Publish(ctx, ev)
	return true
}

// CancelSession cancels a session that never became active
func (e *Engine) CancelSession(ctx context.Context, sessionID string) bool {
	s := e.session(sessionID)
	if s == nil {
		return false
	}

	s.mu.Lock()
	if s.status != domain.StatusWaiting {
		s.mu.Unlock()
		return false
	}
	ev := e.endLocked(s, domain.StatusCancelled, domain.EndReasonCancelled, "", e.clock.Now())
	s.mu.Unlock()

	e.sink.Publish(ctx, ev)
	e.logger.Info("session cancelled", "session_id", sessionID)
	return true
}

// ProcessAction validates and scores one player action. Both human and AI
// actions take this path. On success the turn counter increments, the
// leaderboard is recomputed and the win condition is evaluated, which may
// end the session.
func (e *Engine) ProcessAction(ctx context.Context, sessionID string, action domain.Action) bool {
	s := e.session(sessionID)
	if s == nil {
		return false
	}
	now := e.clock.Now()

	s.mu.Lock()
	if s.status != domain.StatusActive {
		s.mu.Unlock()
		return false
	}
	if !action.Valid() {
		s.mu.Unlock()
		return false
	}
	actor, ok := s.players[action.PlayerID]
	if !ok {
		s.mu.Unlock()
		return false
	}

	st := &rules.State{
		Actor:   actor,
		Players: s.players,
		Data:    s.gameData,
	}
	if !e.rules.Apply(s.config.GameType, st, action) {
		s.mu.Unlock()
		return false
	}

	actor.LastActionAt = now
	s.currentTurn = actor.ID
	s.turnCount++
	s.recomputeLeaderboardLocked()

	events := []domain.Event{{
		Type:      domain.EventActionProcessed,
		SessionID: sessionID,
		Timestamp: now,
		Data: domain.ActionProcessedData{
			Action:      action,
			TurnCount:   s.turnCount,
			Leaderboard: s.leaderboardCopyLocked(),
		},
	}}

	if len(s.leaderboard) > 0 {
		leader := s.leaderboard[0]
		if threshold := e.rules.WinThreshold(s.config.GameType); threshold > 0 && leader.Score >= threshold {
			events = append(events, e.endLocked(s, domain.StatusFinished, domain.EndReasonVictory, leader.PlayerID, now))
		}
	}
	s.mu.Unlock()

	for _, ev := range events {
		e.sink.Publish(ctx, ev)
	}
	return true
}

// Session returns a snapshot of one live session
func (e *Engine) Session(sessionID string) (domain.Session, bool) {
	s := e.session(sessionID)
	if s == nil {
		return domain.Session{}, false
	}
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap, true
}

// Sessions returns snapshots of all live sessions
func (e *Engine) Sessions() []domain.Session {
	return e.SessionsByStatus()
}

// SessionsByStatus returns snapshots of live sessions matching any of the
// given statuses; with no statuses it returns all sessions.
func (e *Engine) SessionsByStatus(statuses ...domain.SessionStatus) []domain.Session {
	e.mu.RLock()
	live := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		live = append(live, s)
	}
	e.mu.RUnlock()

	out := make([]domain.Session, 0, len(live))
	for _, s := range live {
		s.mu.Lock()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		if len(statuses) == 0 {
			out = append(out, snap)
			continue
		}
		for _, status := range statuses {
			if snap.Status == status {
				out = append(out, snap)
				break
			}
		}
	}
	return out
}

// Stop waits for in-flight settlement and AI goroutines to drain
func (e *Engine) Stop() {
	e.wg.Wait()
}

func (e *Engine) session(id string) *session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessions[id]
}

func (e *Engine) removeSession(id string) {
	e.mu.Lock()
	delete(e.sessions, id)
	e.mu.Unlock()
}

func (e *Engine) recordTx(sessionID, hash string) {
	s := e.session(sessionID)
	if s == nil {
		return
	}
	s.mu.Lock()
	s.txHashes = append(s.txHashes, hash)
	s.mu.Unlock()
}

func (e *Engine) publish(ctx context.Context, sessionID, eventType string, data interface{}) {
	e.sink.Publish(ctx, domain.Event{
		Type:      eventType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: e.clock.Now(),
	})
}

package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamehub-engine/internal/domain"
	"github.com/gamehub-engine/internal/engine/rules"
)

func testSession(gt domain.GameType) domain.Session {
	return domain.Session{
		ID:     "session-1",
		Config: domain.GameConfig{GameType: gt},
		Status: domain.StatusActive,
		Leaderboard: []domain.LeaderboardEntry{
			{Rank: 1, PlayerID: "p1", Score: 120},
			{Rank: 2, PlayerID: "ai-1", Score: 80, IsAI: true},
		},
	}
}

func aiPlayer() domain.Player {
	return domain.Player{ID: "ai-1", IsAI: true, Difficulty: domain.DifficultyHard}
}

func TestProposeActionParsesStructuredOutput(t *testing.T) {
	stub := &stubChat{content: `{"type": "vote", "data": {"proposal_id": "2", "weight": 30}}`}
	h := NewHelper(newStubManager(nil, stub), rules.NewRegistry(), testLogger())

	action, err := h.ProposeAction(context.Background(), testSession(domain.GameTypeQuantumDAO), aiPlayer())
	require.NoError(t, err)
	assert.Equal(t, "vote", action.Type)
	assert.Equal(t, "ai-1", action.PlayerID)
	assert.Equal(t, "2", action.Data["proposal_id"])
	assert.Equal(t, float64(30), action.Data["weight"])
}

func TestProposeActionStripsCodeFences(t *testing.T) {
	stub := &stubChat{content: "```json\n{\"type\": \"propose\", \"data\": {}}\n```"}
	h := NewHelper(newStubManager(nil, stub), rules.NewRegistry(), testLogger())

	action, err := h.ProposeAction(context.Background(), testSession(domain.GameTypeQuantumDAO), aiPlayer())
	require.NoError(t, err)
	assert.Equal(t, "propose", action.Type)
	assert.NotNil(t, action.Data)
}

func TestProposeActionRejectsUnknownKind(t *testing.T) {
	stub := &stubChat{content: `{"type": "teleport", "data": {}}`}
	h := NewHelper(newStubManager(nil, stub), rules.NewRegistry(), testLogger())

	_, err := h.ProposeAction(context.Background(), testSession(domain.GameTypeQuantumDAO), aiPlayer())
	assert.Error(t, err)
}

func TestProposeActionRejectsMalformedOutput(t *testing.T) {
	stub := &stubChat{content: "I think the best move here is to vote yes."}
	h := NewHelper(newStubManager(nil, stub), rules.NewRegistry(), testLogger())

	_, err := h.ProposeAction(context.Background(), testSession(domain.GameTypeQuantumDAO), aiPlayer())
	assert.Error(t, err)
}

func TestProposeActionUnknownGameType(t *testing.T) {
	stub := &stubChat{content: `{"type": "move", "data": {}}`}
	h := NewHelper(newStubManager(nil, stub), rules.NewRegistry(), testLogger())

	_, err := h.ProposeAction(context.Background(), testSession(domain.GameType("chess")), aiPlayer())
	assert.Error(t, err)
	assert.Equal(t, 0, stub.callCount())
}

func TestProposeActionNilDataBecomesEmptyMap(t *testing.T) {
	stub := &stubChat{content: `{"type": "execute"}`}
	h := NewHelper(newStubManager(nil, stub), rules.NewRegistry(), testLogger())

	action, err := h.ProposeAction(context.Background(), testSession(domain.GameTypeQuantumDAO), aiPlayer())
	require.NoError(t, err)
	require.NotNil(t, action.Data)
	assert.Empty(t, action.Data)
}

func TestAdviceHelpers(t *testing.T) {
	stub := &stubChat{content: "recommendation text"}
	h := NewHelper(newStubManager(nil, stub), rules.NewRegistry(), testLogger())

	advice, err := h.DAOAdvice(context.Background(), "raise the treasury cap")
	require.NoError(t, err)
	assert.Equal(t, "recommendation text", advice)

	strategy, err := h.TradingStrategy(context.Background(), "BTC up 5%")
	require.NoError(t, err)
	assert.Equal(t, "recommendation text", strategy)

	plan, err := h.BattlePlan(context.Background(), "outnumbered 2 to 1")
	require.NoError(t, err)
	assert.Equal(t, "recommendation text", plan)
}

func TestAdviceSurfacesProviderExhaustion(t *testing.T) {
	h := NewHelper(newStubManager(nil), rules.NewRegistry(), testLogger())

	_, err := h.DAOAdvice(context.Background(), "anything")
	assert.ErrorIs(t, err, domain.ErrNoProviderAvailable)
}

package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamehub-engine/internal/domain"
)

func newState(playerIDs ...string) *State {
	players := make(map[string]*domain.Player, len(playerIDs))
	for _, id := range playerIDs {
		players[id] = &domain.Player{ID: id, Name: "Player " + id}
	}
	return &State{
		Actor:   players[playerIDs[0]],
		Players: players,
		Data:    map[string]interface{}{},
	}
}

func TestApplyRejectsUnknownGameType(t *testing.T) {
	r := NewRegistry()
	st := newState("p1")

	ok := r.Apply(domain.GameType("chess"), st, domain.Action{Type: "move", PlayerID: "p1"})
	assert.False(t, ok)
	assert.Equal(t, int64(0), st.Actor.Score)
	assert.Empty(t, st.Data)
}

func TestApplyRejectsUnknownActionKind(t *testing.T) {
	r := NewRegistry()
	st := newState("p1")

	ok := r.Apply(domain.GameTypeQuantumDAO, st, domain.Action{Type: "teleport", PlayerID: "p1"})
	assert.False(t, ok)
	assert.Equal(t, int64(0), st.Actor.Score)
	assert.Empty(t, st.Data)
}

func TestVoteAwardsWeight(t *testing.T) {
	r := NewRegistry()
	st := newState("p1")

	ok := r.Apply(domain.GameTypeQuantumDAO, st, domain.Action{
		Type: "vote", PlayerID: "p1",
		Data: map[string]interface{}{"proposal_id": "7", "weight": float64(40)},
	})
	require.True(t, ok)
	assert.Equal(t, int64(40), st.Actor.Score)

	votes, ok := st.Data["votes"].(map[string]interface{})
	require.True(t, ok)
	list, ok := votes["7"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	record := list[0].(map[string]interface{})
	assert.Equal(t, "p1", record["voter"])
	assert.Equal(t, int64(40), record["weight"])
}

func TestVoteDefaultsWeightAndProposal(t *testing.T) {
	r := NewRegistry()
	st := newState("p1")

	ok := r.Apply(domain.GameTypeQuantumDAO, st, domain.Action{Type: "vote", PlayerID: "p1"})
	require.True(t, ok)
	assert.Equal(t, int64(1), st.Actor.Score)

	votes := st.Data["votes"].(map[string]interface{})
	assert.Contains(t, votes, "1")
}

func TestVoteRejectsNonPositiveWeight(t *testing.T) {
	r := NewRegistry()
	st := newState("p1")

	ok := r.Apply(domain.GameTypeQuantumDAO, st, domain.Action{
		Type: "vote", PlayerID: "p1",
		Data: map[string]interface{}{"weight": float64(-5)},
	})
	assert.False(t, ok)
	assert.Equal(t, int64(0), st.Actor.Score)
	assert.Empty(t, st.Data)
}

func TestProposeAssignsSequentialIDs(t *testing.T) {
	r := NewRegistry()
	st := newState("p1")

	for i := 0; i < 3; i++ {
		require.True(t, r.Apply(domain.GameTypeQuantumDAO, st, domain.Action{
			Type: "propose", PlayerID: "p1",
			Data: map[string]interface{}{"title": "upgrade treasury"},
		}))
	}
	assert.Equal(t, int64(30), st.Actor.Score)

	proposals := st.Data["proposals"].([]interface{})
	require.Len(t, proposals, 3)
	last := proposals[2].(map[string]interface{})
	assert.Equal(t, "3", last["id"])
	assert.Equal(t, "upgrade treasury", last["title"])
}

func TestAttackDamageAndSpoils(t *testing.T) {
	r := NewRegistry()
	st := newState("p1", "p2")
	st.Players["p2"].Score = 100

	ok := r.Apply(domain.GameTypeSyndicateWars, st, domain.Action{
		Type: "attack", PlayerID: "p1",
		Data: map[string]interface{}{"target_id": "p2", "damage": float64(70)},
	})
	require.True(t, ok)
	assert.Equal(t, int64(30), st.Players["p2"].Score)
	assert.Equal(t, int64(7), st.Actor.Score)

	battles := st.Data["battles"].([]interface{})
	require.Len(t, battles, 1)
}

func TestAttackFloorsTargetScoreAtZero(t *testing.T) {
	r := NewRegistry()
	st := newState("p1", "p2")
	st.Players["p2"].Score = 10

	require.True(t, r.Apply(domain.GameTypeSyndicateWars, st, domain.Action{
		Type: "attack", PlayerID: "p1",
		Data: map[string]interface{}{"target_id": "p2", "damage": float64(50)},
	}))
	assert.Equal(t, int64(0), st.Players["p2"].Score)
	assert.Equal(t, int64(5), st.Actor.Score)
}

func TestAttackRejectsSelfAndUnknownTargets(t *testing.T) {
	r := NewRegistry()
	st := newState("p1", "p2")

	assert.False(t, r.Apply(domain.GameTypeSyndicateWars, st, domain.Action{
		Type: "attack", PlayerID: "p1",
		Data: map[string]interface{}{"target_id": "p1"},
	}))
	assert.False(t, r.Apply(domain.GameTypeSyndicateWars, st, domain.Action{
		Type: "attack", PlayerID: "p1",
		Data: map[string]interface{}{"target_id": "ghost"},
	}))
	assert.False(t, r.Apply(domain.GameTypeSyndicateWars, st, domain.Action{
		Type: "attack", PlayerID: "p1",
	}))
	assert.Equal(t, int64(0), st.Actor.Score)
	assert.Empty(t, st.Data)
}

func TestRandomAwardStaysInBounds(t *testing.T) {
	r := NewRegistry()
	st := newState("p1")

	var prev int64
	for i := 0; i < 50; i++ {
		require.True(t, r.Apply(domain.GameTypeTradeWars, st, domain.Action{Type: "buy", PlayerID: "p1"}))
		delta := st.Actor.Score - prev
		assert.GreaterOrEqual(t, delta, int64(10))
		assert.LessOrEqual(t, delta, int64(120))
		prev = st.Actor.Score
	}
	trades := st.Data["trades"].([]interface{})
	assert.Len(t, trades, 50)
}

func TestWinThresholds(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, int64(1000), r.WinThreshold(domain.GameTypeQuantumDAO))
	assert.Equal(t, int64(2000), r.WinThreshold(domain.GameTypeSyndicateWars))
	assert.Equal(t, int64(5000), r.WinThreshold(domain.GameTypeTradeWars))
	assert.Equal(t, int64(10000), r.WinThreshold(domain.GameTypeChainTycoon))
	assert.Equal(t, int64(0), r.WinThreshold(domain.GameType("chess")))

	for _, gt := range domain.GameTypes {
		assert.Greater(t, r.WinThreshold(gt), int64(0), "game type %s", gt)
	}
}

func TestActionKindsSortedAndComplete(t *testing.T) {
	r := NewRegistry()

	kinds := r.ActionKinds(domain.GameTypeQuantumDAO)
	assert.Equal(t, []string{"execute", "propose", "vote"}, kinds)

	assert.Nil(t, r.ActionKinds(domain.GameType("chess")))

	for _, gt := range domain.GameTypes {
		assert.Len(t, r.ActionKinds(gt), 3, "game type %s", gt)
	}
}

func TestRandomActionIsAlwaysAccepted(t *testing.T) {
	r := NewRegistry()

	for _, gt := range domain.GameTypes {
		for i := 0; i < 20; i++ {
			st := newState("p1", "p2")
			action := r.RandomAction(gt, "p1", []string{"p2"})
			require.True(t, action.Valid(), "game type %s produced invalid action", gt)
			assert.True(t, r.Apply(gt, st, action), "game type %s rejected %s", gt, action.Type)
		}
	}
}

func TestRandomActionAvoidsAttackWithoutOpponents(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 50; i++ {
		st := newState("p1")
		action := r.RandomAction(domain.GameTypeSyndicateWars, "p1", nil)
		assert.NotEqual(t, "attack", action.Type)
		assert.True(t, r.Apply(domain.GameTypeSyndicateWars, st, action))
	}
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsValidGameType(t *testing.T) {
	for _, gt := range GameTypes {
		assert.True(t, IsValidGameType(gt), "game type %s", gt)
	}
	assert.False(t, IsValidGameType(GameType("chess")))
	assert.False(t, IsValidGameType(GameType("")))
}

func TestDecisionIntervals(t *testing.T) {
	assert.Equal(t, 2*time.Second, DifficultyExpert.DecisionInterval())
	assert.Equal(t, 3*time.Second, DifficultyHard.DecisionInterval())
	assert.Equal(t, 5*time.Second, DifficultyMedium.DecisionInterval())
	assert.Equal(t, 8*time.Second, DifficultyEasy.DecisionInterval())
	// Unknown difficulty decides at the slowest pace
	assert.Equal(t, 8*time.Second, Difficulty("nightmare").DecisionInterval())
}

func TestActionValid(t *testing.T) {
	assert.True(t, Action{Type: "vote", PlayerID: "p1"}.Valid())
	assert.False(t, Action{Type: "", PlayerID: "p1"}.Valid())
	assert.False(t, Action{Type: "vote", PlayerID: ""}.Valid())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusWaiting.Terminal())
	assert.False(t, StatusStarting.Terminal())
	assert.False(t, StatusActive.Terminal())
	assert.True(t, StatusFinished.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

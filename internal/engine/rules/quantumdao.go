package rules

import (
	"fmt"

	"github.com/gamehub-engine/internal/domain"
)

// Governance scoring mirrors the on-chain DAO game: creating a proposal
// pays a flat 10 points, voting pays the vote weight, executing a passed
// proposal pays a 50 point bonus to the executor.
const (
	proposePoints = 10
	executePoints = 50
)

func applyPropose(st *State, action domain.Action) bool {
	proposals, _ := st.Data["proposals"].([]interface{})
	proposalID := fmt.Sprintf("%d", len(proposals)+1)

	st.Actor.Score += proposePoints
	appendList(st.Data, "proposals", map[string]interface{}{
		"id":       proposalID,
		"creator":  st.Actor.ID,
		"title":    stringField(action.Data, "title"),
		"executed": false,
	})
	return true
}

func applyVote(st *State, action domain.Action) bool {
	weight := numberField(action.Data, "weight", 1)
	if weight <= 0 {
		return false
	}
	proposalID := stringField(action.Data, "proposal_id")
	if proposalID == "" {
		proposalID = "1"
	}

	st.Actor.Score += int64(weight)

	votes, _ := st.Data["votes"].(map[string]interface{})
	if votes == nil {
		votes = map[string]interface{}{}
		st.Data["votes"] = votes
	}
	list, _ := votes[proposalID].([]interface{})
	votes[proposalID] = append(list, map[string]interface{}{
		"voter":  st.Actor.ID,
		"weight": int64(weight),
		"for":    numberField(action.Data, "for", 1) != 0,
	})
	return true
}

func applyExecute(st *State, action domain.Action) bool {
	st.Actor.Score += executePoints
	appendList(st.Data, "executions", map[string]interface{}{
		"executor":    st.Actor.ID,
		"proposal_id": stringField(action.Data, "proposal_id"),
	})
	return true
}

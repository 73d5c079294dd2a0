package rules

import (
	"math/rand"

	"github.com/gamehub-engine/internal/domain"
)

// applyAttack resolves a syndicate battle: the target loses the computed
// damage (floored at zero) and the attacker gains a 10% spoil. The target
// must be another player in the session.
func applyAttack(st *State, action domain.Action) bool {
	targetID := stringField(action.Data, "target_id")
	if targetID == "" || targetID == st.Actor.ID {
		return false
	}
	target, ok := st.Players[targetID]
	if !ok {
		return false
	}

	damage := int64(numberField(action.Data, "damage", 0))
	if damage <= 0 {
		damage = int64(rand.Intn(60) + 20)
	}

	target.Score -= damage
	if target.Score < 0 {
		target.Score = 0
	}
	st.Actor.Score += damage / 10

	appendList(st.Data, "battles", map[string]interface{}{
		"attacker": st.Actor.ID,
		"target":   targetID,
		"damage":   damage,
	})
	return true
}

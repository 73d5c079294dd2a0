// Package rules maps game-type action kinds to scoring handlers.
//
// Handlers mutate only the acting player's score (and, for adversarial
// kinds, the target's), append an audit record to the session's game-type
// state bag, and report whether the action was accepted. Unknown action
// kinds are rejected without side effects.
package rules

import (
	"math/rand"
	"sort"

	"github.com/gamehub-engine/internal/domain"
)

// State is the slice of session state a handler operates on. The engine
// holds the session lock for the duration of Apply.
type State struct {
	Actor   *domain.Player
	Players map[string]*domain.Player
	Data    map[string]interface{}
}

// Handler applies a single action against session state
type Handler func(st *State, action domain.Action) bool

type gameRules struct {
	winThreshold int64
	actions      map[string]Handler
}

// Registry holds the rule set for every supported game type
type Registry struct {
	games map[domain.GameType]gameRules
}

// NewRegistry builds the full rule set
func NewRegistry() *Registry {
	r := &Registry{games: map[domain.GameType]gameRules{}}

	r.games[domain.GameTypeQuantumDAO] = gameRules{
		winThreshold: 1000,
		actions: map[string]Handler{
			"propose": applyPropose,
			"vote":    applyVote,
			"execute": applyExecute,
		},
	}
	r.games[domain.GameTypeSyndicateWars] = gameRules{
		winThreshold: 2000,
		actions: map[string]Handler{
			"attack":  applyAttack,
			"defend":  randomAward("defenses", 5, 20),
			"recruit": randomAward("recruits", 10, 30),
		},
	}
	r.games[domain.GameTypeTradeWars] = gameRules{
		winThreshold: 5000,
		actions: map[string]Handler{
			"buy":   randomAward("trades", 10, 120),
			"sell":  randomAward("trades", 10, 120),
			"short": randomAward("trades", 5, 200),
		},
	}
	r.games[domain.GameTypeChainTycoon] = gameRules{
		winThreshold: 10000,
		actions: map[string]Handler{
			"invest":  randomAward("investments", 50, 300),
			"acquire": randomAward("acquisitions", 100, 500),
			"expand":  randomAward("expansions", 25, 150),
		},
	}
	r.games[domain.GameTypeYieldFarmers] = gameRules{
		winThreshold: 3000,
		actions: map[string]Handler{
			"plant":   randomAward("crops", 5, 25),
			"harvest": randomAward("harvests", 20, 100),
			"stake":   randomAward("stakes", 10, 60),
		},
	}
	r.games[domain.GameTypeNFTRaiders] = gameRules{
		winThreshold: 3000,
		actions: map[string]Handler{
			"raid":  randomAward("raids", 15, 90),
			"loot":  randomAward("loot", 10, 70),
			"trade": randomAward("trades", 5, 50),
		},
	}
	r.games[domain.GameTypeCyberRacers] = gameRules{
		winThreshold: 3000,
		actions: map[string]Handler{
			"boost":    randomAward("boosts", 10, 40),
			"drift":    randomAward("drifts", 15, 60),
			"overtake": randomAward("overtakes", 20, 80),
		},
	}
	r.games[domain.GameTypeOracleDuels] = gameRules{
		winThreshold: 3000,
		actions: map[string]Handler{
			"predict":   randomAward("predictions", 10, 80),
			"challenge": randomAward("challenges", 15, 100),
			"reveal":    randomAward("reveals", 5, 40),
		},
	}
	r.games[domain.GameTypeMemeLegends] = gameRules{
		winThreshold: 3000,
		actions: map[string]Handler{
			"post":  randomAward("posts", 5, 50),
			"remix": randomAward("remixes", 10, 60),
			"viral": randomAward("virals", 20, 120),
		},
	}
	r.games[domain.GameTypeMetaverseQuest] = gameRules{
		winThreshold: 3000,
		actions: map[string]Handler{
			"explore": randomAward("expeditions", 5, 35),
			"solve":   randomAward("puzzles", 15, 75),
			"collect": randomAward("artifacts", 10, 55),
		},
	}

	return r
}

// Apply dispatches an action to the game type's handler. It returns false
// for unknown game types or action kinds, without side effects.
func (r *Registry) Apply(gt domain.GameType, st *State, action domain.Action) bool {
	game, ok := r.games[gt]
	if !ok {
		return false
	}
	handler, ok := game.actions[action.Type]
	if !ok {
		return false
	}
	return handler(st, action)
}

// WinThreshold returns the score a leader must reach to end a session of
// this game type by victory. Unknown types never trigger victory.
func (r *Registry) WinThreshold(gt domain.GameType) int64 {
	if game, ok := r.games[gt]; ok {
		return game.winThreshold
	}
	return 0
}

// ActionKinds returns the accepted action kinds for a game type, sorted
func (r *Registry) ActionKinds(gt domain.GameType) []string {
	game, ok := r.games[gt]
	if !ok {
		return nil
	}
	kinds := make([]string, 0, len(game.actions))
	for kind := range game.actions {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// RandomAction builds a structurally valid action for the game type, used
// when AI generation fails so an AI player never skips its turn. Targeted
// kinds pick a random opponent; with no opponents available they are
// skipped in favor of a self-contained kind.
func (r *Registry) RandomAction(gt domain.GameType, playerID string, opponents []string) domain.Action {
	kinds := r.ActionKinds(gt)
	if len(kinds) == 0 {
		return domain.Action{}
	}

	kind := kinds[rand.Intn(len(kinds))]
	if kind == "attack" && len(opponents) == 0 {
		kind = "defend"
	}

	action := domain.Action{
		Type:     kind,
		PlayerID: playerID,
		Data:     map[string]interface{}{},
	}
	switch kind {
	case "vote":
		action.Data["proposal_id"] = "1"
		action.Data["weight"] = float64(rand.Intn(50) + 1)
	case "attack":
		action.Data["target_id"] = opponents[rand.Intn(len(opponents))]
		action.Data["damage"] = float64(rand.Intn(60) + 20)
	}
	return action
}

// appendList appends a record to a named list in the state bag
func appendList(data map[string]interface{}, key string, record map[string]interface{}) {
	list, _ := data[key].([]interface{})
	data[key] = append(list, record)
}

// numberField reads a numeric field from action data
func numberField(data map[string]interface{}, key string, fallback float64) float64 {
	if data == nil {
		return fallback
	}
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

// stringField reads a string field from action data
func stringField(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}

// randomAward builds a handler that awards a bounded-random score delta
// and records the action under the given list key
func randomAward(recordKey string, min, max int64) Handler {
	return func(st *State, action domain.Action) bool {
		points := min + rand.Int63n(max-min+1)
		st.Actor.Score += points
		appendList(st.Data, recordKey, map[string]interface{}{
			"player_id": st.Actor.ID,
			"type":      action.Type,
			"points":    points,
		})
		return true
	}
}

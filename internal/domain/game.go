package domain

import "time"

// GameType identifies one of the supported game modes
type GameType string

const (
	GameTypeQuantumDAO     GameType = "quantum_dao"
	GameTypeSyndicateWars  GameType = "syndicate_wars"
	GameTypeTradeWars      GameType = "trade_wars"
	GameTypeChainTycoon    GameType = "chain_tycoon"
	GameTypeYieldFarmers   GameType = "yield_farmers"
	GameTypeNFTRaiders     GameType = "nft_raiders"
	GameTypeCyberRacers    GameType = "cyber_racers"
	GameTypeOracleDuels    GameType = "oracle_duels"
	GameTypeMemeLegends    GameType = "meme_legends"
	GameTypeMetaverseQuest GameType = "metaverse_quest"
)

// GameTypes lists every supported game type
var GameTypes = []GameType{
	GameTypeQuantumDAO,
	GameTypeSyndicateWars,
	GameTypeTradeWars,
	GameTypeChainTycoon,
	GameTypeYieldFarmers,
	GameTypeNFTRaiders,
	GameTypeCyberRacers,
	GameTypeOracleDuels,
	GameTypeMemeLegends,
	GameTypeMetaverseQuest,
}

// IsValidGameType reports whether t is a known game type
func IsValidGameType(t GameType) bool {
	for _, gt := range GameTypes {
		if gt == t {
			return true
		}
	}
	return false
}

// Difficulty represents an AI player's skill tier
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// Difficulties lists the AI skill tiers in ascending strength
var Difficulties = []Difficulty{
	DifficultyEasy,
	DifficultyMedium,
	DifficultyHard,
	DifficultyExpert,
}

// DecisionInterval returns how often an AI player at this tier acts.
// Faster tiers act more often.
func (d Difficulty) DecisionInterval() time.Duration {
	switch d {
	case DifficultyExpert:
		return 2 * time.Second
	case DifficultyHard:
		return 3 * time.Second
	case DifficultyMedium:
		return 5 * time.Second
	default:
		return 8 * time.Second
	}
}

// GameConfig describes a requested session. It is supplied at creation
// time and never mutated afterward.
type GameConfig struct {
	GameType       GameType               `json:"game_type"`
	MinPlayers     int                    `json:"min_players"`
	MaxPlayers     int                    `json:"max_players"`
	Duration       time.Duration          `json:"duration"`
	EntryFee       string                 `json:"entry_fee,omitempty"`
	PrizePool      string                 `json:"prize_pool,omitempty"`
	AIEnabled      bool                   `json:"ai_enabled"`
	RewardEligible bool                   `json:"reward_eligible"`
	Difficulty     Difficulty             `json:"difficulty,omitempty"`
	Settings       map[string]interface{} `json:"settings,omitempty"`
}

// Player represents a participant (human or AI) in a single session
type Player struct {
	ID           string     `json:"id"`
	Wallet       string     `json:"wallet,omitempty"`
	Name         string     `json:"name"`
	Score        int64      `json:"score"`
	Rank         int        `json:"rank"`
	IsAI         bool       `json:"is_ai"`
	Difficulty   Difficulty `json:"difficulty,omitempty"`
	JoinedAt     time.Time  `json:"joined_at"`
	LastActionAt time.Time  `json:"last_action_at,omitempty"`
}

// Action is a structured request by a player to affect session state
type Action struct {
	Type     string                 `json:"type"`
	PlayerID string                 `json:"player_id"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// Valid reports whether the action passes structural validation
func (a Action) Valid() bool {
	return a.Type != "" && a.PlayerID != ""
}

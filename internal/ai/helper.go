package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gamehub-engine/internal/domain"
	"github.com/gamehub-engine/internal/engine/rules"
)

// Helper translates game situations into Manager prompts. Its
// ProposeAction method satisfies the engine's Advisor seam.
type Helper struct {
	manager *Manager
	rules   *rules.Registry
	logger  *slog.Logger
}

func NewHelper(manager *Manager, registry *rules.Registry, logger *slog.Logger) *Helper {
	return &Helper{manager: manager, rules: registry, logger: logger}
}

// DAOAdvice returns a short recommendation on a governance proposal.
func (h *Helper) DAOAdvice(ctx context.Context, proposal string) (string, error) {
	resp, err := h.manager.Generate(ctx, Request{
		Prompt:   fmt.Sprintf("As a DAO governance advisor, give a concise recommendation on this proposal:\n%s", proposal),
		GameType: domain.GameTypeQuantumDAO,
	})
	if err != nil {
		return "", fmt.Errorf("generating DAO advice: %w", err)
	}
	return resp.Content, nil
}

// TradingStrategy returns a short trading suggestion for the given
// market situation.
func (h *Helper) TradingStrategy(ctx context.Context, market string) (string, error) {
	resp, err := h.manager.Generate(ctx, Request{
		Prompt:   fmt.Sprintf("As a trading strategist, suggest the next move for this market state:\n%s", market),
		GameType: domain.GameTypeTradeWars,
	})
	if err != nil {
		return "", fmt.Errorf("generating trading strategy: %w", err)
	}
	return resp.Content, nil
}

// BattlePlan returns a short tactical plan for the given battle state.
func (h *Helper) BattlePlan(ctx context.Context, situation string) (string, error) {
	resp, err := h.manager.Generate(ctx, Request{
		Prompt:   fmt.Sprintf("As a battle tactician, outline the best next move:\n%s", situation),
		GameType: domain.GameTypeSyndicateWars,
	})
	if err != nil {
		return "", fmt.Errorf("generating battle plan: %w", err)
	}
	return resp.Content, nil
}

// actionProposal is the structured output contract the model must fill.
type actionProposal struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// ProposeAction asks the model for the AI player's next move as strict
// JSON and validates the proposed kind against the game type's known
// actions. Callers fall back to a random action on any error.
func (h *Helper) ProposeAction(ctx context.Context, session domain.Session, player domain.Player) (domain.Action, error) {
	kinds := h.rules.ActionKinds(session.Config.GameType)
	if len(kinds) == 0 {
		return domain.Action{}, fmt.Errorf("no actions registered for game type %q", session.Config.GameType)
	}

	state, err := json.Marshal(map[string]interface{}{
		"game_type":   session.Config.GameType,
		"turn_count":  session.TurnCount,
		"leaderboard": session.Leaderboard,
		"your_player": map[string]interface{}{
			"id":         player.ID,
			"score":      player.Score,
			"rank":       player.Rank,
			"difficulty": player.Difficulty,
		},
	})
	if err != nil {
		return domain.Action{}, fmt.Errorf("encoding session state: %w", err)
	}

	prompt := fmt.Sprintf(
		"You are playing %s. Current state:\n%s\n\n"+
			"Choose your next action. Respond with ONLY a JSON object, no prose:\n"+
			`{"type": "<one of: %s>", "data": {}}`,
		session.Config.GameType, state, strings.Join(kinds, ", "),
	)

	resp, err := h.manager.Generate(ctx, Request{
		Prompt:      prompt,
		GameType:    session.Config.GameType,
		Temperature: temperatureFor(player.Difficulty),
	})
	if err != nil {
		return domain.Action{}, fmt.Errorf("generating action proposal: %w", err)
	}

	var proposal actionProposal
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &proposal); err != nil {
		return domain.Action{}, fmt.Errorf("decoding action proposal: %w", err)
	}

	valid := false
	for _, k := range kinds {
		if proposal.Type == k {
			valid = true
			break
		}
	}
	if !valid {
		return domain.Action{}, fmt.Errorf("proposed action %q not valid for %s", proposal.Type, session.Config.GameType)
	}

	data := proposal.Data
	if data == nil {
		data = make(map[string]interface{})
	}
	return domain.Action{
		Type:     proposal.Type,
		PlayerID: player.ID,
		Data:     data,
	}, nil
}

// temperatureFor maps difficulty to sampling temperature: harder AI
// players decide more deterministically.
func temperatureFor(d domain.Difficulty) float64 {
	switch d {
	case domain.DifficultyExpert:
		return 0.2
	case domain.DifficultyHard:
		return 0.4
	case domain.DifficultyMedium:
		return 0.6
	default:
		return 0.9
	}
}

// extractJSON trims any prose around the first JSON object in the
// model's reply. Models occasionally wrap output in code fences despite
// instructions.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

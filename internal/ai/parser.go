package ai

import (
	"strconv"
	"strings"

	"github.com/holotable/swgoh-autopilot/internal/vision"
)

// The vision model answers in loose line-oriented text. The parsers in
// this file are deliberately tolerant: unrecognized lines are skipped
// and missing fields fall back to defaults, so a sloppy response
// degrades the result instead of failing the session.

// ActionType identifies an action the decision engine can execute.
type ActionType string

const (
	ActionEnergyRefill     ActionType = "energy_refill"
	ActionStartBattle      ActionType = "start_battle"
	ActionCompleteDaily    ActionType = "complete_daily"
	ActionCollectRewards   ActionType = "collect_rewards"
	ActionWaitEnergy       ActionType = "wait_energy"
	ActionFarmStage        ActionType = "farm_stage"
	ActionGuildActivity    ActionType = "guild_activity"
	ActionUpgradeCharacter ActionType = "upgrade_character"
	ActionSimBattle        ActionType = "sim_battle"
	ActionNone             ActionType = "none"
)

var knownActionTypes = map[ActionType]bool{
	ActionEnergyRefill:     true,
	ActionStartBattle:      true,
	ActionCompleteDaily:    true,
	ActionCollectRewards:   true,
	ActionWaitEnergy:       true,
	ActionFarmStage:        true,
	ActionGuildActivity:    true,
	ActionUpgradeCharacter: true,
	ActionSimBattle:        true,
	ActionNone:             true,
}

// EnergyLevel is one energy pool reading.
type EnergyLevel struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Ratio returns the fill ratio of the pool, zero when Max is unknown.
func (e EnergyLevel) Ratio() float64 {
	if e.Max <= 0 {
		return 0
	}
	return float64(e.Current) / float64(e.Max)
}

// GameState is the model's reading of the current screen.
type GameState struct {
	CurrentScreen       string                 `json:"current_screen"`
	EnergyLevels        map[string]EnergyLevel `json:"energy_levels"`
	AvailableActivities []string               `json:"available_activities"`
	PendingRewards      []string               `json:"pending_rewards"`
	CharacterInfo       string                 `json:"character_info,omitempty"`
	GuildInfo           string                 `json:"guild_info,omitempty"`
}

// Recommendation is one action proposed by the model.
type Recommendation struct {
	Type        ActionType        `json:"type"`
	Priority    int               `json:"priority"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters"`
	Confidence  float64           `json:"confidence"`
}

// BattleStatus is the model's reading of a battle screen.
type BattleStatus struct {
	Complete bool `json:"complete"`
	Victory  bool `json:"victory"`
	Stars    int  `json:"stars"`
}

// ParseGameState extracts a GameState from a line-prefixed response.
func ParseGameState(response string) GameState {
	state := GameState{
		CurrentScreen: "unknown",
		EnergyLevels:  map[string]EnergyLevel{},
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "screen:"):
			state.CurrentScreen = strings.TrimSpace(strings.TrimPrefix(line, "screen:"))
		case strings.HasPrefix(line, "energy:"):
			state.EnergyLevels = ParseEnergyLevels(strings.TrimPrefix(line, "energy:"))
		case strings.HasPrefix(line, "activities:"):
			state.AvailableActivities = splitList(strings.TrimPrefix(line, "activities:"))
		case strings.HasPrefix(line, "rewards:"):
			state.PendingRewards = splitList(strings.TrimPrefix(line, "rewards:"))
		case strings.HasPrefix(line, "characters:"):
			state.CharacterInfo = strings.TrimSpace(strings.TrimPrefix(line, "characters:"))
		case strings.HasPrefix(line, "guild:"):
			state.GuildInfo = strings.TrimSpace(strings.TrimPrefix(line, "guild:"))
		}
	}

	return state
}

// ParseEnergyLevels parses readings like "cantina:45/144 regular:80/144
// fleet:120/285". Malformed entries are skipped.
func ParseEnergyLevels(s string) map[string]EnergyLevel {
	levels := map[string]EnergyLevel{}

	for _, part := range strings.Fields(s) {
		name, values, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		currentStr, maxStr, ok := strings.Cut(values, "/")
		if !ok {
			continue
		}

		current, err := strconv.Atoi(strings.TrimSpace(currentStr))
		if err != nil {
			continue
		}
		max, err := strconv.Atoi(strings.TrimSpace(maxStr))
		if err != nil {
			continue
		}

		levels[strings.TrimSpace(name)] = EnergyLevel{Current: current, Max: max}
	}

	return levels
}

// ParseRecommendations extracts a list of actions from a response where
// each block starts with an "action:" line.
func ParseRecommendations(response string) []Recommendation {
	var recs []Recommendation
	var current *Recommendation

	flush := func() {
		if current != nil {
			recs = append(recs, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "action:"):
			flush()
			current = &Recommendation{
				Type:       normalizeActionType(strings.TrimPrefix(line, "action:")),
				Priority:   5,
				Confidence: 0.5,
				Parameters: map[string]string{},
			}
		case current == nil:
			// Skip preamble before the first action block.
		case strings.HasPrefix(line, "priority:"):
			if v, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "priority:"))); err == nil {
				current.Priority = v
			}
		case strings.HasPrefix(line, "description:"):
			current.Description = strings.TrimSpace(strings.TrimPrefix(line, "description:"))
		case strings.HasPrefix(line, "parameters:"):
			current.Parameters = ParseParameters(strings.TrimPrefix(line, "parameters:"))
		case strings.HasPrefix(line, "confidence:"):
			if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "confidence:")), 64); err == nil {
				current.Confidence = v
			}
		}
	}
	flush()

	return recs
}

func normalizeActionType(s string) ActionType {
	t := ActionType(strings.ToLower(strings.TrimSpace(s)))
	if knownActionTypes[t] {
		return t
	}
	return ActionNone
}

// ParseParameters parses "key:value, key:value" pairs.
func ParseParameters(s string) map[string]string {
	params := map[string]string{}

	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		params[key] = strings.TrimSpace(value)
	}

	return params
}

// ParseBattleStatus reads a "complete/victory/stars" battle response.
// Stars defaults to 1 for a completed battle when the line is missing.
func ParseBattleStatus(response string) BattleStatus {
	lower := strings.ToLower(response)

	status := BattleStatus{
		Complete: strings.Contains(lower, "complete: yes"),
		Victory:  strings.Contains(lower, "victory: yes"),
	}

	if status.Complete {
		status.Stars = 1
		for _, n := range []int{3, 2} {
			if strings.Contains(response, "stars: "+strconv.Itoa(n)) {
				status.Stars = n
				break
			}
		}
	}

	return status
}

// ParseCoordinates reads an "x,y" coordinate response. The second
// return value reports whether a coordinate pair was found.
func ParseCoordinates(response string) (vision.Point, bool) {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		xStr, yStr, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}

		x, err := strconv.Atoi(strings.TrimSpace(xStr))
		if err != nil {
			continue
		}
		y, err := strconv.Atoi(strings.TrimSpace(yStr))
		if err != nil {
			continue
		}

		return vision.Point{X: x, Y: y}, true
	}

	return vision.Point{}, false
}

func splitList(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

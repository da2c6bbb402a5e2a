package narrative

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/bunker/go/internal/models"
)

// ErrMalformedSetup means the model text did not contain a usable setup.
var ErrMalformedSetup = errors.New("malformed game setup")

func setupPrompt(playerCount int) string {
	return fmt.Sprintf(`Generate a game of "Bunker" (JSON) for %d players.
Rule: the bunker has AT LEAST 2 places, but fewer than %d.
Exactly one player may carry the ability "heal" (it cures another player's health); everyone else has an empty ability.
Return ONLY plain JSON with this structure:
{
  "scenario": { "title": "...", "description": "...", "places": 2, "duration": "..." },
  "players": [
    { "profession": "...", "health": "...", "gender": "...", "age": "...", "hobby": "...", "inventory": "...", "trait": "...", "ability": "" }
  ]
}
The "players" array must contain exactly %d entries.`, playerCount, playerCount, playerCount)
}

func endingPrompt(scenario models.Scenario, survivors []models.Survivor) (string, error) {
	sc, err := json.Marshal(scenario)
	if err != nil {
		return "", fmt.Errorf("marshal scenario: %w", err)
	}
	group, err := json.Marshal(survivors)
	if err != nil {
		return "", fmt.Errorf("marshal survivors: %w", err)
	}
	return fmt.Sprintf(`You are a cynical post-apocalypse simulator. Work out the fate of the people who sealed themselves in the bunker.
Be harsh, logical and realistic. No happy ending if the team is weak.

INPUT:
1. CATASTROPHE: %s
2. SURVIVORS: %s

Consider silently, without writing it out: reproduction (are there men and women aged 20-45), medicine (a doctor, a first aid kit, untreated illness), psychology (dangerous traits or professions) and resources (food growers, engineers to repair the bunker).

Answer with a short story of 6-8 sentences: describe how the years in the bunker went, name specific players and how their items or traits saved or doomed the group, and explain how anyone who died did so.

End with exactly one verdict in capital letters:
[THE GROUP SURVIVED AND REBUILT HUMANITY]
or
[THE BUNKER BECAME A GRAVE. HUMANITY PERISHED]`, sc, group), nil
}

type rawSetup struct {
	Scenario models.Scenario `json:"scenario"`
	Players  []rawCharacter  `json:"players"`
}

type rawCharacter struct {
	Profession string `json:"profession"`
	Gender     string `json:"gender"`
	Age        any    `json:"age"`
	Health     string `json:"health"`
	Hobby      string `json:"hobby"`
	Inventory  string `json:"inventory"`
	Trait      string `json:"trait"`
	Ability    any    `json:"ability"`
}

// ParseSetup extracts the JSON object embedded in free-form model text and
// converts it into a setup for playerCount players.
func ParseSetup(text string, playerCount int) (*models.GameSetup, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrMalformedSetup)
	}

	var raw rawSetup
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSetup, err)
	}
	if len(raw.Players) < playerCount {
		return nil, fmt.Errorf("%w: %d characters for %d players", ErrMalformedSetup, len(raw.Players), playerCount)
	}

	setup := &models.GameSetup{
		Scenario:   raw.Scenario,
		Characters: make([]models.Character, 0, playerCount),
	}
	if setup.Scenario.Places <= 0 {
		setup.Scenario.Places = models.DefaultPlaces
	}
	for _, p := range raw.Players[:playerCount] {
		setup.Characters = append(setup.Characters, models.Character{
			Profession: p.Profession,
			Gender:     p.Gender,
			Age:        stringify(p.Age),
			Health:     p.Health,
			Hobby:      p.Hobby,
			Inventory:  p.Inventory,
			Trait:      p.Trait,
			Ability:    models.Ability{Kind: parseAbility(p.Ability)},
		})
	}
	return setup, nil
}

// stringify accepts the numbers models like to emit for ages.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

// parseAbility accepts "heal" or {"kind":"heal"}; anything else is no ability.
func parseAbility(v any) models.AbilityKind {
	var kind string
	switch t := v.(type) {
	case string:
		kind = t
	case map[string]any:
		kind, _ = t["kind"].(string)
	}
	switch models.AbilityKind(strings.ToLower(strings.TrimSpace(kind))) {
	case models.AbilityHeal:
		return models.AbilityHeal
	}
	return models.AbilityNone
}

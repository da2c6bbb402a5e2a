package models

import "fmt"

// TraitKey names one disclosable attribute of a character.
type TraitKey string

const (
	TraitProfession TraitKey = "profession"
	TraitGender     TraitKey = "gender"
	TraitAge        TraitKey = "age"
	TraitHealth     TraitKey = "health"
	TraitHobby      TraitKey = "hobby"
	TraitInventory  TraitKey = "inventory"
	TraitSecret     TraitKey = "trait"
)

// AllTraits lists every disclosable trait in sheet order.
var AllTraits = []TraitKey{
	TraitProfession,
	TraitGender,
	TraitAge,
	TraitHealth,
	TraitHobby,
	TraitInventory,
	TraitSecret,
}

// OpeningTraits are disclosed for every player when a game starts.
var OpeningTraits = []TraitKey{TraitGender, TraitAge}

// ParseTraitKey validates a client supplied trait key.
func ParseTraitKey(s string) (TraitKey, error) {
	for _, k := range AllTraits {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown trait %q", s)
}

// AbilityKind defines the special ability a character may hold.
type AbilityKind string

const (
	AbilityNone AbilityKind = ""
	AbilityHeal AbilityKind = "heal"
)

// HealedHealth is the health value written by a heal ability.
const HealedHealth = "Healthy"

// Ability is a one-shot special action of a character.
type Ability struct {
	Kind AbilityKind `json:"kind,omitempty"`
	Used bool        `json:"used,omitempty"`
}

// Available reports whether the ability exists and has not been spent.
func (a Ability) Available() bool {
	return a.Kind != AbilityNone && !a.Used
}

// TargetTrait is the trait an ability rewrites on its target.
func (a Ability) TargetTrait() (TraitKey, bool) {
	switch a.Kind {
	case AbilityHeal:
		return TraitHealth, true
	}
	return "", false
}

// Character is the private attribute bundle dealt to a player at game start.
type Character struct {
	Profession string  `json:"profession"`
	Gender     string  `json:"gender"`
	Age        string  `json:"age"`
	Health     string  `json:"health"`
	Hobby      string  `json:"hobby"`
	Inventory  string  `json:"inventory"`
	Trait      string  `json:"trait"`
	Ability    Ability `json:"ability"`
}

// Value returns the value of a trait.
func (c *Character) Value(key TraitKey) string {
	switch key {
	case TraitProfession:
		return c.Profession
	case TraitGender:
		return c.Gender
	case TraitAge:
		return c.Age
	case TraitHealth:
		return c.Health
	case TraitHobby:
		return c.Hobby
	case TraitInventory:
		return c.Inventory
	case TraitSecret:
		return c.Trait
	}
	return ""
}

// setValue is only reachable through ability side effects.
func (c *Character) setValue(key TraitKey, v string) {
	switch key {
	case TraitHealth:
		c.Health = v
	}
}

// ApplyAbility applies a's effect to target and returns the rewritten trait.
func (c *Character) ApplyAbility(target *Character) (TraitKey, string, error) {
	if !c.Ability.Available() {
		return "", "", fmt.Errorf("no ability available")
	}
	key, ok := c.Ability.TargetTrait()
	if !ok {
		return "", "", fmt.Errorf("ability %q has no effect", c.Ability.Kind)
	}
	switch c.Ability.Kind {
	case AbilityHeal:
		target.setValue(key, HealedHealth)
	}
	c.Ability.Used = true
	return key, target.Value(key), nil
}

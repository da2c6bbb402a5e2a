package narrative

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/mcdev12/bunker/go/internal/models"
)

var (
	offlineScenarios = []models.Scenario{
		{Title: "Nuclear Winter", Description: "The sky went dark after the exchange. Nothing grows on the surface.", Duration: "3 years"},
		{Title: "The Grey Plague", Description: "An airborne fungus turns lungs to stone within days.", Duration: "18 months"},
		{Title: "Rising Seas", Description: "The coasts are gone and the storms never stop.", Duration: "5 years"},
	}
	offlineProfessions = []string{"Surgeon", "Farmer", "Electrician", "Teacher", "Soldier", "Chemist", "Cook", "Priest", "Mechanic", "Lawyer"}
	offlineGenders     = []string{"Male", "Female"}
	offlineHealth      = []string{"Perfectly healthy", "Asthma", "Diabetes", "Broken leg", "Poor eyesight", "Healthy"}
	offlineHobbies     = []string{"Gardening", "Chess", "Hunting", "Knitting", "Climbing", "Guitar"}
	offlineInventory   = []string{"First aid kit", "Seed bank", "Rifle", "Radio", "Water filter", "Toolbox"}
	offlineTraits      = []string{"Claustrophobic", "Natural leader", "Compulsive liar", "Calm under pressure", "Kleptomaniac", "Optimist"}
)

// Offline deals setups from built-in decks. It stands in for the model when
// no API key is configured.
type Offline struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewOffline(rng *rand.Rand) *Offline {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Offline{rng: rng}
}

func (o *Offline) pick(deck []string) string {
	return deck[o.rng.IntN(len(deck))]
}

func (o *Offline) GenerateSetup(_ context.Context, playerCount int) (*models.GameSetup, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	setup := &models.GameSetup{
		Scenario:   offlineScenarios[o.rng.IntN(len(offlineScenarios))],
		Characters: make([]models.Character, playerCount),
	}
	setup.Scenario.Places = max(models.DefaultPlaces, playerCount/2)

	healer := o.rng.IntN(max(playerCount, 1))
	for i := range setup.Characters {
		c := models.Character{
			Profession: o.pick(offlineProfessions),
			Gender:     o.pick(offlineGenders),
			Age:        fmt.Sprint(18 + o.rng.IntN(60)),
			Health:     o.pick(offlineHealth),
			Hobby:      o.pick(offlineHobbies),
			Inventory:  o.pick(offlineInventory),
			Trait:      o.pick(offlineTraits),
		}
		if i == healer {
			c.Ability.Kind = models.AbilityHeal
		}
		setup.Characters[i] = c
	}
	return setup, nil
}

func (o *Offline) GenerateEnding(_ context.Context, scenario models.Scenario, survivors []models.Survivor) (string, error) {
	if len(survivors) == 0 {
		return fmt.Sprintf("%s claimed everyone. The bunker stayed sealed and silent.\n[THE BUNKER BECAME A GRAVE. HUMANITY PERISHED]", scenario.Title), nil
	}

	names := make([]string, len(survivors))
	medic := false
	for i, s := range survivors {
		names[i] = s.Name
		if strings.Contains(strings.ToLower(s.Profession), "surgeon") || strings.Contains(strings.ToLower(s.Inventory), "first aid") {
			medic = true
		}
	}
	genders := make(map[string]bool)
	for _, s := range survivors {
		genders[s.Gender] = true
	}
	fertile := len(genders) > 1

	var b strings.Builder
	fmt.Fprintf(&b, "%s sealed the door on %s. ", strings.Join(names, ", "), scenario.Title)
	if medic {
		b.WriteString("Someone knew how to treat the sick, and the first winter took nobody. ")
	} else {
		b.WriteString("Without medicine the first fever spread through the bunker. ")
	}
	if fertile && medic {
		b.WriteString("When the hatch opened, children walked out with them.\n[THE GROUP SURVIVED AND REBUILT HUMANITY]")
	} else {
		b.WriteString("When the hatch finally opened, there was no one left to climb out.\n[THE BUNKER BECAME A GRAVE. HUMANITY PERISHED]")
	}
	return b.String(), nil
}

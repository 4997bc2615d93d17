package economy

import (
	"math"
	"testing"

	"github.com/wfunc/battleserver/models"
)

func testHeroConfigs() map[models.Rarity]models.HeroConfig {
	return map[models.Rarity]models.HeroConfig{
		models.RarityCommon: {
			Rarity:       models.RarityCommon,
			TeamModifier: 0.15,
			TeamValue:    map[int]float64{1: 5000, 2: 10000, 3: 15000},
		},
		models.RarityRare: {
			Rarity:       models.RarityRare,
			TeamModifier: 0.25,
			TeamValue:    map[int]float64{1: 12500, 2: 25000, 3: 37500},
		},
		models.RarityLegendary: {
			Rarity:       models.RarityLegendary,
			TeamModifier: 0.5,
			TeamValue:    map[int]float64{1: 12500, 2: 25000, 3: 37500},
		},
	}
}

func member(rarity models.Rarity, level int) *models.Combatant {
	return &models.Combatant{Name: string(rarity), Rarity: rarity, Level: level}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEconomicFragment_ThreeCommons(t *testing.T) {
	team := []*models.Combatant{
		member(models.RarityCommon, 1),
		member(models.RarityCommon, 1),
		member(models.RarityCommon, 1),
	}

	got := EconomicFragment(team, testHeroConfigs())

	// totalValue 15000, normalized 15000/112500, modifier 0.15
	want := (15000.0/112500.0)*0.85 + 0.15
	if !almostEqual(got, want) {
		t.Errorf("Expected fragment %v, got %v", want, got)
	}
}

func TestEconomicFragment_EmptyTeam(t *testing.T) {
	if got := EconomicFragment(nil, testHeroConfigs()); got != 0 {
		t.Errorf("Expected 0 for an empty team, got %v", got)
	}
}

func TestEconomicFragment_ZeroValueFloorsAtModifier(t *testing.T) {
	// Level 99 has no teamValue entry, so the team contributes nothing.
	team := []*models.Combatant{member(models.RarityCommon, 99)}

	got := EconomicFragment(team, testHeroConfigs())

	if !almostEqual(got, 0.15) {
		t.Errorf("Expected floor 0.15, got %v", got)
	}
}

func TestEconomicFragment_MissingConfigDefaults(t *testing.T) {
	team := []*models.Combatant{member(models.RarityEpic, 1)}

	got := EconomicFragment(team, map[models.Rarity]models.HeroConfig{})

	if !almostEqual(got, defaultTeamModifier) {
		t.Errorf("Expected default modifier %v, got %v", defaultTeamModifier, got)
	}
}

func TestEconomicFragment_UsesLowestRarityModifier(t *testing.T) {
	team := []*models.Combatant{
		member(models.RarityLegendary, 3),
		member(models.RarityCommon, 1),
	}

	got := EconomicFragment(team, testHeroConfigs())

	// 37500 + 5000 normalized, floored by the common modifier 0.15
	want := (42500.0/112500.0)*0.85 + 0.15
	if !almostEqual(got, want) {
		t.Errorf("Expected fragment %v, got %v", want, got)
	}
}

func TestEconomicFragment_Bounds(t *testing.T) {
	heroes := testHeroConfigs()
	teams := [][]*models.Combatant{
		{member(models.RarityCommon, 1)},
		{member(models.RarityRare, 3), member(models.RarityRare, 3), member(models.RarityRare, 3)},
		{member(models.RarityLegendary, 3), member(models.RarityCommon, 3), member(models.RarityRare, 2)},
		{member(models.RarityEpic, 1), member(models.RarityEpic, 2)},
	}

	for i, team := range teams {
		got := EconomicFragment(team, heroes)
		if got < 0 || got > 1 {
			t.Errorf("Team %d: fragment %v outside [0,1]", i, got)
		}
	}
}

func TestSkillFragment_Table(t *testing.T) {
	cases := []struct {
		streak int
		want   float64
	}{
		{1, 1},
		{2, 5},
		{3, 7},
		{5, 11},
		{9, 21},
		{15, 21}, // clamped to 9
		{0, 21},  // falls through to the highest tier
	}

	for _, tc := range cases {
		if got := SkillFragment(tc.streak); !almostEqual(got, tc.want) {
			t.Errorf("SkillFragment(%d) = %v, want %v", tc.streak, got, tc.want)
		}
	}
}

func TestBooster_Threshold(t *testing.T) {
	for streak := 0; streak < 10; streak++ {
		got := Booster(streak)
		if streak >= 3 && got != 2 {
			t.Errorf("Booster(%d) = %v, want 2", streak, got)
		}
		if streak < 3 && got != 1 {
			t.Errorf("Booster(%d) = %v, want 1", streak, got)
		}
	}
}

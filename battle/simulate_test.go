package battle

import (
	"math/rand"
	"testing"

	"github.com/wfunc/battleserver/models"
)

func newTeam(prefix string, hp int, spd float64, size int) []*models.Combatant {
	team := make([]*models.Combatant, 0, size)
	for i := 0; i < size; i++ {
		team = append(team, newCombatant(prefix+string(rune('1'+i)), hp, 100, 50, spd))
	}
	return team
}

func totalHP(teams ...[]*models.Combatant) int {
	sum := 0
	for _, team := range teams {
		for _, c := range team {
			sum += c.HP
		}
	}
	return sum
}

func TestSimulate_Terminates(t *testing.T) {
	teamA := newTeam("a", 500, 10, 3)
	teamB := newTeam("b", 500, 8, 3)
	bound := totalHP(teamA, teamB)/MinDamage + 1

	result, err := Simulate(teamA, teamB, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if len(result.Log) == 0 {
		t.Fatal("Expected a non-empty battle log")
	}
	if len(result.Log) > bound {
		t.Errorf("Log has %d entries, exceeding the termination bound %d", len(result.Log), bound)
	}
}

func TestSimulate_TurnsAreMonotonic(t *testing.T) {
	teamA := newTeam("a", 300, 10, 2)
	teamB := newTeam("b", 300, 8, 2)

	result, err := Simulate(teamA, teamB, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	for i, entry := range result.Log {
		if entry.Turn != i+1 {
			t.Fatalf("Entry %d has turn %d, expected %d", i, entry.Turn, i+1)
		}
	}
}

func TestSimulate_HPNeverNegative(t *testing.T) {
	teamA := newTeam("a", 300, 10, 2)
	teamB := newTeam("b", 300, 8, 2)

	result, err := Simulate(teamA, teamB, rand.New(rand.NewSource(99)))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	for _, entry := range result.Log {
		if entry.RemainingHP < 0 {
			t.Fatalf("Entry %d has negative remaining hp %d", entry.Turn, entry.RemainingHP)
		}
	}
	for _, c := range append(teamA, teamB...) {
		if c.HP < 0 {
			t.Errorf("Combatant %s ended with negative hp %d", c.Name, c.HP)
		}
	}
}

func TestSimulate_WinnerConsistency(t *testing.T) {
	teamA := newTeam("a", 500, 10, 2)
	teamB := newTeam("b", 500, 8, 2)

	result, err := Simulate(teamA, teamB, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	winners, losers := teamA, teamB
	if result.Winner == "teamB" {
		winners, losers = teamB, teamA
	}

	if aliveCount(winners) == 0 {
		t.Error("Winning team has no living members")
	}
	if aliveCount(losers) != 0 {
		t.Error("Losing team still has living members")
	}
}

func TestSimulate_SpeedOrdering(t *testing.T) {
	// One-sided fight: durable but weak defenders never kill the attackers,
	// so the first round plays out in full speed order.
	fast := newCombatant("fast", 100000, 100, 50, 30)
	mid := newCombatant("mid", 100000, 100, 50, 20)
	slow := newCombatant("slow", 100000, 100, 50, 10)
	teamA := []*models.Combatant{slow, fast}
	teamB := []*models.Combatant{mid}

	result, err := Simulate(teamA, teamB, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if len(result.Log) < 3 {
		t.Fatalf("Expected at least one full round, got %d entries", len(result.Log))
	}
	expected := []string{"fast", "mid", "slow"}
	for i, name := range expected {
		if result.Log[i].Attacker != name {
			t.Errorf("Action %d: expected attacker %s, got %s", i, name, result.Log[i].Attacker)
		}
	}
}

func TestSimulate_SpeedTieKeepsRosterOrder(t *testing.T) {
	first := newCombatant("first", 100000, 100, 50, 10)
	second := newCombatant("second", 100000, 100, 50, 10)
	enemy := newCombatant("enemy", 100000, 100, 50, 10)

	result, err := Simulate([]*models.Combatant{first, second}, []*models.Combatant{enemy}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if result.Log[0].Attacker != "first" || result.Log[1].Attacker != "second" {
		t.Errorf("Tied speeds should act in roster order, got %s then %s",
			result.Log[0].Attacker, result.Log[1].Attacker)
	}
}

func TestSimulate_EmptyTeamLosesImmediately(t *testing.T) {
	teamB := newTeam("b", 500, 10, 2)

	result, err := Simulate(nil, teamB, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if result.Winner != "teamB" {
		t.Errorf("Expected teamB to win by default, got %s", result.Winner)
	}
	if len(result.Log) != 0 {
		t.Errorf("Expected an empty log, got %d entries", len(result.Log))
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	run := func(seed int64) *Result {
		teamA := newTeam("a", 500, 10, 3)
		teamB := newTeam("b", 500, 8, 3)
		result, err := Simulate(teamA, teamB, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("Simulate failed: %v", err)
		}
		return result
	}

	first, second := run(1234), run(1234)

	if first.Winner != second.Winner {
		t.Fatalf("Same seed picked different winners: %s vs %s", first.Winner, second.Winner)
	}
	if len(first.Log) != len(second.Log) {
		t.Fatalf("Same seed produced different log lengths: %d vs %d", len(first.Log), len(second.Log))
	}
	for i := range first.Log {
		a, b := first.Log[i], second.Log[i]
		if a.Attacker != b.Attacker || a.Defender != b.Defender || a.Damage != b.Damage || a.Skill != b.Skill {
			t.Fatalf("Entry %d differs between identical seeds", i)
		}
	}
}

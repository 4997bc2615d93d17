package battle

import (
	"errors"
	"testing"

	"github.com/wfunc/battleserver/models"
)

func TestChooseSkill_Ultimate(t *testing.T) {
	c := newCombatant("hero", 1000, 100, 50, 10)

	skill, err := ChooseSkill(c, &stubRand{floats: []float64{0.1}})
	if err != nil {
		t.Fatalf("ChooseSkill failed: %v", err)
	}

	if skill.Name != "ultimate" {
		t.Errorf("Expected ultimate, got %s", skill.Name)
	}
	if c.CdUlt != 5 {
		t.Errorf("Expected ultimate cooldown reset to 5, got %d", c.CdUlt)
	}
}

func TestChooseSkill_SkillWhenUltimateRollFails(t *testing.T) {
	c := newCombatant("hero", 1000, 100, 50, 10)

	skill, err := ChooseSkill(c, &stubRand{floats: []float64{0.9, 0.1}})
	if err != nil {
		t.Fatalf("ChooseSkill failed: %v", err)
	}

	if skill.Name != "skill" {
		t.Errorf("Expected skill, got %s", skill.Name)
	}
	if c.CdSkill != 2 {
		t.Errorf("Expected skill cooldown reset to 2, got %d", c.CdSkill)
	}
}

func TestChooseSkill_BasicWhenAllRollsFail(t *testing.T) {
	c := newCombatant("hero", 1000, 100, 50, 10)

	skill, err := ChooseSkill(c, &stubRand{floats: []float64{0.9, 0.9}})
	if err != nil {
		t.Fatalf("ChooseSkill failed: %v", err)
	}

	if skill.Name != "basic" {
		t.Errorf("Expected basic, got %s", skill.Name)
	}
}

func TestChooseSkill_CooldownBlocksUltimate(t *testing.T) {
	c := newCombatant("hero", 1000, 100, 50, 10)
	c.CdUlt = 3
	c.CdSkill = 1

	// Neither tier is off cooldown, no rolls should matter.
	skill, err := ChooseSkill(c, &stubRand{floats: []float64{0.0, 0.0}})
	if err != nil {
		t.Fatalf("ChooseSkill failed: %v", err)
	}

	if skill.Name != "basic" {
		t.Errorf("Expected basic while on cooldown, got %s", skill.Name)
	}
}

func TestChooseSkill_FallbackToBasic(t *testing.T) {
	c := newCombatant("hero", 1000, 100, 50, 10)
	c.UltimateAttack = nil

	skill, err := ChooseSkill(c, &stubRand{floats: []float64{0.1}})
	if err != nil {
		t.Fatalf("ChooseSkill failed: %v", err)
	}

	if skill.Name != "basic" {
		t.Errorf("Expected fallback to basic, got %s", skill.Name)
	}
}

func TestChooseSkill_MissingBasicIsFatal(t *testing.T) {
	c := newCombatant("hero", 1000, 100, 50, 10)
	c.BasicAttack = nil
	c.SkillAttack = nil
	c.UltimateAttack = nil

	_, err := ChooseSkill(c, &stubRand{floats: []float64{0.9, 0.9}})
	if !errors.Is(err, ErrNoBasicAttack) {
		t.Errorf("Expected ErrNoBasicAttack, got %v", err)
	}
}

func TestChooseTarget_OnlyLivingTargets(t *testing.T) {
	attacker := newCombatant("attacker", 1000, 100, 50, 10)
	dead := newCombatant("dead", 0, 100, 50, 10)
	dead.HP = 0
	living := newCombatant("living", 500, 100, 50, 10)

	for i := 0; i < 20; i++ {
		target := ChooseTarget([]*models.Combatant{dead, living}, attacker, &stubRand{ints: []int{i}})
		if target != living {
			t.Fatalf("Picked dead combatant on draw %d", i)
		}
	}
}

func TestChooseTarget_NoCandidates(t *testing.T) {
	attacker := newCombatant("attacker", 1000, 100, 50, 10)
	dead := newCombatant("dead", 0, 100, 50, 10)
	dead.HP = 0

	if target := ChooseTarget([]*models.Combatant{dead}, attacker, &stubRand{}); target != nil {
		t.Errorf("Expected nil target, got %s", target.Name)
	}
}

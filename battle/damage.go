package battle

import (
	"math"

	"github.com/wfunc/battleserver/models"
)

// MinDamage 伤害下限，保证高防御下战斗仍会推进
const MinDamage = 10

// ComputeDamage 按技能倍率和双方属性结算一次攻击
// 原始伤害全部来自攻击者自身的 atk/def/hp
func ComputeDamage(attacker, defender *models.Combatant, skill *models.Skill, rng Rand) (int, bool) {
	raw := attacker.Atk*skill.AtkMultiplier +
		attacker.Def*skill.DefMultiplier +
		float64(attacker.HP)*skill.HpMultiplier

	defenseMultiplier := 100.0 / (100.0 + defender.Def)
	reduced := raw * defenseMultiplier

	if reduced < MinDamage {
		reduced = MinDamage
	}

	isCrit := false
	if rng.Float64() < attacker.CritRate {
		reduced *= 1 + attacker.CritDmg
		isCrit = true
	}

	return int(math.Round(reduced)), isCrit
}

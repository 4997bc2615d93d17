package battle

import (
	"errors"
	"fmt"

	"github.com/wfunc/battleserver/models"
)

const (
	ultChance    = 0.2
	skillChance  = 0.4
	cdUltReset   = 5
	cdSkillReset = 2
)

// ErrNoBasicAttack 蓝图缺少普攻，属于配置错误，整场战斗终止
var ErrNoBasicAttack = errors.New("combatant has no basic attack")

// ChooseSkill 决定本次行动使用的技能，命中高阶技能时重置其冷却
// 判定顺序: 大招(冷却为0且20%概率) → 技能(冷却为0且40%概率) → 普攻
func ChooseSkill(attacker *models.Combatant, rng Rand) (*models.Skill, error) {
	if attacker.CdUlt == 0 && rng.Float64() < ultChance {
		attacker.CdUlt = cdUltReset
		if attacker.UltimateAttack != nil {
			return attacker.UltimateAttack, nil
		}
		// 缺少大招配置时退回普攻
		return basicOf(attacker)
	}

	if attacker.CdSkill == 0 && rng.Float64() < skillChance {
		attacker.CdSkill = cdSkillReset
		if attacker.SkillAttack != nil {
			return attacker.SkillAttack, nil
		}
		return basicOf(attacker)
	}

	return basicOf(attacker)
}

func basicOf(attacker *models.Combatant) (*models.Skill, error) {
	if attacker.BasicAttack == nil {
		return nil, fmt.Errorf("combatant %s: %w", attacker.Name, ErrNoBasicAttack)
	}
	return attacker.BasicAttack, nil
}

// ChooseTarget 在存活的敌方单位中均匀随机选取目标
// 调用方必须保证至少存在一个存活目标
func ChooseTarget(enemies []*models.Combatant, attacker *models.Combatant, rng Rand) *models.Combatant {
	alive := make([]*models.Combatant, 0, len(enemies))
	for _, e := range enemies {
		if e.Alive() && e != attacker {
			alive = append(alive, e)
		}
	}
	if len(alive) == 0 {
		return nil
	}
	return alive[rng.Intn(len(alive))]
}

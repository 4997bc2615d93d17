package battle

import (
	"sort"
	"time"

	"github.com/wfunc/battleserver/models"
)

// Result 战斗结果
type Result struct {
	Winner string                  `json:"winner"` // "teamA" 或 "teamB"
	Log    []models.BattleLogEntry `json:"log"`
}

type actor struct {
	c    *models.Combatant
	side string
}

// Simulate 驱动整场战斗直到一方全灭
//
// 每一回合对当时存活的单位按速度降序排一次快照，速度相同按 A 队在前的
// 入场顺序保持稳定。行动时重新校验存活状态，单位可能在本回合内阵亡。
// turn 是全场递增的行动序号，不按回合重置。
//
// 任意一方开局即为空队伍时直接判负，返回空日志。
func Simulate(teamA, teamB []*models.Combatant, rng Rand) (*Result, error) {
	for _, c := range append(append([]*models.Combatant{}, teamA...), teamB...) {
		c.CdSkill = 0
		c.CdUlt = 0
	}

	log := make([]models.BattleLogEntry, 0)
	turn := 1

	for aliveCount(teamA) > 0 && aliveCount(teamB) > 0 {
		actors := make([]*actor, 0, len(teamA)+len(teamB))
		for _, c := range teamA {
			if c.Alive() {
				actors = append(actors, &actor{c: c, side: "teamA"})
			}
		}
		for _, c := range teamB {
			if c.Alive() {
				actors = append(actors, &actor{c: c, side: "teamB"})
			}
		}
		sort.SliceStable(actors, func(i, j int) bool {
			return actors[i].c.Spd > actors[j].c.Spd
		})

		for _, a := range actors {
			// 快照之后状态可能已经变化，行动前重新校验
			if !a.c.Alive() {
				continue
			}
			enemies := teamB
			if a.side == "teamB" {
				enemies = teamA
			}
			if aliveCount(enemies) == 0 {
				continue
			}

			if a.c.CdSkill > 0 {
				a.c.CdSkill--
			}
			if a.c.CdUlt > 0 {
				a.c.CdUlt--
			}

			skill, err := ChooseSkill(a.c, rng)
			if err != nil {
				return nil, err
			}
			target := ChooseTarget(enemies, a.c, rng)

			damage, isCrit := ComputeDamage(a.c, target, skill, rng)
			target.HP -= damage
			if target.HP < 0 {
				target.HP = 0
			}

			log = append(log, models.BattleLogEntry{
				Turn:        turn,
				Attacker:    a.c.Name,
				Defender:    target.Name,
				Skill:       skill.Name,
				Damage:      damage,
				IsCrit:      isCrit,
				RemainingHP: target.HP,
				Timestamp:   time.Now(),
			})
			turn++
		}
	}

	winner := "teamA"
	if aliveCount(teamA) == 0 {
		winner = "teamB"
	}
	return &Result{Winner: winner, Log: log}, nil
}

func aliveCount(team []*models.Combatant) int {
	n := 0
	for _, c := range team {
		if c.Alive() {
			n++
		}
	}
	return n
}

package economy

import (
	"github.com/wfunc/battleserver/models"
)

const (
	// maxMemberValue 单个英雄的最大价值，maxTeamSize 人满编时用于归一化
	maxMemberValue = 37500
	maxTeamSize    = 3

	// defaultTeamModifier 稀有度未配置时的保底系数
	defaultTeamModifier = 0.15
)

// winRateTable 连胜长度对应的技能碎片百分比
var winRateTable = map[int]float64{
	1: 0.01,
	2: 0.05,
	3: 0.07,
	4: 0.09,
	5: 0.11,
	6: 0.13,
	7: 0.15,
	8: 0.17,
	9: 0.21,
}

// fallbackWinRate 表中没有的值(包括连胜0)落到最高档
// 连胜0拿到和连胜9同样的档位看起来不像有意设计，上线前需要产品确认，
// 在确认之前保持线上行为不变
const fallbackWinRate = 0.21

// EconomicFragment 把队伍的稀有度×等级构成折算成 [0,1] 的经济碎片
//
// 队伍价值按每个成员在 HeroConfig.teamValue 里的贡献累加，缺失条目按 0 计。
// 保底系数取队伍中最低稀有度的 teamModifier，保证空价值队伍也有
// teamModifier 的下限，满价值队伍趋近 1。
func EconomicFragment(team []*models.Combatant, heroes map[models.Rarity]models.HeroConfig) float64 {
	if len(team) == 0 {
		return 0
	}

	totalValue := 0.0
	lowest := team[0].Rarity
	for _, member := range team {
		if cfg, ok := heroes[member.Rarity]; ok {
			totalValue += cfg.TeamValue[member.Level]
		}
		if models.RarityOrder[member.Rarity] < models.RarityOrder[lowest] {
			lowest = member.Rarity
		}
	}

	normalized := totalValue / (maxMemberValue * maxTeamSize)

	modifier := defaultTeamModifier
	if cfg, ok := heroes[lowest]; ok {
		modifier = cfg.TeamModifier
	}

	return normalized*(1-modifier) + modifier
}

// SkillFragment 按当前连胜返回技能碎片，连胜超过9按9计
func SkillFragment(winStreak int) float64 {
	clamped := winStreak
	if clamped > 9 {
		clamped = 9
	}
	rate, ok := winRateTable[clamped]
	if !ok {
		rate = fallbackWinRate
	}
	return rate * 100
}

// Booster 三连胜起翻倍
func Booster(winStreak int) float64 {
	if winStreak >= 3 {
		return 2
	}
	return 1
}

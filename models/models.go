// models/models.go
package models

import (
	"time"
)

// Rarity 英雄稀有度
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// RarityOrder 稀有度排序，用于确定队伍的最低稀有度
var RarityOrder = map[Rarity]int{
	RarityCommon:    0,
	RarityRare:      1,
	RarityEpic:      2,
	RarityLegendary: 3,
}

// BattleMode 战斗模式
type BattleMode string

const (
	ModePVP  BattleMode = "pvp"
	ModePVE  BattleMode = "pve"
	ModeRaid BattleMode = "raid"
)

// BattleState 战斗生命周期状态
type BattleState string

const (
	BattlePending  BattleState = "pending"
	BattleActive   BattleState = "active"
	BattleFinished BattleState = "finished"
)

// Skill 技能定义，伤害由三个倍率和攻击者自身属性决定
type Skill struct {
	Name          string  `json:"name"`
	AtkMultiplier float64 `json:"atkMultiplier"`
	DefMultiplier float64 `json:"defMultiplier"`
	HpMultiplier  float64 `json:"hpMultiplier"`
}

// Combatant 战斗单位，每场战斗从英雄蓝图新建一份
// HP 和冷却计数是战斗中唯一会变化的字段
type Combatant struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Rarity Rarity  `json:"rarity"`
	Level  int     `json:"level"`
	HP     int     `json:"hp"`
	MaxHP  int     `json:"maxHp"`
	Atk    float64 `json:"atk"`
	Def    float64 `json:"def"`
	Spd    float64 `json:"spd"`
	// CritRate 取值 0-1，CritDmg 是额外倍率(0.5 = +50%)
	CritRate float64 `json:"critRate"`
	CritDmg  float64 `json:"critDmg"`

	BasicAttack    *Skill `json:"basicAttack"`
	SkillAttack    *Skill `json:"skillAttack"`
	UltimateAttack *Skill `json:"ultimateAttack"`

	// 冷却回合计数，每个单位行动一次递减一次
	CdSkill int `json:"-"`
	CdUlt   int `json:"-"`
}

// Alive 单位是否存活
func (c *Combatant) Alive() bool {
	return c.HP > 0
}

// BattleLogEntry 战斗日志，turn 为全场递增的行动序号
type BattleLogEntry struct {
	Turn        int       `json:"turn"`
	Attacker    string    `json:"attacker"`
	Defender    string    `json:"defender"`
	Skill       string    `json:"skill"`
	Damage      int       `json:"damage"`
	IsCrit      bool      `json:"isCrit"`
	RemainingHP int       `json:"remainingHp"`
	Timestamp   time.Time `json:"timestamp"`
}

// BattlePlayer 参战玩家及其队伍
type BattlePlayer struct {
	User     string       `json:"user"`
	Team     []*Combatant `json:"team"`
	IsWinner bool         `json:"isWinner"`
}

// Battle 一场战斗的完整记录
type Battle struct {
	ID        string           `json:"id"`
	Mode      BattleMode       `json:"mode"`
	State     BattleState      `json:"state"`
	Players   []BattlePlayer   `json:"players"`
	Log       []BattleLogEntry `json:"log"`
	CreatedAt time.Time        `json:"created_at"`
}

// MatchEarning 每场比赛每个玩家一条，写入后不可变
type MatchEarning struct {
	PlayerID string `json:"playerId"`
	// GameNumber 同一玩家同一天内从 1 开始递增
	GameNumber       int       `json:"gameNumber"`
	WinCount         int       `json:"winCount"`
	SkillFragment    float64   `json:"skillFragment"`
	EconomicFragment float64   `json:"economicFragment"`
	Booster          float64   `json:"booster"`
	RankModifier     float64   `json:"rankModifier"`
	TotalFragment    float64   `json:"totalFragment"`
	CreatedAt        time.Time `json:"created_at"`
}

// DailyEarning 每个玩家每天一条，rank/winStreak/heroesUsed 覆盖写，
// totalFragment/totalDailyEarning 累加
type DailyEarning struct {
	PlayerID          string    `json:"playerId"`
	Day               time.Time `json:"day"`
	Rank              string    `json:"rank"`
	WinStreak         int       `json:"winStreak"`
	TotalFragment     float64   `json:"totalFragment"`
	TotalDailyEarning float64   `json:"totalDailyEarning"`
	HeroesUsed        []string  `json:"heroesUsed"`
	CreatedAt         time.Time `json:"created_at"`
}

// Player 玩家聚合数据
type Player struct {
	WalletAddress string    `json:"walletAddress"`
	Username      string    `json:"username"`
	Rank          string    `json:"rank"`
	TotalEarning  float64   `json:"totalEarning"`
	LastActive    time.Time `json:"lastActive"`
}

// HeroConfig 每个稀有度的经济配置
type HeroConfig struct {
	Rarity Rarity `json:"rarity"`
	// TeamModifier 作为队伍碎片的保底系数(0-1)
	TeamModifier float64 `json:"teamModifier"`
	// TeamValue 按英雄等级给出的价值贡献
	TeamValue map[int]float64 `json:"teamValue"`
}

// RankConfig 段位奖励系数
type RankConfig struct {
	Rank     string  `json:"rank"`
	Modifier float64 `json:"modifier"`
}

// Day 把时间截断到本地日期零点，作为日账本的键
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormBattle 战斗记录模型
type GormBattle struct {
	gorm.Model
	BattleID string           `gorm:"uniqueIndex;not null"`
	Mode     string           `gorm:"not null"`
	State    string           `gorm:"not null"`
	Players  []BattlePlayer   `gorm:"type:jsonb;serializer:json;not null"`
	Log      []BattleLogEntry `gorm:"type:jsonb;serializer:json"`
}

// GormMatchEarning 单场收益账本，只增不改
type GormMatchEarning struct {
	gorm.Model
	PlayerID         string  `gorm:"uniqueIndex:idx_match_earnings_seq;not null"`
	Day              string  `gorm:"uniqueIndex:idx_match_earnings_seq;not null"` // YYYY-MM-DD 本地日期
	GameNumber       int     `gorm:"uniqueIndex:idx_match_earnings_seq;not null"`
	WinCount         int     `gorm:"not null"`
	SkillFragment    float64 `gorm:"not null"`
	EconomicFragment float64 `gorm:"not null"`
	Booster          float64 `gorm:"not null"`
	RankModifier     float64 `gorm:"not null"`
	TotalFragment    float64 `gorm:"not null"`
}

// GormDailyEarning 日收益账本，player+day 唯一
type GormDailyEarning struct {
	gorm.Model
	PlayerID          string   `gorm:"uniqueIndex:idx_daily_earnings_player_day;not null"`
	Day               string   `gorm:"uniqueIndex:idx_daily_earnings_player_day;not null"`
	Rank              string   `gorm:"not null"`
	WinStreak         int      `gorm:"default:0"`
	TotalFragment     float64  `gorm:"default:0"`
	TotalDailyEarning float64  `gorm:"default:0"`
	HeroesUsed        []string `gorm:"type:jsonb;serializer:json"`
}

// GormPlayer 玩家聚合模型
type GormPlayer struct {
	gorm.Model
	WalletAddress string  `gorm:"uniqueIndex;not null"`
	Username      string  `gorm:"not null"`
	Rank          string  `gorm:"default:''"`
	TotalEarning  float64 `gorm:"default:0"`
	LastActive    int64   `gorm:"default:0"` // unix 秒
}

// GormHeroConfig 稀有度经济配置
type GormHeroConfig struct {
	gorm.Model
	Rarity       string             `gorm:"uniqueIndex;not null"`
	TeamModifier float64            `gorm:"not null"`
	TeamValue    map[string]float64 `gorm:"type:jsonb;serializer:json"`
}

// GormRankConfig 段位配置
type GormRankConfig struct {
	gorm.Model
	Rank     string  `gorm:"uniqueIndex;not null"`
	Modifier float64 `gorm:"not null"`
	Enabled  bool    `gorm:"default:true"`
}

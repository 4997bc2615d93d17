// persistence/interface.go
package persistence

import (
	"fmt"
	"time"

	"github.com/wfunc/battleserver/models"
)

// Store 账本与配置的持久化接口
type Store interface {
	SaveBattle(b *models.Battle) error
	UpdateBattle(b *models.Battle) error
	LoadBattle(battleID string) (*models.Battle, error)

	HeroConfigs() (map[models.Rarity]models.HeroConfig, error)
	RankConfig(rank string) (*models.RankConfig, error)

	// CreateMatchEarning 在一个事务内分配同一天内递增的 GameNumber 并写入
	CreateMatchEarning(e *models.MatchEarning) error
	MatchEarnings(playerID string, day time.Time) ([]models.MatchEarning, error)

	LatestDailyEarning(playerID string) (*models.DailyEarning, error)
	// UpsertDailyEarning 覆盖 rank/winStreak/heroesUsed，累加两个总额字段
	UpsertDailyEarning(e *models.DailyEarning) error

	GetPlayer(playerID string) (*models.Player, error)
	// CreditPlayer 给玩家累加收益并刷新活跃时间，玩家不存在时创建
	CreditPlayer(playerID string, amount float64, at time.Time) error

	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)

// persistence/gorm_postgresql.go
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/battleserver/models"
)

const dayFormat = "2006-01-02"

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormBattle{},
		&models.GormMatchEarning{},
		&models.GormDailyEarning{},
		&models.GormPlayer{},
		&models.GormHeroConfig{},
		&models.GormRankConfig{},
	)
}

// SaveBattle 新建战斗记录
func (p *GormPostgreSQL) SaveBattle(b *models.Battle) error {
	record := models.GormBattle{
		BattleID: b.ID,
		Mode:     string(b.Mode),
		State:    string(b.State),
		Players:  b.Players,
		Log:      b.Log,
	}
	return p.db.Create(&record).Error
}

// UpdateBattle 更新状态、胜负标记和战斗日志
func (p *GormPostgreSQL) UpdateBattle(b *models.Battle) error {
	var record models.GormBattle
	if err := p.db.Where("battle_id = ?", b.ID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return err
	}

	record.State = string(b.State)
	record.Players = b.Players
	record.Log = b.Log
	return p.db.Save(&record).Error
}

// LoadBattle 读取战斗记录
func (p *GormPostgreSQL) LoadBattle(battleID string) (*models.Battle, error) {
	var record models.GormBattle
	if err := p.db.Where("battle_id = ?", battleID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &models.Battle{
		ID:        record.BattleID,
		Mode:      models.BattleMode(record.Mode),
		State:     models.BattleState(record.State),
		Players:   record.Players,
		Log:       record.Log,
		CreatedAt: record.CreatedAt,
	}, nil
}

// HeroConfigs 读取全部稀有度配置
func (p *GormPostgreSQL) HeroConfigs() (map[models.Rarity]models.HeroConfig, error) {
	var records []models.GormHeroConfig
	if err := p.db.Find(&records).Error; err != nil {
		return nil, err
	}

	configs := make(map[models.Rarity]models.HeroConfig, len(records))
	for _, record := range records {
		teamValue := make(map[int]float64, len(record.TeamValue))
		for level, value := range record.TeamValue {
			n, err := strconv.Atoi(level)
			if err != nil {
				continue
			}
			teamValue[n] = value
		}
		rarity := models.Rarity(record.Rarity)
		configs[rarity] = models.HeroConfig{
			Rarity:       rarity,
			TeamModifier: record.TeamModifier,
			TeamValue:    teamValue,
		}
	}
	return configs, nil
}

// RankConfig 读取单个段位配置
func (p *GormPostgreSQL) RankConfig(rank string) (*models.RankConfig, error) {
	var record models.GormRankConfig
	err := p.db.Where("rank = ? AND enabled = true", rank).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &models.RankConfig{Rank: record.Rank, Modifier: record.Modifier}, nil
}

// CreateMatchEarning 写入单场收益，事务内分配当天递增的 GameNumber
// (player_id, day, game_number) 上有唯一索引，并发冲突时重试
func (p *GormPostgreSQL) CreateMatchEarning(e *models.MatchEarning) error {
	day := models.Day(e.CreatedAt).Format(dayFormat)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		lastErr = p.db.Transaction(func(tx *gorm.DB) error {
			var max int
			err := tx.Model(&models.GormMatchEarning{}).
				Where("player_id = ? AND day = ?", e.PlayerID, day).
				Select("COALESCE(MAX(game_number), 0)").
				Scan(&max).Error
			if err != nil {
				return err
			}

			e.GameNumber = max + 1
			record := models.GormMatchEarning{
				PlayerID:         e.PlayerID,
				Day:              day,
				GameNumber:       e.GameNumber,
				WinCount:         e.WinCount,
				SkillFragment:    e.SkillFragment,
				EconomicFragment: e.EconomicFragment,
				Booster:          e.Booster,
				RankModifier:     e.RankModifier,
				TotalFragment:    e.TotalFragment,
			}
			return tx.Create(&record).Error
		})
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, gorm.ErrDuplicatedKey) {
			return lastErr
		}
		// 两个请求抢到了同一个序号，重新取号
	}
	return lastErr
}

// MatchEarnings 查询玩家某天的全部单场收益
func (p *GormPostgreSQL) MatchEarnings(playerID string, day time.Time) ([]models.MatchEarning, error) {
	var records []models.GormMatchEarning
	err := p.db.Where("player_id = ? AND day = ?", playerID, models.Day(day).Format(dayFormat)).
		Order("game_number").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	earnings := make([]models.MatchEarning, 0, len(records))
	for _, record := range records {
		earnings = append(earnings, models.MatchEarning{
			PlayerID:         record.PlayerID,
			GameNumber:       record.GameNumber,
			WinCount:         record.WinCount,
			SkillFragment:    record.SkillFragment,
			EconomicFragment: record.EconomicFragment,
			Booster:          record.Booster,
			RankModifier:     record.RankModifier,
			TotalFragment:    record.TotalFragment,
			CreatedAt:        record.CreatedAt,
		})
	}
	return earnings, nil
}

// LatestDailyEarning 取玩家最近一条日账本记录
func (p *GormPostgreSQL) LatestDailyEarning(playerID string) (*models.DailyEarning, error) {
	var record models.GormDailyEarning
	err := p.db.Where("player_id = ?", playerID).Order("created_at DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	day, _ := time.ParseInLocation(dayFormat, record.Day, time.Local)
	return &models.DailyEarning{
		PlayerID:          record.PlayerID,
		Day:               day,
		Rank:              record.Rank,
		WinStreak:         record.WinStreak,
		TotalFragment:     record.TotalFragment,
		TotalDailyEarning: record.TotalDailyEarning,
		HeroesUsed:        record.HeroesUsed,
		CreatedAt:         record.CreatedAt,
	}, nil
}

// UpsertDailyEarning 覆盖最新状态字段，累加两个总额字段
func (p *GormPostgreSQL) UpsertDailyEarning(e *models.DailyEarning) error {
	day := models.Day(e.Day).Format(dayFormat)

	var record models.GormDailyEarning
	result := p.db.Where("player_id = ? AND day = ?", e.PlayerID, day).First(&record)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		record = models.GormDailyEarning{
			PlayerID:          e.PlayerID,
			Day:               day,
			Rank:              e.Rank,
			WinStreak:         e.WinStreak,
			TotalFragment:     e.TotalFragment,
			TotalDailyEarning: e.TotalDailyEarning,
			HeroesUsed:        e.HeroesUsed,
		}
		err := p.db.Create(&record).Error
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		// 当天首写被并发结算抢先，改走累加分支
		if err := p.db.Where("player_id = ? AND day = ?", e.PlayerID, day).First(&record).Error; err != nil {
			return err
		}
	} else if result.Error != nil {
		return result.Error
	}

	heroesUsed, err := json.Marshal(e.HeroesUsed)
	if err != nil {
		return err
	}
	return p.db.Model(&record).Updates(map[string]interface{}{
		"rank":                e.Rank,
		"win_streak":          e.WinStreak,
		"heroes_used":         string(heroesUsed),
		"total_fragment":      gorm.Expr("total_fragment + ?", e.TotalFragment),
		"total_daily_earning": gorm.Expr("total_daily_earning + ?", e.TotalDailyEarning),
	}).Error
}

// GetPlayer 读取玩家聚合数据
func (p *GormPostgreSQL) GetPlayer(playerID string) (*models.Player, error) {
	var record models.GormPlayer
	err := p.db.Where("wallet_address = ?", playerID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &models.Player{
		WalletAddress: record.WalletAddress,
		Username:      record.Username,
		Rank:          record.Rank,
		TotalEarning:  record.TotalEarning,
		LastActive:    time.Unix(record.LastActive, 0),
	}, nil
}

// CreditPlayer 累加玩家总收益并刷新活跃时间（原子操作）
func (p *GormPostgreSQL) CreditPlayer(playerID string, amount float64, at time.Time) error {
	var record models.GormPlayer
	result := p.db.Where("wallet_address = ?", playerID).First(&record)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		record = models.GormPlayer{
			WalletAddress: playerID,
			Username:      playerID,
			TotalEarning:  amount,
			LastActive:    at.Unix(),
		}
		err := p.db.Create(&record).Error
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		// 玩家行被并发结算抢先创建，改走累加分支
		if err := p.db.Where("wallet_address = ?", playerID).First(&record).Error; err != nil {
			return err
		}
	} else if result.Error != nil {
		return result.Error
	}

	return p.db.Model(&record).Updates(map[string]interface{}{
		"total_earning": gorm.Expr("total_earning + ?", amount),
		"last_active":   at.Unix(),
	}).Error
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

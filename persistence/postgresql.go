// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/wfunc/battleserver/models"
)

// uniqueViolation PostgreSQL 唯一约束冲突错误码
const uniqueViolation = "23505"

// PostgreSQL 不经过 GORM 的原生 SQL 实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS battles (
            id SERIAL PRIMARY KEY,
            battle_id VARCHAR(255) UNIQUE NOT NULL,
            mode VARCHAR(20) NOT NULL,
            state VARCHAR(20) NOT NULL,
            players JSONB NOT NULL,
            log JSONB NOT NULL DEFAULT '[]',
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS match_earnings (
            id SERIAL PRIMARY KEY,
            player_id VARCHAR(255) NOT NULL,
            day DATE NOT NULL,
            game_number INT NOT NULL,
            win_count INT NOT NULL,
            skill_fragment DOUBLE PRECISION NOT NULL,
            economic_fragment DOUBLE PRECISION NOT NULL,
            booster DOUBLE PRECISION NOT NULL,
            rank_modifier DOUBLE PRECISION NOT NULL,
            total_fragment DOUBLE PRECISION NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (player_id, day, game_number)
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS daily_earnings (
            id SERIAL PRIMARY KEY,
            player_id VARCHAR(255) NOT NULL,
            day DATE NOT NULL,
            rank VARCHAR(50) NOT NULL,
            win_streak INT NOT NULL DEFAULT 0,
            total_fragment DOUBLE PRECISION NOT NULL DEFAULT 0,
            total_daily_earning DOUBLE PRECISION NOT NULL DEFAULT 0,
            heroes_used JSONB NOT NULL DEFAULT '[]',
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (player_id, day)
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS players (
            id SERIAL PRIMARY KEY,
            wallet_address VARCHAR(255) UNIQUE NOT NULL,
            username VARCHAR(255) NOT NULL,
            rank VARCHAR(50) NOT NULL DEFAULT '',
            total_earning DOUBLE PRECISION NOT NULL DEFAULT 0,
            last_active TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS hero_configs (
            id SERIAL PRIMARY KEY,
            rarity VARCHAR(50) UNIQUE NOT NULL,
            team_modifier DOUBLE PRECISION NOT NULL,
            team_value JSONB NOT NULL DEFAULT '{}'
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS rank_configs (
            id SERIAL PRIMARY KEY,
            rank VARCHAR(50) UNIQUE NOT NULL,
            modifier DOUBLE PRECISION NOT NULL,
            enabled BOOLEAN NOT NULL DEFAULT TRUE
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_match_earnings_player_day ON match_earnings(player_id, day);
        CREATE INDEX IF NOT EXISTS idx_daily_earnings_player ON daily_earnings(player_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_battles_battle_id ON battles(battle_id);
    `)

	return err
}

// SaveBattle 新建战斗记录
func (p *PostgreSQL) SaveBattle(b *models.Battle) error {
	players, err := json.Marshal(b.Players)
	if err != nil {
		return err
	}
	battleLog, err := json.Marshal(b.Log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = p.db.ExecContext(ctx, `
        INSERT INTO battles (battle_id, mode, state, players, log)
        VALUES ($1, $2, $3, $4, $5)
    `, b.ID, b.Mode, b.State, players, battleLog)
	return err
}

// UpdateBattle 更新战斗状态和日志
func (p *PostgreSQL) UpdateBattle(b *models.Battle) error {
	players, err := json.Marshal(b.Players)
	if err != nil {
		return err
	}
	battleLog, err := json.Marshal(b.Log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := p.db.ExecContext(ctx, `
        UPDATE battles
        SET state = $2, players = $3, log = $4, updated_at = CURRENT_TIMESTAMP
        WHERE battle_id = $1
    `, b.ID, b.State, players, battleLog)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// LoadBattle 读取战斗记录
func (p *PostgreSQL) LoadBattle(battleID string) (*models.Battle, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mode, state string
	var players, battleLog []byte
	var createdAt time.Time
	err := p.db.QueryRowContext(ctx, `
        SELECT mode, state, players, log, created_at FROM battles WHERE battle_id = $1
    `, battleID).Scan(&mode, &state, &players, &battleLog, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	b := &models.Battle{
		ID:        battleID,
		Mode:      models.BattleMode(mode),
		State:     models.BattleState(state),
		CreatedAt: createdAt,
	}
	if err := json.Unmarshal(players, &b.Players); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(battleLog, &b.Log); err != nil {
		return nil, err
	}
	return b, nil
}

// HeroConfigs 读取全部稀有度配置
func (p *PostgreSQL) HeroConfigs() (map[models.Rarity]models.HeroConfig, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `SELECT rarity, team_modifier, team_value FROM hero_configs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := make(map[models.Rarity]models.HeroConfig)
	for rows.Next() {
		var (
			rarity       string
			teamModifier float64
			teamValue    []byte
		)
		if err := rows.Scan(&rarity, &teamModifier, &teamValue); err != nil {
			return nil, err
		}
		values := make(map[int]float64)
		if err := json.Unmarshal(teamValue, &values); err != nil {
			return nil, err
		}
		configs[models.Rarity(rarity)] = models.HeroConfig{
			Rarity:       models.Rarity(rarity),
			TeamModifier: teamModifier,
			TeamValue:    values,
		}
	}
	return configs, rows.Err()
}

// RankConfig 读取单个段位配置
func (p *PostgreSQL) RankConfig(rank string) (*models.RankConfig, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var modifier float64
	err := p.db.QueryRowContext(ctx, `
        SELECT modifier FROM rank_configs WHERE rank = $1 AND enabled = TRUE
    `, rank).Scan(&modifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &models.RankConfig{Rank: rank, Modifier: modifier}, nil
}

// CreateMatchEarning 写入单场收益，同一天内的 GameNumber 在事务里取号
// 唯一约束 (player_id, day, game_number) 保证并发取号不会重号
func (p *PostgreSQL) CreateMatchEarning(e *models.MatchEarning) error {
	day := models.Day(e.CreatedAt)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		lastErr = p.createMatchEarningOnce(e, day)
		if lastErr == nil {
			return nil
		}
		var pqErr *pq.Error
		if !errors.As(lastErr, &pqErr) || pqErr.Code != uniqueViolation {
			return lastErr
		}
		// 并发请求抢到了同一个序号，重新取号
	}
	return lastErr
}

func (p *PostgreSQL) createMatchEarningOnce(e *models.MatchEarning, day time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var max int
	err = tx.QueryRowContext(ctx, `
        SELECT COALESCE(MAX(game_number), 0) FROM match_earnings
        WHERE player_id = $1 AND day = $2
    `, e.PlayerID, day).Scan(&max)
	if err != nil {
		return err
	}

	e.GameNumber = max + 1
	_, err = tx.ExecContext(ctx, `
        INSERT INTO match_earnings
            (player_id, day, game_number, win_count, skill_fragment,
             economic_fragment, booster, rank_modifier, total_fragment)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, e.PlayerID, day, e.GameNumber, e.WinCount, e.SkillFragment,
		e.EconomicFragment, e.Booster, e.RankModifier, e.TotalFragment)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// MatchEarnings 查询玩家某天的全部单场收益
func (p *PostgreSQL) MatchEarnings(playerID string, day time.Time) ([]models.MatchEarning, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT game_number, win_count, skill_fragment, economic_fragment,
               booster, rank_modifier, total_fragment, created_at
        FROM match_earnings
        WHERE player_id = $1 AND day = $2
        ORDER BY game_number
    `, playerID, models.Day(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var earnings []models.MatchEarning
	for rows.Next() {
		e := models.MatchEarning{PlayerID: playerID}
		if err := rows.Scan(&e.GameNumber, &e.WinCount, &e.SkillFragment,
			&e.EconomicFragment, &e.Booster, &e.RankModifier, &e.TotalFragment,
			&e.CreatedAt); err != nil {
			return nil, err
		}
		earnings = append(earnings, e)
	}
	return earnings, rows.Err()
}

// LatestDailyEarning 取玩家最近一条日账本记录
func (p *PostgreSQL) LatestDailyEarning(playerID string) (*models.DailyEarning, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e := models.DailyEarning{PlayerID: playerID}
	var heroesUsed []byte
	err := p.db.QueryRowContext(ctx, `
        SELECT day, rank, win_streak, total_fragment, total_daily_earning,
               heroes_used, created_at
        FROM daily_earnings
        WHERE player_id = $1
        ORDER BY created_at DESC
        LIMIT 1
    `, playerID).Scan(&e.Day, &e.Rank, &e.WinStreak, &e.TotalFragment,
		&e.TotalDailyEarning, &heroesUsed, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(heroesUsed, &e.HeroesUsed); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpsertDailyEarning 覆盖最新状态字段，累加两个总额字段
func (p *PostgreSQL) UpsertDailyEarning(e *models.DailyEarning) error {
	heroesUsed, err := json.Marshal(e.HeroesUsed)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = p.db.ExecContext(ctx, `
        INSERT INTO daily_earnings
            (player_id, day, rank, win_streak, total_fragment, total_daily_earning, heroes_used)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (player_id, day)
        DO UPDATE SET
            rank = EXCLUDED.rank,
            win_streak = EXCLUDED.win_streak,
            heroes_used = EXCLUDED.heroes_used,
            total_fragment = daily_earnings.total_fragment + EXCLUDED.total_fragment,
            total_daily_earning = daily_earnings.total_daily_earning + EXCLUDED.total_daily_earning,
            updated_at = CURRENT_TIMESTAMP
    `, e.PlayerID, models.Day(e.Day), e.Rank, e.WinStreak, e.TotalFragment,
		e.TotalDailyEarning, heroesUsed)
	return err
}

// GetPlayer 读取玩家聚合数据
func (p *PostgreSQL) GetPlayer(playerID string) (*models.Player, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	player := models.Player{WalletAddress: playerID}
	err := p.db.QueryRowContext(ctx, `
        SELECT username, rank, total_earning, last_active FROM players
        WHERE wallet_address = $1
    `, playerID).Scan(&player.Username, &player.Rank, &player.TotalEarning, &player.LastActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &player, nil
}

// CreditPlayer 累加玩家总收益并刷新活跃时间
func (p *PostgreSQL) CreditPlayer(playerID string, amount float64, at time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `
        INSERT INTO players (wallet_address, username, total_earning, last_active)
        VALUES ($1, $1, $2, $3)
        ON CONFLICT (wallet_address)
        DO UPDATE SET
            total_earning = players.total_earning + EXCLUDED.total_earning,
            last_active = EXCLUDED.last_active
    `, playerID, amount, at)
	return err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

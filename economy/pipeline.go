package economy

import (
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/battleserver/logger"
	"github.com/wfunc/battleserver/models"
	"github.com/wfunc/battleserver/persistence"
)

const (
	// defaultRank 玩家没有任何日账本记录时使用的段位
	defaultRank = "sentinel"
	// dailyMultiplier totalDailyEarning = totalFragment × 10
	dailyMultiplier = 10
)

// ErrBattleNotFinished 只有终态的战斗才能结算
var ErrBattleNotFinished = errors.New("battle is not finished")

// ErrTooFewPlayers 结算需要至少两个玩家
var ErrTooFewPlayers = errors.New("battle needs at least two players")

// Pipeline 把一场结束的战斗折算成碎片收益并写入账本
type Pipeline struct {
	store persistence.Store
	now   func() time.Time
}

func NewPipeline(store persistence.Store) *Pipeline {
	return &Pipeline{store: store, now: time.Now}
}

// Settlement 单个玩家的结算结果
type Settlement struct {
	PlayerID string
	Earning  *models.MatchEarning
	Err      error
}

// Settle 为每个参战玩家结算收益
//
// 每个玩家的计算和写入互相独立，单个玩家失败只记录日志不回滚其他
// 玩家已提交的更新。返回每个玩家的结算结果供调用方上报。
func (p *Pipeline) Settle(b *models.Battle) ([]Settlement, error) {
	if b.State != models.BattleFinished {
		return nil, ErrBattleNotFinished
	}
	if len(b.Players) < 2 {
		return nil, ErrTooFewPlayers
	}

	settlements := make([]Settlement, 0, len(b.Players))
	for i := range b.Players {
		player := &b.Players[i]
		earning, err := p.settlePlayer(player)
		if err != nil {
			logger.Log.Errorw("failed to settle player earnings",
				"battle", b.ID, "player", player.User, "error", err)
		}
		settlements = append(settlements, Settlement{
			PlayerID: player.User,
			Earning:  earning,
			Err:      err,
		})
	}
	return settlements, nil
}

func (p *Pipeline) settlePlayer(player *models.BattlePlayer) (*models.MatchEarning, error) {
	heroes, err := p.store.HeroConfigs()
	if err != nil {
		return nil, fmt.Errorf("load hero configs: %w", err)
	}
	economicFragment := EconomicFragment(player.Team, heroes)

	previousRank := defaultRank
	previousWinStreak := 0
	latest, err := p.store.LatestDailyEarning(player.User)
	if err != nil && !errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, fmt.Errorf("load latest daily earning: %w", err)
	}
	if latest != nil {
		previousRank = latest.Rank
		previousWinStreak = latest.WinStreak
	}

	// 未配置的段位按 0 计，玩家在段位配置好之前拿不到奖励
	rankModifier := 0.0
	if cfg, err := p.store.RankConfig(previousRank); err == nil {
		rankModifier = cfg.Modifier
	} else if !errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, fmt.Errorf("load rank config: %w", err)
	}

	winStreak := 0
	winCount := 0
	if player.IsWinner {
		winStreak = previousWinStreak + 1
		winCount = 1
	}

	skillFragment := SkillFragment(winStreak)
	booster := Booster(winStreak)
	totalFragment := economicFragment * skillFragment * booster * rankModifier

	now := p.now()
	earning := &models.MatchEarning{
		PlayerID:         player.User,
		WinCount:         winCount,
		SkillFragment:    skillFragment,
		EconomicFragment: economicFragment,
		Booster:          booster,
		RankModifier:     rankModifier,
		TotalFragment:    totalFragment,
		CreatedAt:        now,
	}
	if err := p.store.CreateMatchEarning(earning); err != nil {
		return nil, fmt.Errorf("create match earning: %w", err)
	}

	if err := p.store.CreditPlayer(player.User, totalFragment, now); err != nil {
		return earning, fmt.Errorf("credit player: %w", err)
	}

	heroesUsed := make([]string, 0, len(player.Team))
	for _, member := range player.Team {
		heroesUsed = append(heroesUsed, member.Name)
	}
	daily := &models.DailyEarning{
		PlayerID:          player.User,
		Day:               models.Day(now),
		Rank:              previousRank,
		WinStreak:         winStreak,
		TotalFragment:     totalFragment,
		TotalDailyEarning: totalFragment * dailyMultiplier,
		HeroesUsed:        heroesUsed,
		CreatedAt:         now,
	}
	if err := p.store.UpsertDailyEarning(daily); err != nil {
		return earning, fmt.Errorf("upsert daily earning: %w", err)
	}

	return earning, nil
}

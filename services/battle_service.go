// services/battle_service.go
package services

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/battleserver/battle"
	"github.com/wfunc/battleserver/economy"
	"github.com/wfunc/battleserver/models"
	"github.com/wfunc/battleserver/monitor"
	"github.com/wfunc/battleserver/persistence"
)

// BattleService 串起战斗的创建、模拟和结算
type BattleService struct {
	store    persistence.Store
	pipeline *economy.Pipeline
	monitor  *monitor.Monitor
	newRand  func() battle.Rand
}

func NewBattleService(store persistence.Store, mon *monitor.Monitor) *BattleService {
	return &BattleService{
		store:    store,
		pipeline: economy.NewPipeline(store),
		monitor:  mon,
		newRand:  battle.NewRand,
	}
}

// CreateBattle 校验请求并落库一条 pending 状态的战斗
// 校验失败时不产生任何状态
func (s *BattleService) CreateBattle(mode models.BattleMode, players []models.BattlePlayer) (*models.Battle, error) {
	// 战斗严格双方对抗，多余的阵容会被模拟忽略，直接拒绝
	if len(players) != 2 {
		return nil, fmt.Errorf("battle needs exactly 2 players, got %d", len(players))
	}
	for _, p := range players {
		if len(p.Team) == 0 {
			return nil, fmt.Errorf("player %s has no team", p.User)
		}
	}

	b := &models.Battle{
		ID:        uuid.New().String(),
		Mode:      mode,
		State:     models.BattlePending,
		Players:   players,
		Log:       []models.BattleLogEntry{},
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveBattle(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Run 执行战斗模拟，写入日志并把战斗推进到终态
func (s *BattleService) Run(b *models.Battle) (*battle.Result, error) {
	b.State = models.BattleActive
	if err := s.store.UpdateBattle(b); err != nil {
		return nil, err
	}

	result, err := battle.Simulate(b.Players[0].Team, b.Players[1].Team, s.newRand())
	if err != nil {
		return nil, err
	}

	winnerIdx := 0
	if result.Winner == "teamB" {
		winnerIdx = 1
	}
	for i := range b.Players {
		b.Players[i].IsWinner = i == winnerIdx
	}
	b.Log = result.Log
	b.State = models.BattleFinished
	if err := s.store.UpdateBattle(b); err != nil {
		return nil, err
	}

	if s.monitor != nil {
		s.monitor.IncBattlesSimulated()
		s.monitor.ObserveBattleActions(len(result.Log))
	}
	return result, nil
}

// Settle 对一场终态战斗执行收益结算
func (s *BattleService) Settle(b *models.Battle) ([]economy.Settlement, error) {
	settlements, err := s.pipeline.Settle(b)
	if err != nil {
		return nil, err
	}

	if s.monitor != nil {
		for _, settlement := range settlements {
			if settlement.Err != nil {
				s.monitor.IncSettlementFailures()
				continue
			}
			s.monitor.AddFragmentsAwarded(settlement.Earning.TotalFragment)
		}
	}
	return settlements, nil
}

// Resolve 离线解算一场战斗，不落库，给管理接口做演算用
func (s *BattleService) Resolve(teamA, teamB []*models.Combatant, seed int64) (*battle.Result, error) {
	return battle.Simulate(teamA, teamB, rand.New(rand.NewSource(seed)))
}

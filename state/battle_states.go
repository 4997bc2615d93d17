package state

import (
	"encoding/json"
	"fmt"

	"github.com/wfunc/battleserver/logger"
	"github.com/wfunc/battleserver/models"
	"github.com/wfunc/battleserver/network"
)

// SubmitTeamAction 玩家提交阵容的动作载荷
type SubmitTeamAction struct {
	Type string              `json:"type"`
	Team []*models.Combatant `json:"team"`
}

// NewWaitingState creates the state a match starts in.
func NewWaitingState(match MatchContext, resolver Resolver, timeoutTicks int) *WaitingState {
	return &WaitingState{
		MatchStateBase: MatchStateBase{
			ID:    "waiting",
			Match: match,
		},
		resolver: resolver,
		timer:    timeoutTicks,
	}
}

// WaitingState 等待双方加入并提交阵容
type WaitingState struct {
	MatchStateBase
	resolver Resolver
	timer    int
}

func (s *WaitingState) OnEnter() {
	logger.Log.Infof("比赛 %s 等待玩家加入", s.Match.GetID())
}

// HandleAction 处理阵容提交，阵容保存在比赛上下文里
func (s *WaitingState) HandleAction(player Player, actionData []byte) error {
	var action SubmitTeamAction
	if err := json.Unmarshal(actionData, &action); err != nil {
		return fmt.Errorf("failed to unmarshal action data: %w", err)
	}
	if action.Type != "submit_team" {
		return nil
	}
	if len(action.Team) == 0 {
		return fmt.Errorf("player %s submitted an empty team", player.GetWallet())
	}
	// 阵容由 match 保存，这里只做形状校验
	return nil
}

func (s *WaitingState) OnUpdate() {
	ready := s.Match.BattlePlayers()
	if len(ready) >= s.Match.GetMaxPlayers() {
		s.Match.ChangeState(NewFightingState(s.Match, s.resolver))
		return
	}

	s.timer--
	if s.timer <= 0 {
		logger.Log.Infof("比赛 %s 等待超时，关闭", s.Match.GetID())
		s.Match.Finish()
	}
}

// NewFightingState creates the state that runs the simulation.
func NewFightingState(match MatchContext, resolver Resolver) *FightingState {
	return &FightingState{
		MatchStateBase: MatchStateBase{
			ID:    "fighting",
			Match: match,
		},
		resolver: resolver,
	}
}

// FightingState 执行战斗模拟并向所有连接推送战斗日志
type FightingState struct {
	MatchStateBase
	resolver Resolver
	battle   *models.Battle
	done     bool
	failed   bool
}

func (s *FightingState) OnEnter() {
	players := s.Match.BattlePlayers()

	b, err := s.resolver.CreateBattle(s.Match.GetMode(), players)
	if err != nil {
		logger.Log.Errorw("failed to create battle", "match", s.Match.GetID(), "error", err)
		s.failed = true
		return
	}
	s.battle = b

	start, _ := json.Marshal(map[string]string{"battle_id": b.ID})
	s.Match.Broadcast(network.MsgTypeBattleStart, start)

	result, err := s.resolver.Run(b)
	if err != nil {
		// 蓝图配置错误只终止这一场战斗
		logger.Log.Errorw("battle simulation failed", "battle", b.ID, "error", err)
		s.failed = true
		return
	}

	for _, entry := range result.Log {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		s.Match.Broadcast(network.MsgTypeBattleLog, data)
	}

	winner := ""
	for _, p := range b.Players {
		if p.IsWinner {
			winner = p.User
		}
	}
	end, _ := json.Marshal(map[string]interface{}{
		"winner":  winner,
		"actions": len(result.Log),
	})
	s.Match.Broadcast(network.MsgTypeBattleEnd, end)

	s.done = true
}

func (s *FightingState) OnUpdate() {
	if s.failed {
		s.Match.Finish()
		return
	}
	if s.done {
		s.Match.ChangeState(NewSettlementState(s.Match, s.resolver, s.battle))
	}
}

// NewSettlementState creates the state that pays out fragments.
func NewSettlementState(match MatchContext, resolver Resolver, b *models.Battle) *SettlementState {
	return &SettlementState{
		MatchStateBase: MatchStateBase{
			ID:    "settlement",
			Match: match,
		},
		resolver: resolver,
		battle:   b,
	}
}

// SettlementState 触发收益结算并推送每个玩家的收益
type SettlementState struct {
	MatchStateBase
	resolver Resolver
	battle   *models.Battle
}

func (s *SettlementState) OnEnter() {
	settlements, err := s.resolver.Settle(s.battle)
	if err != nil {
		logger.Log.Errorw("battle settlement rejected", "battle", s.battle.ID, "error", err)
		return
	}

	for _, settlement := range settlements {
		payload := map[string]interface{}{"player": settlement.PlayerID}
		if settlement.Err != nil {
			payload["error"] = "settlement failed"
		} else {
			payload["earning"] = settlement.Earning
		}
		data, err := json.Marshal(payload)
		if err != nil {
			continue
		}
		s.Match.Broadcast(network.MsgTypeEarning, data)
	}
}

func (s *SettlementState) OnUpdate() {
	s.Match.Finish()
}

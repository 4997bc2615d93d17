// match/match.go
package match

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/battleserver/models"
	"github.com/wfunc/battleserver/session"
	"github.com/wfunc/battleserver/state"
	"github.com/wfunc/battleserver/timer"
)

// MatchStatus 表示比赛的业务状态
type MatchStatus int

const (
	StatusWaiting MatchStatus = iota
	StatusFighting
	StatusSettlement
	StatusClosed
)

// tickInterval 状态机心跳间隔
const tickInterval = 100 * time.Millisecond

// Match 是一场对局的核心结构，双方加入并提交阵容后由状态机推进战斗
type Match struct {
	ID           string
	Name         string
	Mode         models.BattleMode
	MaxPlayers   int
	Status       MatchStatus
	Players      map[string]*session.Session // sessionID -> session
	StateMachine state.StateMachine
	CreatedAt    time.Time

	broadcaster Broadcaster
	onFinish    func(matchID string)

	statusMutex sync.RWMutex
	playerMutex sync.RWMutex
	rosterMutex sync.RWMutex
	rosters     map[string][]*models.Combatant // sessionID -> 阵容
	joinOrder   []string

	ticker    *time.Ticker
	closeChan chan bool
	closeOnce sync.Once
}

// NewMatch 创建一场新对局并启动心跳
func NewMatch(id, name string, mode models.BattleMode, maxPlayers int,
	broadcaster Broadcaster, resolver state.Resolver, waitTimeout time.Duration,
	onFinish func(matchID string)) *Match {
	m := &Match{
		ID:          id,
		Name:        name,
		Mode:        mode,
		MaxPlayers:  maxPlayers,
		Status:      StatusWaiting,
		Players:     make(map[string]*session.Session),
		CreatedAt:   time.Now(),
		broadcaster: broadcaster,
		onFinish:    onFinish,
		rosters:     make(map[string][]*models.Combatant),
		closeChan:   make(chan bool),
	}

	// 初始化状态机，对局自身作为上下文传入
	waitTicks := int(waitTimeout / tickInterval)
	initialState := state.NewWaitingState(m, resolver, waitTicks)
	m.StateMachine = state.NewBaseStateMachine(initialState)

	m.ticker = time.NewTicker(tickInterval)
	go m.loop()

	return m
}

// --- 实现 state.MatchContext 接口 ---

func (m *Match) GetID() string {
	return m.ID
}

func (m *Match) GetMode() models.BattleMode {
	return m.Mode
}

func (m *Match) GetMaxPlayers() int {
	return m.MaxPlayers
}

// GetPlayers 获取对局中的所有玩家，返回的map值为 state.Player 接口
func (m *Match) GetPlayers() map[string]state.Player {
	m.playerMutex.RLock()
	defer m.playerMutex.RUnlock()

	// 返回副本以避免并发修改
	players := make(map[string]state.Player)
	for k, v := range m.Players {
		players[k] = v // session.Session 实现了 state.Player 接口
	}
	return players
}

// BattlePlayers 按加入顺序返回已提交阵容的参战玩家
func (m *Match) BattlePlayers() []models.BattlePlayer {
	m.rosterMutex.RLock()
	defer m.rosterMutex.RUnlock()
	m.playerMutex.RLock()
	defer m.playerMutex.RUnlock()

	players := make([]models.BattlePlayer, 0, len(m.joinOrder))
	for _, sessionID := range m.joinOrder {
		team, ok := m.rosters[sessionID]
		if !ok {
			continue
		}
		sess, ok := m.Players[sessionID]
		if !ok {
			continue
		}
		players = append(players, models.BattlePlayer{
			User: sess.GetWallet(),
			Team: team,
		})
	}
	return players
}

// ChangeState 推进状态机并同步业务状态
func (m *Match) ChangeState(newState state.State) error {
	if err := m.StateMachine.ChangeState(newState); err != nil {
		return err
	}
	switch newState.GetID() {
	case "fighting":
		m.SetStatus(StatusFighting)
	case "settlement":
		m.SetStatus(StatusSettlement)
	}
	return nil
}

// Broadcast sends a frame to every session in the match.
func (m *Match) Broadcast(msgID uint16, data []byte) error {
	return m.broadcaster.BroadcastToMatch(m.ID, msgID, data)
}

// Finish 结束对局，通知管理器清理
func (m *Match) Finish() {
	m.closeOnce.Do(func() {
		m.SetStatus(StatusClosed)
		close(m.closeChan)
		if m.onFinish != nil {
			m.onFinish(m.ID)
		}
	})
}

// --- 对局核心逻辑 ---

// AddPlayer 添加一个玩家到对局
// 锁顺序固定为 rosterMutex → playerMutex，和 BattlePlayers 保持一致
func (m *Match) AddPlayer(s *session.Session) bool {
	m.rosterMutex.Lock()
	defer m.rosterMutex.Unlock()
	m.playerMutex.Lock()
	defer m.playerMutex.Unlock()

	if len(m.Players) >= m.MaxPlayers {
		return false
	}

	m.Players[s.ID] = s
	s.MatchID = m.ID
	m.joinOrder = append(m.joinOrder, s.ID)
	return true
}

// RemovePlayer 从对局移除一个玩家，阵容一并丢弃
func (m *Match) RemovePlayer(sessionID string) {
	m.rosterMutex.Lock()
	defer m.rosterMutex.Unlock()
	m.playerMutex.Lock()
	defer m.playerMutex.Unlock()

	if player, exists := m.Players[sessionID]; exists {
		player.MatchID = ""
		delete(m.Players, sessionID)
	}

	delete(m.rosters, sessionID)
	for i, id := range m.joinOrder {
		if id == sessionID {
			m.joinOrder = append(m.joinOrder[:i], m.joinOrder[i+1:]...)
			break
		}
	}
}

// GetPlayer 获取单个玩家
func (m *Match) GetPlayer(sessionID string) (*session.Session, bool) {
	m.playerMutex.RLock()
	defer m.playerMutex.RUnlock()

	player, exists := m.Players[sessionID]
	return player, exists
}

// GetSessions returns a slice of all sessions in the match (thread-safe).
func (m *Match) GetSessions() []*session.Session {
	m.playerMutex.RLock()
	defer m.playerMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(m.Players))
	for _, s := range m.Players {
		sessions = append(sessions, s)
	}
	return sessions
}

// SubmitTeam 玩家提交参战阵容，战斗开始后不再接受
func (m *Match) SubmitTeam(sessionID string, payload []byte) error {
	if m.GetStatus() != StatusWaiting {
		return fmt.Errorf("match %s is no longer accepting teams", m.ID)
	}
	if _, ok := m.GetPlayer(sessionID); !ok {
		return fmt.Errorf("session %s is not in match %s", sessionID, m.ID)
	}

	var action state.SubmitTeamAction
	if err := json.Unmarshal(payload, &action); err != nil {
		return fmt.Errorf("invalid team payload: %w", err)
	}
	if len(action.Team) == 0 {
		return fmt.Errorf("empty team submitted to match %s", m.ID)
	}
	for _, member := range action.Team {
		if member.BasicAttack == nil {
			return fmt.Errorf("combatant %s has no basic attack", member.Name)
		}
		member.MaxHP = member.HP
	}

	m.rosterMutex.Lock()
	m.rosters[sessionID] = action.Team
	m.rosterMutex.Unlock()
	return nil
}

// SetStatus 设置对局的业务状态
func (m *Match) SetStatus(status MatchStatus) {
	m.statusMutex.Lock()
	defer m.statusMutex.Unlock()
	m.Status = status
}

// GetStatus 获取对局的业务状态
func (m *Match) GetStatus() MatchStatus {
	m.statusMutex.RLock()
	defer m.statusMutex.RUnlock()
	return m.Status
}

// loop 是对局的主循环，定时驱动状态更新
func (m *Match) loop() {
	for {
		select {
		case <-m.ticker.C:
			m.Update()
		case <-m.closeChan:
			m.ticker.Stop()
			return
		}
	}
}

// Update 由主循环调用，驱动状态机更新
func (m *Match) Update() {
	if m.StateMachine != nil {
		currentState := m.StateMachine.GetCurrentState()
		if currentState != nil {
			currentState.OnUpdate()
		}
	}
}

// Close 关闭对局，停止主循环
func (m *Match) Close() {
	m.closeOnce.Do(func() {
		m.SetStatus(StatusClosed)
		close(m.closeChan)
	})
}

// --- 对局管理器 ---

// Manager 管理所有进行中的对局
type Manager struct {
	matches map[string]*Match
	mutex   sync.RWMutex
	timers  *timer.TimerManager
}

// NewManager 创建对局管理器
func NewManager() *Manager {
	return &Manager{
		matches: make(map[string]*Match),
		timers:  timer.NewTimerManager(),
	}
}

// CreateMatch 创建一场对局并注册兜底清理定时器
func (m *Manager) CreateMatch(id, name string, mode models.BattleMode, maxPlayers int,
	broadcaster Broadcaster, resolver state.Resolver, waitTimeout time.Duration) *Match {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	created := NewMatch(id, name, mode, maxPlayers, broadcaster, resolver, waitTimeout,
		func(matchID string) {
			go m.RemoveMatch(matchID)
		})
	m.matches[id] = created

	// 等待超时之后对局一定已经结束，残留说明状态机卡死，强制清理
	m.timers.AddTimer(waitTimeout*10, 0, func() {
		m.RemoveMatch(id)
	})
	return created
}

// RemoveMatch 从管理器移除并关闭一场对局
func (m *Manager) RemoveMatch(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if found, exists := m.matches[id]; exists {
		found.Close()
		delete(m.matches, id)
	}
}

// GetMatch 获取一场对局
func (m *Manager) GetMatch(id string) (*Match, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	found, exists := m.matches[id]
	return found, exists
}

// Count 当前对局数量
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.matches)
}

// FindAvailableMatch 查找一场可加入的对局
func (m *Manager) FindAvailableMatch(mode models.BattleMode) *Match {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, found := range m.matches {
		if found.Mode == mode && len(found.Players) < found.MaxPlayers && found.GetStatus() == StatusWaiting {
			return found
		}
	}
	return nil
}

// state/interfaces.go
package state

import (
	"github.com/wfunc/battleserver/battle"
	"github.com/wfunc/battleserver/economy"
	"github.com/wfunc/battleserver/models"
)

// Player defines the minimal interface for a connected player that a state needs.
type Player interface {
	GetID() string
	GetWallet() string
}

// MatchContext defines the interface a Match must implement to be driven by the
// state machine. This breaks the import cycle between match and state.
type MatchContext interface {
	GetID() string
	GetMode() models.BattleMode
	GetPlayers() map[string]Player
	GetMaxPlayers() int
	// BattlePlayers 按加入顺序返回已提交阵容的玩家
	BattlePlayers() []models.BattlePlayer
	ChangeState(newState State) error
	Broadcast(msgID uint16, data []byte) error
	// Finish 结算完成后由状态机通知比赛关闭
	Finish()
}

// Resolver 状态机驱动战斗用到的服务入口，services.BattleService 实现它
type Resolver interface {
	CreateBattle(mode models.BattleMode, players []models.BattlePlayer) (*models.Battle, error)
	Run(b *models.Battle) (*battle.Result, error)
	Settle(b *models.Battle) ([]economy.Settlement, error)
}

package broadcast

import (
	"errors"

	"github.com/wfunc/battleserver/match"
	"github.com/wfunc/battleserver/session"
)

var ErrMatchNotFound = errors.New("match not found")

// Broadcaster 广播接口
type Broadcaster interface {
	BroadcastToMatch(matchID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
	BroadcastToWallets(wallets []string, msgID uint16, data []byte) error
}

// MatchBroadcaster 基于对局的广播器
type MatchBroadcaster struct {
	matchManager   *match.Manager
	sessionManager *session.Manager
}

func NewMatchBroadcaster(matchManager *match.Manager, sessionManager *session.Manager) *MatchBroadcaster {
	return &MatchBroadcaster{
		matchManager:   matchManager,
		sessionManager: sessionManager,
	}
}

// BroadcastToMatch 向对局内的所有玩家推送消息
func (b *MatchBroadcaster) BroadcastToMatch(matchID string, msgID uint16, data []byte) error {
	found, exists := b.matchManager.GetMatch(matchID)
	if !exists {
		return ErrMatchNotFound
	}

	for _, s := range found.GetSessions() {
		if err := s.Send(msgID, data); err != nil {
			// 发送失败不打断其他玩家
			continue
		}
	}

	return nil
}

// BroadcastToAll 向所有在线会话推送消息
func (b *MatchBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.All() {
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}
	return nil
}

// BroadcastToWallets 按钱包地址推送消息，一个钱包可能有多个会话
func (b *MatchBroadcaster) BroadcastToWallets(wallets []string, msgID uint16, data []byte) error {
	for _, wallet := range wallets {
		for _, s := range b.sessionManager.GetByWallet(wallet) {
			if err := s.Send(msgID, data); err != nil {
				continue
			}
		}
	}
	return nil
}

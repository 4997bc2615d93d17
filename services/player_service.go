// services/player_service.go
package services

import (
	"time"

	"github.com/wfunc/battleserver/persistence"
)

type PlayerService struct {
	store persistence.Store
}

func NewPlayerService(store persistence.Store) *PlayerService {
	return &PlayerService{store: store}
}

// GetPlayerWithEarnings 获取玩家聚合数据和当天的单场收益列表
func (s *PlayerService) GetPlayerWithEarnings(playerID string, day time.Time) (map[string]interface{}, error) {
	player, err := s.store.GetPlayer(playerID)
	if err != nil {
		return nil, err
	}

	earnings, err := s.store.MatchEarnings(playerID, day)
	if err != nil {
		return nil, err
	}

	daily, err := s.store.LatestDailyEarning(playerID)
	if err != nil && err != persistence.ErrRecordNotFound {
		return nil, err
	}

	result := map[string]interface{}{
		"player":         player,
		"match_earnings": earnings,
	}
	if daily != nil {
		result["daily_earning"] = daily
	}
	return result, nil
}

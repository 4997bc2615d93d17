package network

const (
	MsgTypeHeartbeat   = 1
	MsgTypeJoinMatch   = 101
	MsgTypeLeaveMatch  = 102
	MsgTypeCreateMatch = 103
	MsgTypeSubmitTeam  = 201
	MsgTypeMatchState  = 301
	MsgTypeBattleStart = 303
	MsgTypeBattleLog   = 304
	MsgTypeBattleEnd   = 305
	MsgTypeEarning     = 306
)

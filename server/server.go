package server

import (
	"encoding/json"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/battleserver/broadcast"
	"github.com/wfunc/battleserver/config"
	"github.com/wfunc/battleserver/logger"
	"github.com/wfunc/battleserver/match"
	"github.com/wfunc/battleserver/models"
	"github.com/wfunc/battleserver/monitor"
	"github.com/wfunc/battleserver/network"
	"github.com/wfunc/battleserver/persistence"
	battleserver_rpc "github.com/wfunc/battleserver/rpc"
	"github.com/wfunc/battleserver/services"
	"github.com/wfunc/battleserver/session"
)

type BattleServer struct {
	addr           string
	waitTimeout    time.Duration
	upgrader       websocket.Upgrader
	matchManager   *match.Manager
	sessionManager *session.Manager
	battleService  *services.BattleService
	playerService  *services.PlayerService
	broadcaster    broadcast.Broadcaster
	monitor        *monitor.Monitor
	rpcServer      *battleserver_rpc.Server
	shutdownChan   chan struct{}
}

func NewBattleServer(cfg *config.Config, store persistence.Store, mon *monitor.Monitor) *BattleServer {
	s := &BattleServer{
		addr:           cfg.Server.HTTPAddress,
		waitTimeout:    time.Duration(cfg.Battle.MatchTimeoutSeconds) * time.Second,
		matchManager:   match.NewManager(),
		sessionManager: session.NewManager(),
		battleService:  services.NewBattleService(store, mon),
		playerService:  services.NewPlayerService(store),
		monitor:        mon,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewMatchBroadcaster(s.matchManager, s.sessionManager)

	// 初始化RPC服务器
	rpcServer, err := battleserver_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	// 注册RPC服务
	adminService := battleserver_rpc.NewAdminService(s.playerService, s.battleService)
	rpc.Register(adminService)

	return s
}

func (s *BattleServer) Start() error {
	go s.rpcServer.Start()
	go s.syncGauges()

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Battle server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

// syncGauges 定期把对局数量同步到监控，覆盖状态机内部回收的情况
func (s *BattleServer) syncGauges() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.monitor.SetActiveMatches(s.matchManager.Count())
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *BattleServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
}

func (s *BattleServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *BattleServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	// 钱包地址来自连接参数，生产环境应在此做签名校验
	s.sessionManager.Add(sess)

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.leaveCurrentMatch(sess)
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *BattleServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.LastActive = time.Now()
	case network.MsgTypeCreateMatch:
		s.handleCreateMatch(sess, packet)
	case network.MsgTypeJoinMatch:
		s.handleJoinMatch(sess, packet)
	case network.MsgTypeLeaveMatch:
		s.handleLeaveMatch(sess, packet)
	case network.MsgTypeSubmitTeam:
		s.handleSubmitTeam(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

type createMatchRequest struct {
	Wallet string `json:"wallet"`
	Mode   string `json:"mode"`
}

func (s *BattleServer) handleCreateMatch(sess *session.Session, packet *network.Packet) {
	var req createMatchRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		logger.Log.Warnf("Session %s sent invalid create_match payload: %v", sess.GetID(), err)
		return
	}
	if req.Wallet == "" {
		logger.Log.Warnf("Session %s tried to create a match without a wallet", sess.GetID())
		return
	}
	sess.Wallet = req.Wallet

	mode := models.BattleMode(req.Mode)
	switch mode {
	case models.ModePVP, models.ModePVE, models.ModeRaid:
	default:
		mode = models.ModePVP
	}

	matchID := uuid.New().String()
	created := s.matchManager.CreateMatch(matchID, "Match "+matchID[:8], mode, 2,
		s.broadcaster, s.battleService, s.waitTimeout)
	created.AddPlayer(sess)
	s.monitor.SetActiveMatches(s.matchManager.Count())

	logger.Log.Infof("Session %s created match %s", sess.GetID(), matchID)

	resp := map[string]string{"match_id": matchID}
	data, _ := json.Marshal(resp)
	sess.Send(network.MsgTypeCreateMatch, data)
}

type joinMatchRequest struct {
	Wallet  string `json:"wallet"`
	MatchID string `json:"match_id"`
}

func (s *BattleServer) handleJoinMatch(sess *session.Session, packet *network.Packet) {
	var req joinMatchRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		logger.Log.Warnf("Session %s sent invalid join_match payload: %v", sess.GetID(), err)
		return
	}
	if req.Wallet != "" {
		sess.Wallet = req.Wallet
	}
	if sess.GetWallet() == "" {
		logger.Log.Warnf("Session %s tried to join a match without a wallet", sess.GetID())
		return
	}

	found, exists := s.matchManager.GetMatch(req.MatchID)
	if !exists {
		// 未指定或找不到时尝试随机匹配一场等待中的对局
		found = s.matchManager.FindAvailableMatch(models.ModePVP)
		if found == nil {
			logger.Log.Infof("Session %s found no open match", sess.GetID())
			return
		}
	}

	if found.AddPlayer(sess) {
		logger.Log.Infof("Session %s joined match %s", sess.GetID(), found.ID)
		resp := map[string]string{"match_id": found.ID}
		data, _ := json.Marshal(resp)
		sess.Send(network.MsgTypeJoinMatch, data)
	} else {
		logger.Log.Infof("Session %s could not join match %s (full or started)", sess.GetID(), found.ID)
	}
}

func (s *BattleServer) handleLeaveMatch(sess *session.Session, packet *network.Packet) {
	s.leaveCurrentMatch(sess)
}

func (s *BattleServer) handleSubmitTeam(sess *session.Session, packet *network.Packet) {
	if sess.MatchID == "" {
		logger.Log.Warnf("Session %s submitted a team but is not in a match", sess.GetID())
		return
	}

	found, exists := s.matchManager.GetMatch(sess.MatchID)
	if !exists {
		logger.Log.Errorf("Match %s not found for session %s", sess.MatchID, sess.GetID())
		return
	}

	if err := found.SubmitTeam(sess.GetID(), packet.Data); err != nil {
		logger.Log.Errorf("Error handling team submission in match %s: %v", found.GetID(), err)
	}
}

// leaveCurrentMatch 把会话从所在对局移除，等待中的空对局顺带清理
func (s *BattleServer) leaveCurrentMatch(sess *session.Session) {
	if sess.MatchID == "" {
		return
	}

	found, exists := s.matchManager.GetMatch(sess.MatchID)
	sess.MatchID = ""
	if !exists {
		return
	}

	found.RemovePlayer(sess.GetID())
	if found.GetStatus() == match.StatusWaiting && len(found.GetSessions()) == 0 {
		s.matchManager.RemoveMatch(found.ID)
	}
	s.monitor.SetActiveMatches(s.matchManager.Count())
}

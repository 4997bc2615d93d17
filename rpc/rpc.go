package rpc

import (
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/battleserver/logger"
	"github.com/wfunc/battleserver/models"
	"github.com/wfunc/battleserver/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the caller
// via rpc.Register before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operational queries and an offline battle resolver
// over net/rpc. Methods follow the net/rpc signature rules: exported method,
// exported arguments, second argument is a pointer, return type is error.
type AdminService struct {
	playerService *services.PlayerService
	battleService *services.BattleService
}

func NewAdminService(ps *services.PlayerService, bs *services.BattleService) *AdminService {
	return &AdminService{
		playerService: ps,
		battleService: bs,
	}
}

type GetPlayerArgs struct {
	PlayerID string
	Day      time.Time
}

type GetPlayerReply struct {
	Data map[string]interface{}
}

// GetPlayerWithEarnings returns a player's profile together with the match
// earnings recorded for the given day.
func (a *AdminService) GetPlayerWithEarnings(args *GetPlayerArgs, reply *GetPlayerReply) error {
	data, err := a.playerService.GetPlayerWithEarnings(args.PlayerID, args.Day)
	if err != nil {
		return err
	}
	reply.Data = data
	return nil
}

type ResolveArgs struct {
	TeamA []*models.Combatant
	TeamB []*models.Combatant
	Seed  int64
}

type ResolveReply struct {
	Winner string
	Log    []models.BattleLogEntry
}

// ResolveBattle runs a dry-run simulation without persisting anything.
// 用于调试和平衡性验证，相同Seed结果可复现
func (a *AdminService) ResolveBattle(args *ResolveArgs, reply *ResolveReply) error {
	result, err := a.battleService.Resolve(args.TeamA, args.TeamB, args.Seed)
	if err != nil {
		return err
	}
	reply.Winner = result.Winner
	reply.Log = result.Log
	return nil
}

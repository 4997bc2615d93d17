package main

import (
	"github.com/wfunc/battleserver/config"
	"github.com/wfunc/battleserver/logger"
	"github.com/wfunc/battleserver/monitor"
	"github.com/wfunc/battleserver/persistence"
	"github.com/wfunc/battleserver/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	store, err := persistence.NewGormPostgreSQL(
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.DBName,
	)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Log.Info("Database connection successful.")

	// Initialize monitoring
	mon := monitor.NewMonitor("battleserver")
	mon.StartServer(cfg.Server.MetricsAddress)

	// Initialize Battle Server
	battleServer := server.NewBattleServer(cfg, store, mon)

	// Start Server
	logger.Log.Infof("Starting battle server on %s", cfg.Server.HTTPAddress)
	if err := battleServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

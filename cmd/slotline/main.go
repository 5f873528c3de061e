package main

import (
	"log"
	"os"

	"github.com/drennalls/slotline/internal/alloc"
	"github.com/drennalls/slotline/internal/api"
	"github.com/drennalls/slotline/internal/config"
	"github.com/drennalls/slotline/internal/engine"
	"github.com/drennalls/slotline/internal/store"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("slotline: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	est := alloc.Estimator{
		NormalMinutes: cfg.NormalMinutes,
		ComboMinutes:  cfg.ComboMinutes,
	}
	eng := engine.NewEngine(db, est, cfg.MaxDays, logger)

	srv := api.NewServer(cfg.ListenAddr, db, eng, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

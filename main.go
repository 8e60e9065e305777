package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"gomoku-server/broker"
	"gomoku-server/config"
	"gomoku-server/database"
	"gomoku-server/engine"
	"gomoku-server/monitor"
	"gomoku-server/server"
	"gomoku-server/session"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("config not loaded", "err", err)
	}

	// A positional port argument overrides the configured one.
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil {
			log.Fatalw("invalid port argument", "arg", os.Args[1])
		}
		cfg.Port = port
	}

	var store database.Store
	if cfg.DatabaseConnString != "" {
		pg, err := database.NewPostgres(cfg.DatabaseConnString)
		if err != nil {
			log.Fatalw("database not reachable", "err", err)
		}
		defer pg.Close()
		store = pg
		log.Infow("using postgres store")
	} else {
		store = database.NewMemory()
		log.Infow("using in-memory store")
	}

	reg := session.NewRegistry(store, log)
	eng := engine.New(store, reg, log)
	brk := broker.New(store)

	mon, err := monitor.New(eng, monitor.Interval, log)
	if err != nil {
		log.Fatalw("clock monitor not started", "err", err)
	}
	mon.Start()
	defer mon.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(store, reg, eng, brk, log)
	if err := srv.Listen(ctx, cfg.Port); err != nil {
		log.Fatalw("server stopped", "err", err)
	}
	log.Infow("server shut down")
}

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to a config file (yaml, toml or json)")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log, err := SetupLogging(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("setup logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	auth, err := NewAuth(db)
	if err != nil {
		log.WithError(err).Fatal("init auth")
	}
	board, err := NewLeaderboard(db, cfg.LeaderboardTTL)
	if err != nil {
		log.WithError(err).Fatal("init leaderboard")
	}
	defer board.Close()

	sessions := NewSessionManager(ctx, cfg.GameConfig(), board, cfg.MaxSessions)
	defer sessions.CloseAll()

	hub := NewHub(sessions, db, auth)
	go hub.Run(ctx)

	mux := SetupRoutes(hub, Routes{
		ClientDir:   cfg.ClientDir,
		PublicURL:   cfg.PublicURL,
		Leaderboard: board,
	})
	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":   cfg.Addr,
			"client": cfg.ClientDir,
			"world":  cfg.GameConfig().Bounds,
		}).Info("server starting")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}

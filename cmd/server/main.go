package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"kanban-board/internal/config"
	"kanban-board/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithError(err).Fatal("failed to load .env file")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	configureLogging(cfg.Log)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := server.NewApp(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.WithError(err).Warn("shutdown was not clean")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.WithError(err).Error("server stopped with error")
	}
}

func configureLogging(cfg config.LogConfig) {
	if level, err := log.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.Level).Warn("unknown log level, keeping info")
	}
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

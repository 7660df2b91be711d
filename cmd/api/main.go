package main

import (
	"context"
	"fmt"
	"os"

	"taskManager/internal/app"
	"taskManager/internal/config"
	"taskManager/internal/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Development, cfg.Logging.Level); err != nil {
		fmt.Fprintln(os.Stderr, "инициализация логгера:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Logging.Development {
		if dump, err := cfg.Dump(); err == nil {
			logger.Debug("Конфигурация загружена", zap.String("config", dump))
		}
	}

	ctx := context.Background()
	application := app.New(cfg)
	if err := application.Init(ctx); err != nil {
		logger.Error("Не удалось запустить приложение", err)
		logger.Sync()
		os.Exit(1)
	}

	code := application.Run(ctx)
	logger.Sync()
	os.Exit(code)
}

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/snipdev/snip/pkg/snip/auth"
	"github.com/snipdev/snip/pkg/snip/config"
	"github.com/snipdev/snip/pkg/snip/database"
	"github.com/snipdev/snip/pkg/snip/links"
	"github.com/snipdev/snip/pkg/snip/models"
	"github.com/snipdev/snip/pkg/snip/server"
	"github.com/snipdev/snip/pkg/snip/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, _ := config.ParseLogLevel(cfg.App.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	gin.SetMode(cfg.Server.GinMode)

	db, err := database.Connect(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("database migrations completed", "postgres", database.IsPostgres(cfg.Database.DSN))

	st := store.NewGorm(db)

	issuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTTTL)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}
	authService := auth.NewService(st, auth.NewBcryptHasher(cfg.Auth.BcryptCost), issuer, logger)
	linkService := links.NewService(st, &links.ServiceConfig{
		CodeLength:  cfg.ShortCode.Length,
		MaxAttempts: cfg.ShortCode.MaxAttempts,
		Logger:      logger,
	})

	router := server.NewRouter(server.Deps{
		Auth:    authService,
		Links:   linkService,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting snip",
		"env", cfg.App.Environment,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)
	return server.New(cfg.Server, logger, router).Run(ctx)
}

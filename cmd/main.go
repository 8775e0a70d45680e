package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"masterclass/cmd/buildCFG"
	"masterclass/internal/api/api"
	"masterclass/internal/consumerWorker"
	"masterclass/internal/mailer"
	"masterclass/internal/rabbit"
	"masterclass/internal/repo"
	"masterclass/internal/service"
	"masterclass/internal/upload"
	"masterclass/pkg/auth"
)

func main() {
	_ = godotenv.Load()

	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", "'"); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	authCfg, err := buildCFG.BuildAuthConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build auth config")
	}

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		log.Fatal().Msgf("failed to connect to DB: %v", err)
	}
	if err := db.Master.Ping(); err != nil {
		log.Fatal().Msgf("DB ping failed: %v", err)
	}
	log.Info().Msg("Database connected successfully")

	repository, err := repo.NewRepository(db, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot get working directory")
	}
	migrationPath := filepath.Join(cwd, "migrations/postgres")
	if err := repository.MigrateUp(migrationPath); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")

	passwordHash, err := auth.HashPassword(authCfg.AdminPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to hash admin password")
	}
	if err := repository.EnsureAdmin(context.Background(), authCfg.AdminUsername, passwordHash); err != nil {
		log.Fatal().Err(err).Msg("failed to seed admin account")
	}

	uploadCfg := buildCFG.BuildUploadConfig(cfg, &log)
	uploads, err := upload.NewStore(uploadCfg.Dir, uploadCfg.MaxBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	mailCfg, err := buildCFG.BuildMailConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build mail config")
	}
	mail := mailer.New(mailCfg, &log)

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}
	rmq, err := rabbit.NewClient(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue)
	if err != nil {
		log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rmq.Close()

	workerCtx, cancelWorkers := context.WithCancel(context.Background())

	ticketWorker := consumerWorker.NewReader(rmq, repository, mail)
	ticketWorker.Start(workerCtx)

	serviceInstance := service.NewService(repository, &log, rmq, uploads, authCfg.SessionSecret, authCfg.SessionTTL)
	app := api.NewRouters(&api.Routers{
		Service:       serviceInstance,
		SessionSecret: authCfg.SessionSecret,
		TemplatesGlob: "templates/*.html",
	})

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := app.Run(":" + serverCfg.Port); err != nil {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	cancelWorkers()
	ticketWorker.Stop()

	log.Info().Msg("Shutdown complete")
}

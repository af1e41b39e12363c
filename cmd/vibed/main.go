package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/myselfgus/vibe/internal/config"
	"github.com/myselfgus/vibe/internal/corrector"
	"github.com/myselfgus/vibe/internal/database"
	"github.com/myselfgus/vibe/internal/engine"
	"github.com/myselfgus/vibe/internal/events"
	"github.com/myselfgus/vibe/internal/executor"
	"github.com/myselfgus/vibe/internal/llm/gateway"
	"github.com/myselfgus/vibe/internal/models"
	"github.com/myselfgus/vibe/internal/planner"
	"github.com/myselfgus/vibe/internal/repositories"
	"github.com/myselfgus/vibe/internal/sandbox"
	"github.com/myselfgus/vibe/internal/server"
	"github.com/myselfgus/vibe/internal/services"
	"github.com/myselfgus/vibe/internal/stream"
	"github.com/myselfgus/vibe/internal/utils"
)

func main() {
	configPath := flag.String("config", "vibe.yaml", "path to the YAML config file")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if err := utils.LoadEnv(); err != nil {
		log.Warn("no .env loaded", "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := database.Init(database.Config{Path: cfg.Database.Path})
	if err != nil {
		log.Error("init database", "error", err)
		os.Exit(1)
	}

	sessionRepo := repositories.NewGenerationSessionRepository(db)
	fileRepo := repositories.NewSessionFileRepository(db)
	templateRepo := repositories.NewTemplateRepository(db)

	modelConfig := services.NewModelConfigService()
	if err := modelConfig.Startup(); err != nil {
		log.Error("load model catalog", "error", err)
		os.Exit(1)
	}
	templates := services.NewTemplateService(templateRepo)
	if err := templates.Startup(context.Background()); err != nil {
		log.Error("seed templates", "error", err)
		os.Exit(1)
	}
	credentials := services.NewCredentialService()

	gw := gateway.New(credentials, modelConfig, gateway.RetryPolicy{
		MaxAttempts: cfg.Gateway.MaxAttempts,
		BaseDelay:   cfg.Gateway.BaseDelay,
		MaxDelay:    cfg.Gateway.MaxDelay,
	}, cfg.Gateway.CallTimeout)

	correctionKey := cfg.Stages.Correction
	if cfg.Sandbox.URL == "" {
		// No sandbox to check against means nothing to correct.
		correctionKey = models.ModelDisabled
	}

	eng := engine.New(
		log,
		sessionRepo,
		fileRepo,
		templates,
		planner.New(gw, cfg.Stages.Blueprint, cfg.Planner.StrictOverlap),
		executor.New(gw, cfg.Stages.FirstPhase, cfg.Stages.Phase),
		corrector.New(gw, sandbox.NewHTTPRunner(cfg.Sandbox.URL, cfg.Sandbox.Timeout), correctionKey, cfg.Corrector.MaxAttempts),
	)

	hub := stream.NewHub(log)
	events.SetEmitter(hub.Publish)
	defer events.SetEmitter(nil)

	workspace := services.NewWorkspaceService(filepath.Join(filepath.Dir(cfg.Database.Path), "exports"))
	sessions := services.NewGenerationSessionService(eng, workspace)

	srv := server.New(log, cfg.Server.Addr, sessions, templates, modelConfig, credentials, hub, cfg.Stream.HeartbeatInterval)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error("server failed", "error", err)
		os.Exit(1)
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
		os.Exit(1)
	}
}

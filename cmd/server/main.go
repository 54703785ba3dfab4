package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogurasousui/staffhub/internal/adapters/http/handler"
	"github.com/ogurasousui/staffhub/internal/adapters/repository/postgres"
	"github.com/ogurasousui/staffhub/internal/core/leave"
	"github.com/ogurasousui/staffhub/internal/core/roster"
	"github.com/ogurasousui/staffhub/internal/core/workflow"
	"github.com/ogurasousui/staffhub/internal/platform/config"
	pg "github.com/ogurasousui/staffhub/internal/platform/db/postgres"
	"github.com/ogurasousui/staffhub/internal/platform/logging"
	"github.com/ogurasousui/staffhub/internal/platform/server"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to initialize database pool", zap.Error(err))
	}
	defer dbPool.Close()

	txManager := pg.NewTransactionManager(dbPool)

	principalRepo := postgres.NewPrincipalRepository(dbPool)
	leaveRepo := postgres.NewLeaveRepository(dbPool)
	rosterRepo := postgres.NewRosterRepository(dbPool)

	leaveSvc := leave.NewService(leaveRepo, nil, txManager)
	rosterSvc := roster.NewService(rosterRepo, nil, txManager)
	workflowSvc := workflow.NewService(principalRepo, leaveSvc, rosterSvc, nil, txManager)

	router := handler.NewRouter(handler.NewWorkflowHandler(workflowSvc), logger)
	httpServer := server.New(cfg.Server.ListenAddr, router, cfg.Server.ShutdownTimeout)

	logger.Info("HTTP server listening", zap.String("addr", cfg.Server.ListenAddr))

	if err := httpServer.Run(ctx); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

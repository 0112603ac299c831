package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/ogurasousui/codex-org-analytics/internal/adapters/grpc/handler"
	"github.com/ogurasousui/codex-org-analytics/internal/adapters/repository/postgres"
	"github.com/ogurasousui/codex-org-analytics/internal/core/org"
	"github.com/ogurasousui/codex-org-analytics/internal/platform/config"
	pg "github.com/ogurasousui/codex-org-analytics/internal/platform/db/postgres"
	"github.com/ogurasousui/codex-org-analytics/internal/platform/logging"
	"github.com/ogurasousui/codex-org-analytics/internal/platform/metrics"
	"github.com/ogurasousui/codex-org-analytics/internal/platform/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
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
		logrus.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.Log, nil)
	if !cfg.Database.Enabled() {
		logger.Fatal("database.host must be set for the analysis server")
	}

	dbPool, err := pg.NewPool(ctx, cfg.Database,
		pg.WithQueryLogger(logging.Component(logger, "postgres"), tracelog.LogLevelDebug))
	if err != nil {
		logger.Fatalf("failed to initialize database pool: %v", err)
	}
	defer dbPool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	employeeRepo := postgres.NewEmployeeRepository(dbPool)
	orgSvc := org.NewService(employeeRepo, nil, pg.NewTransactionManager(dbPool))
	defaults := org.AnalyzeInput{
		BelowPercentage:   cfg.Analysis.BelowPercentage,
		AbovePercentage:   cfg.Analysis.AbovePercentage,
		MaxReportingDepth: cfg.Analysis.MaxReportingDepth,
	}
	analysisHandler := handler.NewOrgAnalysisGrpcHandler(orgSvc, defaults, m)

	grpcServer := server.New(cfg.Server, analysisHandler, logging.Component(logger, "grpc"), m)

	if err := grpcServer.Run(ctx); err != nil {
		logger.Fatalf("server stopped with error: %v", err)
	}
	logger.Info("server stopped")
}

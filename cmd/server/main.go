// Package main is the entry point for the riskdesk risk and rebalancing
// service. It wires the analytics engines (correlation, beta, CVaR, stress
// testing, rebalancing, position sizing, optimization) behind an HTTP API and
// runs the scheduled market data refresh.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridianquant/riskdesk/internal/config"
	"github.com/meridianquant/riskdesk/internal/database"
	"github.com/meridianquant/riskdesk/internal/events"
	"github.com/meridianquant/riskdesk/internal/marketdata"
	"github.com/meridianquant/riskdesk/internal/modules/beta"
	betahandlers "github.com/meridianquant/riskdesk/internal/modules/beta/handlers"
	"github.com/meridianquant/riskdesk/internal/modules/correlation"
	correlationhandlers "github.com/meridianquant/riskdesk/internal/modules/correlation/handlers"
	"github.com/meridianquant/riskdesk/internal/modules/cvar"
	cvarhandlers "github.com/meridianquant/riskdesk/internal/modules/cvar/handlers"
	"github.com/meridianquant/riskdesk/internal/modules/optimization"
	optimizationhandlers "github.com/meridianquant/riskdesk/internal/modules/optimization/handlers"
	"github.com/meridianquant/riskdesk/internal/modules/rebalancing"
	rebalancinghandlers "github.com/meridianquant/riskdesk/internal/modules/rebalancing/handlers"
	"github.com/meridianquant/riskdesk/internal/modules/sizing"
	sizinghandlers "github.com/meridianquant/riskdesk/internal/modules/sizing/handlers"
	"github.com/meridianquant/riskdesk/internal/modules/stress"
	stresshandlers "github.com/meridianquant/riskdesk/internal/modules/stress/handlers"
	"github.com/meridianquant/riskdesk/internal/portfolio"
	"github.com/meridianquant/riskdesk/internal/scheduler"
	"github.com/meridianquant/riskdesk/internal/server"
	"github.com/meridianquant/riskdesk/internal/valuation"
	"github.com/meridianquant/riskdesk/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Bool("dev_mode", cfg.DevMode).
		Msg("Starting riskdesk")

	marketDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("marketdata"),
		Profile: database.ProfileCache,
		Name:    "marketdata",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open market data database")
	}
	defer marketDB.Close()

	portfolioDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("portfolio"),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	if err := marketDB.Exec(marketdata.Schema); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize market data schema")
	}
	if err := portfolioDB.Exec(portfolio.Schema); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize portfolio schema")
	}

	marketStore := marketdata.NewStore(marketDB.Conn(), log)
	portfolioRepo := portfolio.NewRepository(portfolioDB.Conn(), log)

	bus := events.NewBus(log)

	valuationService := valuation.NewService(marketStore, portfolioRepo, log)

	correlationService := correlation.NewService(marketStore, portfolioRepo, log)
	betaService := beta.NewService(valuationService, marketStore, log)
	cvarService := cvar.NewService(valuationService, log)
	stressService := stress.NewService(portfolioRepo, log)
	rebalancingService := rebalancing.NewService(log)
	sizingService := sizing.NewService(portfolioRepo, marketStore, log)
	optimizer := optimization.NewOptimizer(log)
	statsBuilder := optimization.NewStatsBuilder(marketStore, log)

	modules := []server.RouteRegistrar{
		correlationhandlers.NewHandler(correlationService, log),
		betahandlers.NewHandler(betaService, log),
		cvarhandlers.NewHandler(cvarService, log),
		stresshandlers.NewHandler(stressService, bus, log),
		rebalancinghandlers.NewHandler(rebalancingService, portfolioRepo, portfolioRepo, bus, log),
		sizinghandlers.NewHandler(sizingService, bus, log),
		optimizationhandlers.NewHandler(optimizer, statsBuilder, log),
	}

	sched := scheduler.New(log)
	priceSource := marketdata.NewReplaySource(marketStore, log)
	refreshJob := scheduler.NewPriceRefreshJob(marketStore, priceSource, bus, log)
	if err := sched.AddJob(cfg.PriceRefreshCron, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule price refresh job")
	}
	sched.Start()
	defer sched.Stop()

	systemHandlers := server.NewSystemHandlers(log)
	srv := server.New(cfg, bus, systemHandlers, modules, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("riskdesk stopped")
}

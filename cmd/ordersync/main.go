package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kaspimerchant/ordersync/config"
	handler "github.com/kaspimerchant/ordersync/internal/handler/http"
	"github.com/kaspimerchant/ordersync/internal/kaspi"
	"github.com/kaspimerchant/ordersync/internal/logger"
	"github.com/kaspimerchant/ordersync/internal/middleware"
	"github.com/kaspimerchant/ordersync/internal/repository"
	"github.com/kaspimerchant/ordersync/internal/repository/postgres"
	"github.com/kaspimerchant/ordersync/internal/service"
	"github.com/kaspimerchant/ordersync/internal/telegram"
	"github.com/kaspimerchant/ordersync/internal/worker"
	"go.uber.org/zap"
)

const sessionTTL = 5 * time.Minute

func main() {

	// create new config
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Log.Sync()

	// create context cancelled on shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// initialize database
	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Log.Fatal("Error initializing database", zap.Error(err))
	}
	defer db.Close()

	// migrate database
	if err := db.Migrate(); err != nil {
		logger.Log.Fatal("Error migrating database", zap.Error(err))
	}

	// dependency injection
	orderRepo := repository.NewOrderRepository(db)
	gateway := kaspi.NewClient(cfg.KaspiAPIURL, cfg.KaspiAPIToken)

	orderService := service.NewOrderService(gateway, orderRepo)
	lifecycleService := service.NewLifecycleService(gateway, orderRepo, cfg.LabelRetry)

	// telegram bot
	tgClient := telegram.NewClient(cfg.TelegramToken)
	sessions := telegram.NewSessionStore(sessionTTL)
	bot := telegram.NewBot(tgClient, orderService, lifecycleService, cfg.TelegramChatID, cfg.TelegramAdminIDs, sessions)

	// periodic order synchronization
	syncer := worker.NewSyncProcessor(orderService, bot, cfg.PollInterval)

	bot.SendStartupMessage(ctx)
	go bot.Run(ctx)
	go syncer.Run(ctx)

	// ops API
	orderHandler := handler.NewOrderHandler(orderService, lifecycleService)

	router := chi.NewRouter()
	router.Use(middleware.Logging(logger.Log))
	router.Use(middleware.Auth(cfg.OpsToken))

	router.Get("/api/orders/active", orderHandler.ListActiveOrders())
	router.Get("/api/orders/{code}", orderHandler.GetOrder())
	router.Get("/api/orders/{code}/waybill", orderHandler.GetWaybill())
	router.Post("/api/orders/{code}/accept", orderHandler.AcceptOrder())
	router.Post("/api/orders/{code}/waybill", orderHandler.GenerateWaybill())
	router.Post("/api/orders/{code}/cancel", orderHandler.CancelOrder())
	router.Delete("/api/orders", orderHandler.ClearOrders())

	server := &http.Server{Addr: cfg.RunAddr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Log.Info("Running server", zap.String("addr", cfg.RunAddr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatal("Error starting server", zap.Error(err))
	}
}

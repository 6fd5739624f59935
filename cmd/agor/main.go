// Package main is the entry point for the Agor terminal service.
// The server exposes WebSocket and HTTP endpoints for terminal
// orchestration on top of an external multiplexer.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codingwatching/agor/internal/common/config"
	"github.com/codingwatching/agor/internal/common/httpmw"
	"github.com/codingwatching/agor/internal/common/logger"
	gateways "github.com/codingwatching/agor/internal/gateway/websocket"
	"github.com/codingwatching/agor/internal/terminal/envfile"
	terminalhandlers "github.com/codingwatching/agor/internal/terminal/handlers"
	"github.com/codingwatching/agor/internal/terminal/identity"
	"github.com/codingwatching/agor/internal/terminal/multiplexer"
	"github.com/codingwatching/agor/internal/terminal/pty"
	terminalservice "github.com/codingwatching/agor/internal/terminal/service"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting Agor terminal service...")

	// 3. Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. WebSocket gateway
	gateway := gateways.NewGateway(log)
	go gateway.Hub.Run(ctx)

	// 5. Terminal orchestrator and its collaborators
	controller := multiplexer.NewController(cfg.Terminal.CommandTimeoutDuration(), log)
	cache := multiplexer.NewQueryCache(controller, cfg.Terminal.CacheTTLDuration(), log)
	resolver := identity.NewResolver(cfg.Impersonation, log)
	composer := envfile.NewComposer(cfg.Terminal.EnvFileDir, log)

	terminalSvc := terminalservice.NewService(cfg, terminalservice.Dependencies{
		Users:     newConfigUserDirectory(cfg.Users),
		Worktrees: newConfigWorktreeResolver(cfg.Worktree.Registry),
		Identity:  resolver,
		Env:       composer,
		Mux:       controller,
		Cache:     cache,
		Spawner:   pty.NewSpawner(),
		Emitter:   gateway.Notifier,
	}, log)

	gateway.RegisterTerminalService(terminalSvc)
	log.Info("Terminal service initialized",
		zap.String("session_prefix", cfg.Terminal.SessionPrefix),
		zap.String("impersonation_mode", cfg.Impersonation.Mode))

	// 6. HTTP router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(httpmw.RequestLogger(log, "agor"))

	gateway.SetupRoutes(router)
	terminalhandlers.NewTerminalHandlers(terminalSvc, log).RegisterRoutes(router)

	// 7. HTTP server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("Server listening", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("API configured",
		zap.String("websocket", "/ws"),
		zap.String("health", "/health"),
		zap.String("http", "/api/v1"),
	)

	// ============================================
	// GRACEFUL SHUTDOWN
	// ============================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Agor...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Best-effort teardown of every live terminal; the multiplexer
	// sessions themselves survive for reattachment.
	terminalSvc.Cleanup()

	log.Info("Agor stopped")
}

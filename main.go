package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/liurenhao/stagegate/internal/adapter/llm"
	"github.com/liurenhao/stagegate/internal/config"
	"github.com/liurenhao/stagegate/internal/engine"
	"github.com/liurenhao/stagegate/internal/executor"
	"github.com/liurenhao/stagegate/internal/gate"
	"github.com/liurenhao/stagegate/internal/hub"
	"github.com/liurenhao/stagegate/internal/store"
	"github.com/liurenhao/stagegate/internal/tools"
	v1 "github.com/liurenhao/stagegate/internal/transport/http/v1"
	"github.com/liurenhao/stagegate/internal/transport/ws"
	"github.com/liurenhao/stagegate/internal/workspace"
	"github.com/liurenhao/stagegate/policy"
)

func main() {
	cfg := config.Load()

	log.Printf("Starting stagegate engine...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Completion endpoint: %s", cfg.CompletionURL)

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	workspaceMgr, err := workspace.NewManager(cfg.WorkspaceRoot)
	if err != nil {
		log.Fatalf("Failed to initialize workspace: %v", err)
	}

	llmClient := llm.NewClient(cfg.CompletionURL, cfg.CompletionAPIKey, 5*time.Minute)

	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	catalog, err := tools.LoadCatalog()
	if err != nil {
		log.Fatalf("Failed to load tool catalog: %v", err)
	}
	breaker := tools.NewBreaker(cfg.BreakerMaxFailures, cfg.BreakerResetWindow)
	dispatcher := tools.NewDispatcher(catalog, breaker, policyEngine, cfg.DefaultToolTimeout)
	tools.RegisterBuiltins(dispatcher, db, workspaceMgr)

	taxonomy, err := gate.LoadTaxonomy()
	if err != nil {
		log.Fatalf("Failed to load gate taxonomy: %v", err)
	}

	progressHub := hub.New()
	eng := engine.New(llmClient, dispatcher, cfg.Model, cfg.MaxModelTokens)
	exec := executor.New(db, eng, catalog, taxonomy, gate.NewPrioritizer(taxonomy), workspaceMgr,
		progressHub, executor.TimerScheduler{}, executor.Options{
			IterationCap:     cfg.IterationCap,
			MaxRetries:       cfg.MaxRetries,
			RetryBackoff:     cfg.RetryBackoff,
			ExpectedConcepts: cfg.ExpectedConcepts,
		})

	server := echo.New()
	server.HideBanner = true

	server.Use(middleware.Logger())
	server.Use(middleware.Recover())
	server.Use(middleware.CORS())

	v1.NewHandler(db, exec).RegisterRoutes(server)
	ws.NewServer(progressHub).RegisterRoutes(server)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		log.Printf("API started on port %d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-gctx.Done():
			return gctx.Err()
		}

		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Failed to shutdown server gracefully: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Engine exited with error: %v", err)
	}
	log.Println("Engine stopped")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor-sync/config"
	"github.com/yeremiapane/restaurant-floor-sync/database"
	"github.com/yeremiapane/restaurant-floor-sync/kds"
	"github.com/yeremiapane/restaurant-floor-sync/metrics"
	"github.com/yeremiapane/restaurant-floor-sync/middlewares"
	"github.com/yeremiapane/restaurant-floor-sync/router"
	"github.com/yeremiapane/restaurant-floor-sync/services"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to optional YAML config")
	flag.Parse()

	utils.InitLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to load config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		utils.InfoLogger.SetLevel(lvl)
	}
	if cfg.Auth.JWTSecret != "" {
		utils.SetJWTSecret(cfg.Auth.JWTSecret)
	}
	if cfg.Server.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize DB
	db, err := config.InitDB(cfg.Database)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegistry(registry)

	hub := kds.NewHub(
		kds.WithMetrics(m),
		kds.WithQueueSize(cfg.Realtime.SendQueue),
		kds.WithLogger(utils.InfoLogger.WithField("component", "hub")),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Redis bridge opsional untuk deployment multi replica
	var bridge *kds.RedisBridge
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			utils.ErrorLogger.Fatalf("Failed to parse REDIS_URL: %v", err)
		}
		bridge = kds.NewRedisBridge(redis.NewClient(opt), hub, cfg.Redis.Channel)
		if err := bridge.Start(ctx); err != nil {
			utils.ErrorLogger.Fatalf("Failed to start redis bridge: %v", err)
		}
		utils.InfoLogger.Printf("Redis bridge on channel %s", cfg.Redis.Channel)
	}

	// Kitchen feed opsional
	if cfg.AMQP.URL != "" {
		feed, err := services.DialKitchenFeed(cfg.AMQP.URL, hub)
		if err != nil {
			utils.ErrorLogger.Fatalf("Failed to connect kitchen feed: %v", err)
		}
		feed.Exchange = cfg.AMQP.Exchange
		feed.Queue = cfg.AMQP.Queue
		defer feed.Close()
		go func() {
			if err := feed.Run(ctx); err != nil {
				utils.ErrorLogger.Printf("Kitchen feed stopped: %v", err)
			}
		}()
	}

	monitor := services.NewChangeMonitor(db, hub)
	monitor.Interval = cfg.Realtime.ChangePollInterval
	monitor.Metrics = m
	monitor.Start()

	r := router.SetupRouter(db, router.Options{
		Hub:         hub,
		Gatherer:    registry,
		RateLimiter: middlewares.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		utils.InfoLogger.Printf("Listening on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.InfoLogger.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Printf("Server forced to shutdown: %v", err)
	}

	// outbox dikosongkan dulu sebelum koneksi ditutup
	monitor.Stop()
	if _, err := monitor.ProcessPending(); err != nil {
		utils.ErrorLogger.Printf("Final outbox flush failed: %v", err)
	}
	hub.Shutdown()
	stop()
	if bridge != nil {
		bridge.Stop()
	}
	utils.InfoLogger.Println("Server exited")
}

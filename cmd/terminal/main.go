package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor-sync/config"
	"github.com/yeremiapane/restaurant-floor-sync/metrics"
	"github.com/yeremiapane/restaurant-floor-sync/terminal"
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

	term := terminal.New(terminal.Config{
		HubURL:   cfg.Terminal.HubURL,
		StoreURL: cfg.Terminal.StoreURL,
		Token:    cfg.Terminal.Token,
		Window:   cfg.Realtime.CoalesceWindow,
	},
		terminal.WithLogger(utils.InfoLogger),
		terminal.WithBell(os.Stdout),
		terminal.WithMetrics(metrics.NewWithRegistry(prometheus.NewRegistry())),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := term.Start(ctx); err != nil {
		// loop reconnect tetap berjalan
		utils.InfoLogger.WithError(err).Warn("Hub not reachable yet, retrying in background")
	}
	cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.InfoLogger.Info("Shutting down terminal...")
	term.Close()
}

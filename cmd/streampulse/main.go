package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streampulse/detector/internal/config"
	"github.com/streampulse/detector/internal/detector"
	"github.com/streampulse/detector/internal/events"
	"github.com/streampulse/detector/internal/logger"
	"github.com/streampulse/detector/internal/snapshots"
	"github.com/streampulse/detector/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	snapshotStore, err := snapshots.New(cfg.Snapshots.DBPath)
	if err != nil {
		logger.Fatal("Failed to open snapshot store: %v", err)
	}
	defer func() {
		if err := snapshotStore.Close(); err != nil {
			logger.Error("Failed to close snapshot store: %v", err)
		}
	}()

	eventStore, err := events.New(cfg.Events.DBPath)
	if err != nil {
		logger.Fatal("Failed to open event store: %v", err)
	}
	defer func() {
		if err := eventStore.Close(); err != nil {
			logger.Error("Failed to close event store: %v", err)
		}
	}()

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	var notifier detector.Notifier
	if telegramClient != nil && cfg.Telegram.AlertOnSpike {
		notifier = telegramClient
	}

	det := detector.New(snapshotStore, eventStore, notifier, detector.Config{
		MinAbsoluteDelta:     cfg.Detector.MinAbsoluteDelta,
		DeltaRatio:           cfg.Detector.DeltaRatio,
		GrowthThreshold:      cfg.Detector.GrowthThreshold,
		SeasonalThreshold:    cfg.Detector.SeasonalThreshold,
		Cooldown:             cfg.Detector.Cooldown,
		CandidateCooldown:    cfg.Detector.CandidateCooldown,
		BaselineFloor:        cfg.Detector.BaselineFloor,
		InterestGrowth:       cfg.Detector.InterestGrowth,
		InterestDelta:        cfg.Detector.InterestDelta,
		InterestTopN:         cfg.Detector.InterestTopN,
		MajorTopN:            cfg.Detector.MajorTopN,
		MajorGrowthThreshold: cfg.Detector.MajorGrowthThreshold,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if cfg.Telegram.Enabled && telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Starting detection service (interval: %v, growth_threshold: %.2f, major_top_n: %d)",
		cfg.Detector.TickInterval,
		cfg.Detector.GrowthThreshold,
		cfg.Detector.MajorTopN,
	)

	ticker := time.NewTicker(cfg.Detector.TickInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleTickResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Detection tick failed: %v", err)
			if consecutiveFailures == 1 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	logger.Debug("Running initial detection tick")
	handleTickResult(det.RunTick())

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled detection tick")
			handleTickResult(det.RunTick())
		}
	}
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"TradeBraid/internal/baseline"
	"TradeBraid/internal/config"
	"TradeBraid/internal/edge"
	"TradeBraid/internal/engine"
	"TradeBraid/internal/ingest"
	"TradeBraid/internal/lesson"
	"TradeBraid/internal/notifier"
	"TradeBraid/internal/scheduler"
	"TradeBraid/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] TradeBraid starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init store
	var st store.Store
	if cfg.Database.SQLitePath != "" {
		ss, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite store failed, using in-memory: %v", err)
			st = store.NewMemoryStore()
		} else {
			st = ss
			defer ss.Close()
		}
	} else {
		st = store.NewMemoryStore()
	}

	// Init learning pipeline
	eng := engine.New(cfg, st)
	resolver := baseline.NewResolver(st, cfg.Learning.BaselineExactMin, cfg.Learning.BaselineLooseMin)
	builder := lesson.NewBuilder(st, edge.NewScorer(st, resolver), cfg.Learning)

	// Init lesson cache (warm-started from snapshot)
	cache, err := lesson.NewCache(cfg.Cache.SnapshotFile)
	if err != nil {
		log.Fatalf("[FATAL] init lesson cache: %v", err)
	}

	// Init trade source
	src, err := ingest.NewSpoolSource(cfg.Ingest.SpoolDir)
	if err != nil {
		log.Fatalf("[FATAL] init spool source: %v", err)
	}
	log.Printf("[INFO] trade source: %s", src.Name())

	// Init notifier
	var tn notifier.Notifier
	var tg *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tg = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		tn = tg
	} else {
		log.Println("[INFO] telegram not configured, admin channel disabled")
		tn = notifier.NewNoopNotifier()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, cfg, eng, builder, cache, src, st, tn)
	if err := sched.RegisterAll(); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tg != nil {
		go tg.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	// Optional: run a sweep immediately on start
	if os.Getenv("SWEEP_ON_START") == "true" {
		log.Println("[INFO] SWEEP_ON_START enabled, executing sweep now")
		go sched.RunSweepNow()
	}

	log.Println("[INFO] TradeBraid is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] TradeBraid stopped")
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FundBoard/internal/config"
	"FundBoard/internal/layout"
	"FundBoard/internal/position"
	"FundBoard/internal/quote"
	"FundBoard/internal/refresh"
	"FundBoard/internal/registry"
	"FundBoard/internal/server"
	"FundBoard/internal/store"
	"FundBoard/internal/transfer"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] FundBoard starting...")

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

	// Init persistence store
	var st store.Store
	history := store.History(store.NewNoopHistory())
	if cfg.Database.SQLitePath != "" {
		ss, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite store failed, using in-memory: %v", err)
			st = store.NewMemoryStore()
		} else {
			st = ss
			history = ss
		}
	} else {
		st = store.NewMemoryStore()
	}
	defer st.Close()

	// Init quote fetch and search clients
	var fetcher quote.Fetcher
	var searcher quote.Searcher
	if cfg.DataSource.Name == "mock" {
		fetcher = &quote.MockFetcher{}
		searcher = &quote.MockSearcher{}
	} else {
		em := quote.NewEastmoneyFetcher(cfg.Proxy)
		fetcher = em
		searcher = em
	}
	log.Printf("[INFO] data source: %s", fetcher.Name())

	// Init stores
	reg, err := registry.New(st)
	if err != nil {
		log.Fatalf("[FATAL] init fund registry: %v", err)
	}
	ledger, err := position.New(st)
	if err != nil {
		log.Fatalf("[FATAL] init position ledger: %v", err)
	}
	lay, err := layout.New(st)
	if err != nil {
		log.Fatalf("[FATAL] init layout store: %v", err)
	}

	// Init refresh coordinator and scheduler
	coord := refresh.New(reg, fetcher, history)
	sched := refresh.NewScheduler(coord, reg, st, cfg.Refresh.DefaultMs)

	// New funds start collapsed, and any code-set change rebuilds the
	// refresh timer.
	reg.OnCodesAdded = func(codes []string) {
		lay.EnsureCollapsed(codes)
		sched.CodeSetChanged()
	}
	reg.OnCodesRemoved = func(codes []string) {
		sched.CodeSetChanged()
	}
	lay.EnsureCollapsed(reg.Codes())

	// Init import/export engine
	engine := transfer.NewEngine(st, reg, ledger, lay, sched, coord)
	delivery := &transfer.DirDelivery{Dir: cfg.Export.Dir}

	sched.Start()
	defer sched.Stop()

	// Refresh everything once on startup
	if codes := reg.Codes(); len(codes) > 0 {
		go coord.RequestRefresh(codes)
	}

	// Init HTTP server
	srv := server.New(cfg.Server.Addr, server.Deps{
		Registry:  reg,
		Ledger:    ledger,
		Layout:    lay,
		Coord:     coord,
		Scheduler: sched,
		Engine:    engine,
		Searcher:  searcher,
		Delivery:  delivery,
	})
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()

	log.Println("[INFO] FundBoard is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[ERROR] http shutdown: %v", err)
	}
	log.Println("[INFO] FundBoard stopped")
}

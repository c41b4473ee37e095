package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"minetrade/internal/config"
	"minetrade/internal/db"
	"minetrade/internal/handlers"
	"minetrade/internal/pricing"
	"minetrade/internal/services"
	"minetrade/internal/store"
	"minetrade/internal/websocket"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	users := store.NewUserStore(database)
	wallets := store.NewWalletStore(database)
	entries := store.NewEntryStore(database)
	plans := store.NewPlanStore(database)
	orders := store.NewOrderStore(database)
	topups := store.NewTopupStore(database)
	prices := store.NewPriceStore(database)
	admin := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()
	oracle := pricing.NewOracle(prices, cfg.PriceStaleAfter)

	walletSvc := services.NewWalletService(txRunner, wallets, entries, audit, oracle, hub)
	miningSvc := services.NewMiningService(txRunner, orders, plans, walletSvc, audit, hub)
	topupSvc := services.NewTopupService(txRunner, topups, walletSvc, audit, hub)
	approvalSvc := services.NewApprovalService(miningSvc, orders, topupSvc)

	handler := handlers.New(database, txRunner, cfg, users, wallets, entries, plans, orders, topups, prices, admin, audit, walletSvc, miningSvc, approvalSvc, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runAccrualSweep(sweepCtx, miningSvc, cfg.AccrueInterval)

	go func() {
		log.Printf("minetrade API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

// runAccrualSweep credits due accrual and completes elapsed orders on a
// fixed interval. Each order is its own transaction, so a crash mid-sweep
// loses nothing; the next run picks up where accrued_days left off.
func runAccrualSweep(ctx context.Context, mining *services.MiningService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			completed, err := mining.AccrueDue(ctx, now)
			if err != nil {
				log.Printf("accrual sweep: %v", err)
				continue
			}
			if completed > 0 {
				log.Printf("accrual sweep completed %d orders", completed)
			}
		}
	}
}

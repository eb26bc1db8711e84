package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"diamonds/internal/alert"
	"diamonds/internal/config"
	"diamonds/internal/db"
	"diamonds/internal/events"
	"diamonds/internal/handlers"
	"diamonds/internal/scheduler"
	"diamonds/internal/services"
	"diamonds/internal/store"
	"diamonds/internal/websocket"
	"diamonds/internal/worker"

	"github.com/nats-io/nats.go"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	conn, err := nats.Connect(cfg.NATSURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Fatalf("failed to connect nats: %v", err)
	}
	defer conn.Drain()

	users := store.NewUserStore(database)
	wallets := store.NewWalletStore(database)
	ledger := store.NewLedgerStore(database)
	transactions := store.NewTransactionStore(database)
	grants := store.NewGrantStore(database)
	transfers := store.NewTransferStore(database)
	gameResults := store.NewGameResultStore(database)
	admin := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)

	hub := websocket.NewHub()
	publisher := events.NewPublisher(conn)
	alerts := alert.NewNATSSink(conn, events.SubjectAdminAlert)

	gameVerifier := services.NewStoreGameVerifier(gameResults)
	activity := services.NewTenureActivityChecker(wallets)
	walletSvc := services.NewWalletService(txRunner, wallets, ledger, transactions, gameResults, gameVerifier, users, hub)
	grantSvc := services.NewGrantService(txRunner, grants, wallets, ledger, transactions, audit, publisher, hub, walletSvc)
	transferSvc := services.NewTransferService(txRunner, transfers, wallets, ledger, transactions, publisher, hub)
	reconcileSvc := services.NewReconcileService(txRunner, wallets, ledger, audit, activity, alerts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := worker.New(conn, grantSvc, transferSvc).Run(ctx); err != nil {
			log.Fatalf("worker error: %v", err)
		}
	}()
	go scheduler.New(grantSvc, transferSvc, reconcileSvc, reconcileSvc).Run(ctx)

	handler := handlers.New(txRunner, cfg, users, wallets, ledger, transfers, grants, transactions, admin, audit, walletSvc, transferSvc, grantSvc, reconcileSvc, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("diamonds API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

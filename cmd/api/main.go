package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/metrics"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	decimal.MarshalJSONWithoutQuotes = true

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start()

	manager := orders.NewManager(&orders.Repo{DB: db})
	router := httpx.NewRouter(metrics.NewServerMetrics(cfg.ServiceName))
	(&httpx.OrdersHandler{
		Orders:  manager,
		Guard:   auth.NewGuard(cfg.JWTSecret),
		Events:  prod,
		Idem:    &redisx.Idempotency{RDB: rdb},
		Service: cfg.ServiceName,
		Timeout: cfg.RequestTimeout,
	}).Register(router)
	(&httpx.ProductsHandler{Products: manager}).Register(router)
	(&httpx.ConfigHandler{PayPalClientID: cfg.PayPalClientID, GoogleAPIKey: cfg.GoogleAPIKey}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	// in-flight handlers are done; flush queued events
	prod.Close()
	prod.WaitClosed()
}

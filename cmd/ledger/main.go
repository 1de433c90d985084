package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	if err := run(config.Load()); err != nil {
		// the group resumes from the last committed offset on restart
		log.Fatalf("ledger: %v", err)
	}
	log.Println("ledger consumer stopped")
}

func run(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &inventory.Service{
		Ledger: &inventory.Repo{DB: db},
		Dedup:  &redisx.Dedup{RDB: rdb, Service: cfg.ServiceName + "-ledger"},
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.LedgerGroup, orders.TopicOrderPaid, cfg.LedgerWorkers)
	log.Printf("ledger consumer started: group=%s topic=%s workers=%d", cfg.LedgerGroup, orders.TopicOrderPaid, cfg.LedgerWorkers)
	return cons.Start(ctx, svc.HandleOrderPaid)
}

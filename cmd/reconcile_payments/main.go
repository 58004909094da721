package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/config"
	"github.com/mansoorceksport/smmpanel/internal/logger"
	"github.com/mansoorceksport/smmpanel/internal/repository"
	"github.com/mansoorceksport/smmpanel/internal/service"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	// Command line flags
	olderThan := flag.Duration("older-than", 15*time.Minute, "Only reconcile payments pending for longer than this")
	limit := flag.Int64("limit", 200, "Maximum number of payments to check")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall run timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Must("development").Fatal("failed to load config", zap.Error(err))
	}
	log := logger.Must(cfg.App.Env)
	defer log.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Connect to MongoDB
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDB.URI))
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDB.Database)
	users := repository.NewMongoUserRepository(db)
	payments := service.NewPaymentService(
		repository.NewMongoTxManager(client),
		repository.NewMongoPaymentRepository(db),
		repository.NewMongoOrderRepository(db),
		users,
		repository.NewMongoWebhookEventRepository(db),
		service.NewLedgerService(users, log),
		service.NewPaymentGateway(cfg.Chargily, cfg.App, log),
		service.PaymentURLs{FrontendURL: cfg.App.FrontendURL, BackendURL: cfg.App.BackendURL},
		nil,
		log,
	)

	log.Info("reconciling pending payments", zap.Duration("older_than", *olderThan), zap.Int64("limit", *limit))

	report, err := payments.ReconcilePending(ctx, *olderThan, *limit)
	if err != nil {
		log.Fatal("reconciliation failed", zap.Error(err))
	}

	fmt.Printf("checked=%d paid=%d failed=%d pending=%d errors=%d\n",
		report.Checked, report.Paid, report.Failed, report.Pending, report.Errors)
}

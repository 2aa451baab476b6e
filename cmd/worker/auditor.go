package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/photoli93/Projet-7/internal/config"
	"github.com/photoli93/Projet-7/internal/db"
	"github.com/photoli93/Projet-7/internal/kafka"
	"github.com/photoli93/Projet-7/internal/logger"
	"github.com/photoli93/Projet-7/internal/metrics"
	"github.com/photoli93/Projet-7/internal/repository"
	"github.com/photoli93/Projet-7/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var auditorCmd = &cobra.Command{
	Use:   "auditor",
	Short: "Consume prediction audit events and store them in ClickHouse",
	RunE:  runAuditor,
}

func runAuditor(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers must be set")
	}

	chDB, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, db.Opts{
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer chDB.Close()

	consumer := kafka.NewConsumer(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Audit.Topic,
		GroupID:        cfg.Kafka.GroupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewAuditor(consumer, repository.NewPredictionsRepository(chDB), log)
	if cfg.Auditor.BatchSize > 0 {
		w.BatchSize = cfg.Auditor.BatchSize
	}
	if cfg.Auditor.BatchWait > 0 {
		w.BatchWait = cfg.Auditor.BatchWait
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("auditor started",
		zap.String("topic", cfg.Audit.Topic),
		zap.String("group", cfg.Kafka.GroupID),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait),
	)

	return w.Run(ctx)
}

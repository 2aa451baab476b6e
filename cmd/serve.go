package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/photoli93/Projet-7/internal/audit"
	"github.com/photoli93/Projet-7/internal/cache"
	"github.com/photoli93/Projet-7/internal/config"
	"github.com/photoli93/Projet-7/internal/db"
	httpSrv "github.com/photoli93/Projet-7/internal/http"
	"github.com/photoli93/Projet-7/internal/kafka"
	"github.com/photoli93/Projet-7/internal/repository"
	"github.com/photoli93/Projet-7/internal/service/prediction"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP prediction server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := initLogger(cfg.Log)
		defer func() { _ = log.Sync() }()

		store, err := loadArtifacts(cmd.Context(), cfg, log)
		if err != nil {
			return fmt.Errorf("load artifacts: %w", err)
		}

		opts := []prediction.Option{prediction.WithLogger(log)}

		// prediction cache: in-process LRU, plus Redis when configured
		var tiers []cache.Cache
		if cfg.Cache.Size > 0 {
			lru, err := cache.NewLRU(cfg.Cache.Size)
			if err != nil {
				return err
			}
			tiers = append(tiers, lru)
		}
		if cfg.Redis.Addr != "" {
			rdb, err := db.NewRedisClient(db.RedisOpts{
				Addr:        cfg.Redis.Addr,
				Password:    cfg.Redis.Password,
				DB:          cfg.Redis.DB,
				DialTimeout: cfg.Redis.DialTimeout,
			})
			if err != nil {
				return fmt.Errorf("redis connect: %w", err)
			}
			defer func() { _ = rdb.Close() }()
			// keys are scoped to the loaded artifacts so replicas on another
			// model or table never read each other's entries
			prefix := cache.ArtifactPrefix(cfg.Cache.KeyPrefix, store.Fingerprint)
			tiers = append(tiers, cache.NewRedis(rdb, prefix, cfg.Cache.RedisTTL, log))
		}
		switch len(tiers) {
		case 1:
			opts = append(opts, prediction.WithCache(tiers[0]))
		case 2:
			opts = append(opts, prediction.WithCache(cache.NewTiered(tiers[0], tiers[1])))
		}

		// audit trail
		if cfg.Audit.Enabled {
			var pub *audit.KafkaPublisher
			producer := kafka.NewProducer(kafka.ProducerConfig{
				Brokers:    cfg.Kafka.Brokers,
				Topic:      cfg.Audit.Topic,
				OnDelivery: func(n int, err error) { pub.OnDelivery(n, err) },
			})
			defer func() { _ = producer.Close() }()
			breaker := audit.NewBreaker(cfg.Audit.Breaker.FailThreshold, time.Duration(cfg.Audit.Breaker.OpenForMs)*time.Millisecond)
			pub = audit.NewKafkaPublisher(producer, breaker, log)
			opts = append(opts, prediction.WithPublisher(pub))
		}

		// prediction history
		var history repository.PredictionsRepository
		if cfg.ClickHouse.DSN != "" {
			chDB, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, clickHouseOpts(cfg.ClickHouse))
			if err != nil {
				return fmt.Errorf("clickhouse connect: %w", err)
			}
			defer func() { _ = chDB.Close() }()
			history = repository.NewPredictionsRepository(chDB)
		}

		svc := prediction.New(store, opts...)
		server := httpSrv.NewServer(svc, history, log)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}

package cmd

import (
	"context"
	"fmt"

	"github.com/photoli93/Projet-7/internal/artifact"
	"github.com/photoli93/Projet-7/internal/config"
	"github.com/photoli93/Projet-7/internal/db"
	"github.com/photoli93/Projet-7/internal/logger"
	"github.com/photoli93/Projet-7/internal/repository"
	"go.uber.org/zap"
)

func initLogger(c config.LogConfig) *zap.Logger {
	return logger.Init(logger.Options{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	})
}

func featureStoreOpts(c config.FeaturesConfig) db.Opts {
	return db.Opts{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	}
}

func clickHouseOpts(c config.DatabaseConfig) db.Opts {
	return db.Opts{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	}
}

// loadArtifacts builds the store from the configured model and feature source.
func loadArtifacts(ctx context.Context, cfg config.Config, log *zap.Logger) (*artifact.Store, error) {
	opts := artifact.Options{
		ModelPath:   cfg.Model.Path,
		ModelFormat: cfg.Model.Format,
		DataPath:    cfg.Features.Path,
		IDColumn:    cfg.Features.IDColumn,
		Table:       cfg.Features.Table,
	}

	if cfg.Features.Source == "sql" {
		conn, err := db.NewFeatureStoreConnection(cfg.Features.Driver, cfg.Features.DSN, featureStoreOpts(cfg.Features))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", artifact.ErrDataLoad, err)
		}
		// the table is copied into memory; the connection is not needed afterwards
		defer conn.Close()
		opts.Source = repository.NewFeaturesRepository(conn)
	}

	return artifact.Load(ctx, opts, log)
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/photoli93/Projet-7/internal/metrics"
	"github.com/photoli93/Projet-7/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is the shared tier across replicas. Errors degrade to a miss.
type Redis struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedis(rdb redis.Cmdable, prefix string, ttl time.Duration, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl, log: log}
}

// ArtifactPrefix appends the artifact fingerprint to the configured prefix.
func ArtifactPrefix(prefix, fingerprint string) string {
	if fingerprint == "" {
		return prefix
	}
	return prefix + fingerprint + ":"
}

func (c *Redis) key(id int64) string {
	return c.prefix + strconv.FormatInt(id, 10)
}

func (c *Redis) Get(ctx context.Context, id int64) (model.PredictionResult, bool) {
	var r model.PredictionResult
	b, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues("redis", "miss").Inc()
		return r, false
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("redis", "error").Inc()
		c.log.Warn("redis cache get failed", zap.Int64("client_id", id), zap.Error(err))
		return r, false
	}
	if err := json.Unmarshal(b, &r); err != nil {
		metrics.CacheLookups.WithLabelValues("redis", "error").Inc()
		c.log.Warn("redis cache entry undecodable", zap.Int64("client_id", id), zap.Error(err))
		return r, false
	}
	metrics.CacheLookups.WithLabelValues("redis", "hit").Inc()
	return r, true
}

func (c *Redis) Set(ctx context.Context, id int64, r model.PredictionResult) {
	b, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(id), b, c.ttl).Err(); err != nil {
		c.log.Warn("redis cache set failed", zap.Int64("client_id", id), zap.Error(err))
	}
}

// Package cache memoizes prediction results per client id. Artifacts are
// immutable for the life of the process, so entries never go stale.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/photoli93/Projet-7/internal/metrics"
	"github.com/photoli93/Projet-7/internal/model"
)

type Cache interface {
	Get(ctx context.Context, id int64) (model.PredictionResult, bool)
	Set(ctx context.Context, id int64, r model.PredictionResult)
}

// Nop never hits.
type Nop struct{}

func (Nop) Get(context.Context, int64) (model.PredictionResult, bool) {
	return model.PredictionResult{}, false
}
func (Nop) Set(context.Context, int64, model.PredictionResult) {}

// LRU is the in-process tier.
type LRU struct {
	c *lru.Cache[int64, model.PredictionResult]
}

func NewLRU(size int) (*LRU, error) {
	c, err := lru.New[int64, model.PredictionResult](size)
	if err != nil {
		return nil, fmt.Errorf("lru cache: %w", err)
	}
	return &LRU{c: c}, nil
}

func (l *LRU) Get(_ context.Context, id int64) (model.PredictionResult, bool) {
	r, ok := l.c.Get(id)
	metrics.CacheLookups.WithLabelValues("lru", hitOrMiss(ok)).Inc()
	return r, ok
}

func (l *LRU) Set(_ context.Context, id int64, r model.PredictionResult) {
	l.c.Add(id, r)
}

func (l *LRU) Len() int { return l.c.Len() }

// Tiered reads l1 then l2; an l2 hit is copied into l1.
type Tiered struct {
	l1, l2 Cache
}

func NewTiered(l1, l2 Cache) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

func (t *Tiered) Get(ctx context.Context, id int64) (model.PredictionResult, bool) {
	if r, ok := t.l1.Get(ctx, id); ok {
		return r, true
	}
	r, ok := t.l2.Get(ctx, id)
	if ok {
		t.l1.Set(ctx, id, r)
	}
	return r, ok
}

func (t *Tiered) Set(ctx context.Context, id int64, r model.PredictionResult) {
	t.l1.Set(ctx, id, r)
	t.l2.Set(ctx, id, r)
}

func hitOrMiss(ok bool) string {
	if ok {
		return "hit"
	}
	return "miss"
}

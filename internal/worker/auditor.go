package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/photoli93/Projet-7/internal/kafka"
	"github.com/photoli93/Projet-7/internal/metrics"
	"github.com/photoli93/Projet-7/internal/model"
	"go.uber.org/zap"
)

// Source is the audit topic; *kafka.Consumer satisfies it.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// Sink stores decoded events; repository.PredictionsRepository satisfies it.
type Sink interface {
	InsertBatch(ctx context.Context, events []model.PredictionEvent) error
}

// Auditor:
// - fetches prediction events from Kafka on one goroutine,
// - decodes them in fetch order on the batch writer,
// - batch-inserts into ClickHouse and commits offsets only after the insert.
//
// Offsets are committed as whole batches in fetch order, so a commit never
// runs ahead of an earlier message that is still pending.
type Auditor struct {
	Source Source
	Sink   Sink
	Log    *zap.Logger

	BatchSize int
	BatchWait time.Duration

	// FetchBackoff is the pause after a failed fetch.
	FetchBackoff time.Duration
}

func NewAuditor(src Source, sink Sink, log *zap.Logger) *Auditor {
	return &Auditor{
		Source:       src,
		Sink:         sink,
		Log:          log,
		BatchSize:    500,
		BatchWait:    time.Second,
		FetchBackoff: 200 * time.Millisecond,
	}
}

// Run blocks until ctx is cancelled and the last batch is flushed.
func (a *Auditor) Run(ctx context.Context) error {
	if a.Source == nil || a.Sink == nil {
		return errors.New("auditor: source and sink are required")
	}
	if a.Log == nil {
		a.Log = zap.NewNop()
	}
	if a.BatchSize <= 0 {
		a.BatchSize = 500
	}
	if a.BatchWait <= 0 {
		a.BatchWait = time.Second
	}

	msgCh := make(chan kafka.Message, a.BatchSize)

	fetcherDone := make(chan struct{})
	go func() {
		defer close(fetcherDone)
		defer close(msgCh)
		for {
			m, err := a.Source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				a.Log.Warn("audit fetch failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(a.FetchBackoff):
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	a.runBatchWriter(ctx, msgCh)
	<-fetcherDone
	return nil
}

// decode returns nil for poison messages; they are committed and skipped.
func decode(m kafka.Message, log *zap.Logger) *model.PredictionEvent {
	var e model.PredictionEvent
	if err := json.Unmarshal(m.Value, &e); err != nil || e.ID == "" {
		metrics.AuditEvents.WithLabelValues("invalid").Inc()
		log.Warn("skipping undecodable audit event",
			zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	return &e
}

// runBatchWriter flushes on size or tick. A failed insert keeps the batch and
// leaves offsets uncommitted; retries then wait for the ticker, and intake
// pauses once the pending batch is full.
func (a *Auditor) runBatchWriter(ctx context.Context, in <-chan kafka.Message) {
	tick := time.NewTicker(a.BatchWait)
	defer tick.Stop()

	var (
		events  []model.PredictionEvent
		msgs    []kafka.Message
		failing bool
	)

	flush := func(ctx context.Context) bool {
		if len(msgs) == 0 {
			return true
		}
		if len(events) > 0 {
			if err := a.Sink.InsertBatch(ctx, events); err != nil {
				a.Log.Error("audit batch insert failed", zap.Int("events", len(events)), zap.Error(err))
				return false
			}
		}
		if err := a.Source.Commit(ctx, msgs...); err != nil {
			// redelivered rows collapse on the event id
			a.Log.Error("audit commit failed", zap.Int("messages", len(msgs)), zap.Error(err))
		}
		metrics.AuditEvents.WithLabelValues("stored").Add(float64(len(events)))
		a.Log.Debug("audit batch flushed", zap.Int("events", len(events)), zap.Int("messages", len(msgs)))
		events = events[:0]
		msgs = msgs[:0]
		return true
	}

	// final flush runs after cancellation
	drain := func() {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		flush(fctx)
	}

	for {
		recv, done := in, (<-chan struct{})(nil)
		if failing && len(msgs) >= a.BatchSize {
			recv, done = nil, ctx.Done()
		}

		select {
		case m, ok := <-recv:
			if !ok {
				drain()
				return
			}
			msgs = append(msgs, m)
			if e := decode(m, a.Log); e != nil {
				events = append(events, *e)
			}
			if !failing && len(msgs) >= a.BatchSize {
				failing = !flush(ctx)
			}
		case <-tick.C:
			if ctx.Err() == nil {
				failing = !flush(ctx)
			}
		case <-done:
			drain()
			return
		}
	}
}

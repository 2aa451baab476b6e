// Package audit publishes one event per served prediction. Publishing is
// best effort and never fails the request that produced the event.
package audit

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/photoli93/Projet-7/internal/metrics"
	"github.com/photoli93/Projet-7/internal/model"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, e model.PredictionEvent)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, model.PredictionEvent) {}

// Producer is the transport; internal/kafka.Producer satisfies it.
type Producer interface {
	Publish(ctx context.Context, key, value []byte) error
}

type KafkaPublisher struct {
	producer Producer
	breaker  *Breaker
	log      *zap.Logger
}

func NewKafkaPublisher(producer Producer, breaker *Breaker, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{producer: producer, breaker: breaker, log: log}
}

// Publish keys the message by client id so a client's events stay ordered
// within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, e model.PredictionEvent) {
	if !p.breaker.Allow() {
		metrics.AuditEvents.WithLabelValues("dropped").Inc()
		return
	}
	body, err := json.Marshal(e)
	if err != nil {
		metrics.AuditEvents.WithLabelValues("failed").Inc()
		p.log.Error("encode audit event", zap.String("id", e.ID), zap.Error(err))
		return
	}
	if err := p.producer.Publish(ctx, []byte(strconv.FormatInt(e.ClientID, 10)), body); err != nil {
		p.breaker.OnFailure()
		metrics.AuditEvents.WithLabelValues("failed").Inc()
		p.log.Warn("publish audit event", zap.String("id", e.ID), zap.Error(err))
		return
	}
	metrics.AuditEvents.WithLabelValues("published").Inc()
}

// OnDelivery feeds async delivery reports back into the breaker.
func (p *KafkaPublisher) OnDelivery(count int, err error) {
	if err != nil {
		p.breaker.OnFailure()
		metrics.AuditEvents.WithLabelValues("failed").Add(float64(count))
		p.log.Warn("audit batch not delivered", zap.Int("count", count), zap.Error(err))
		return
	}
	p.breaker.OnSuccess()
}

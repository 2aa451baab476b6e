package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/photoli93/Projet-7/internal/model"
)

// PredictionsRepository stores and lists audit events in ClickHouse.
type PredictionsRepository interface {
	InsertBatch(ctx context.Context, events []model.PredictionEvent) error
	ListByClient(ctx context.Context, clientID int64, limit, offset int) ([]model.PredictionEvent, error)
}

type predictionsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewPredictionsRepository(ch *sqlx.DB) PredictionsRepository {
	return &predictionsRepository{ch: ch}
}

// InsertBatch sends events as one ClickHouse block (prepare + exec per row + commit).
func (r *predictionsRepository) InsertBatch(ctx context.Context, events []model.PredictionEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scoring.predictions
		    (id, client_id, prediction, prediction_proba, cached, latency_ms, created_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.ClientID, uint8(e.Prediction), e.PredictionProba, e.Cached, e.LatencyMs, e.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("append %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (r *predictionsRepository) ListByClient(ctx context.Context, clientID int64, limit, offset int) ([]model.PredictionEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT id, client_id, prediction, prediction_proba, cached, latency_ms, created_at
		FROM scoring.predictions FINAL
		WHERE client_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	var rows []model.PredictionEvent
	if err := r.ch.SelectContext(ctx, &rows, q, clientID, limit, offset); err != nil {
		return nil, err
	}
	return rows, nil
}

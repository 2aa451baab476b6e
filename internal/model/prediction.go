package model

import (
	"math"
	"strconv"
	"time"
)

// Probability is serialized with a fractional part so clients always see a
// JSON float (1.0, never 1).
type Probability float64

func (p Probability) MarshalJSON() ([]byte, error) {
	f := float64(p)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	b := strconv.AppendFloat(nil, f, 'f', -1, 64)
	if f == math.Trunc(f) {
		b = append(b, '.', '0')
	}
	return b, nil
}

// PredictionResult is the /predict success body.
type PredictionResult struct {
	ClientID        int64       `json:"client_id"`
	Prediction      int         `json:"prediction"` // 0|1
	PredictionProba Probability `json:"prediction_proba"`
}

// ErrorResult is the body of every per-request failure.
type ErrorResult struct {
	Error string `json:"error"`
}

// PredictionEvent is the audit record published after each served prediction.
type PredictionEvent struct {
	ID              string    `json:"id" db:"id"` // ULID
	ClientID        int64     `json:"client_id" db:"client_id"`
	Prediction      int       `json:"prediction" db:"prediction"`
	PredictionProba float64   `json:"prediction_proba" db:"prediction_proba"`
	Cached          bool      `json:"cached" db:"cached"`
	LatencyMs       float64   `json:"latency_ms" db:"latency_ms"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

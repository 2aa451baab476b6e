package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// Logistic is a linear model exported as
// {"feature_names": [...], "intercept": b, "coefficients": [...], "threshold": 0.5}.
type Logistic struct {
	featureNames []string
	intercept    float64
	coef         []float64
	threshold    float64
}

type logisticArtifact struct {
	FeatureNames []string  `json:"feature_names"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Threshold    *float64  `json:"threshold"`
}

func DecodeLogistic(r io.Reader) (*Logistic, error) {
	var a logisticArtifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode logistic model: %w", err)
	}
	if len(a.Coefficients) == 0 {
		return nil, errors.New("logistic: no coefficients")
	}
	if len(a.FeatureNames) != 0 && len(a.FeatureNames) != len(a.Coefficients) {
		return nil, fmt.Errorf("logistic: %d feature names for %d coefficients", len(a.FeatureNames), len(a.Coefficients))
	}
	threshold := 0.5
	if a.Threshold != nil {
		threshold = *a.Threshold
		if threshold < 0 || threshold > 1 {
			return nil, fmt.Errorf("logistic: threshold %v outside [0,1]", threshold)
		}
	}
	return &Logistic{
		featureNames: a.FeatureNames,
		intercept:    a.Intercept,
		coef:         a.Coefficients,
		threshold:    threshold,
	}, nil
}

func (m *Logistic) FeatureNames() []string { return m.featureNames }

func (m *Logistic) PredictProba(rows [][]float64) ([][2]float64, error) {
	if err := checkWidth(rows, len(m.coef)); err != nil {
		return nil, err
	}
	out := make([][2]float64, len(rows))
	for i, row := range rows {
		z := m.intercept
		for j, x := range row {
			// missing values contribute nothing
			if math.IsNaN(x) {
				continue
			}
			z += m.coef[j] * x
		}
		p := sigmoid(z)
		out[i] = [2]float64{1 - p, p}
	}
	return out, nil
}

func (m *Logistic) Predict(rows [][]float64) ([]int, error) {
	proba, err := m.PredictProba(rows)
	if err != nil {
		return nil, err
	}
	return labelsFromProba(proba, m.threshold), nil
}

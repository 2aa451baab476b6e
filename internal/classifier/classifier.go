// Package classifier holds the binary classifiers the service can serve.
//
// A classifier is deserialized once and then only read, so every
// implementation here is safe for concurrent use.
package classifier

import (
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	FormatLightGBM = "lightgbm"
	FormatLogistic = "logistic"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported model format")
	ErrFeatureCount      = errors.New("feature count mismatch")
)

// Classifier predicts over rows laid out in FeatureNames order.
type Classifier interface {
	// FeatureNames returns the training-time column order, or nil when the
	// artifact does not record it.
	FeatureNames() []string
	// Predict returns one label in {0,1} per row.
	Predict(rows [][]float64) ([]int, error)
	// PredictProba returns [P(0), P(1)] per row.
	PredictProba(rows [][]float64) ([][2]float64, error)
}

// Decode reads a serialized classifier of the given format.
func Decode(format string, r io.Reader) (Classifier, error) {
	switch format {
	case FormatLightGBM:
		return DecodeLightGBM(r)
	case FormatLogistic:
		return DecodeLogistic(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// labelsFromProba mirrors argmax over [1-p, p]: ties go to class 0.
func labelsFromProba(proba [][2]float64, threshold float64) []int {
	labels := make([]int, len(proba))
	for i, p := range proba {
		if p[1] > threshold {
			labels[i] = 1
		}
	}
	return labels
}

func checkWidth(rows [][]float64, want int) error {
	for i, row := range rows {
		if len(row) != want {
			return fmt.Errorf("%w: row %d has %d values, model expects %d", ErrFeatureCount, i, len(row), want)
		}
	}
	return nil
}

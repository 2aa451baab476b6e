// Package prediction answers home and predict requests against the loaded
// artifacts.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/photoli93/Projet-7/internal/artifact"
	"github.com/photoli93/Projet-7/internal/audit"
	"github.com/photoli93/Projet-7/internal/cache"
	"github.com/photoli93/Projet-7/internal/metrics"
	"github.com/photoli93/Projet-7/internal/model"
	"github.com/photoli93/Projet-7/internal/util"
	"go.uber.org/zap"
)

const homeGreeting = "Bienvenue sur la page d'accueil! Un client ID : "

// Rand is the source used to pick the home page client id.
type Rand interface {
	IntN(n int) int
}

type Option func(*Service)

func WithRand(r Rand) Option { return func(s *Service) { s.rnd = r } }

func WithCache(c cache.Cache) Option { return func(s *Service) { s.cache = c } }

func WithPublisher(p audit.Publisher) Option { return func(s *Service) { s.pub = p } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func withClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// Service is built once at startup and shared by all requests. Only the
// random source is mutable and it is guarded by rndMu.
type Service struct {
	store *artifact.Store
	cache cache.Cache
	pub   audit.Publisher
	log   *zap.Logger
	now   func() time.Time

	rndMu sync.Mutex
	rnd   Rand
}

func New(store *artifact.Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		cache: cache.Nop{},
		pub:   audit.Nop{},
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Home returns the greeting with one client id drawn uniformly from the table.
func (s *Service) Home() (string, error) {
	tbl := s.store.Features
	n := tbl.Len()
	if n == 0 {
		return "", ErrEmptyDataset
	}
	s.rndMu.Lock()
	i := s.rnd.IntN(n)
	s.rndMu.Unlock()

	return homeGreeting + strconv.FormatInt(tbl.IDAt(i), 10), nil
}

// Predict scores the client identified by rawID. Absent and non-integer ids
// both yield ErrMissingClientID.
func (s *Service) Predict(ctx context.Context, rawID string) (model.PredictionResult, error) {
	start := s.now()

	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues("missing_id").Inc()
		return model.PredictionResult{}, ErrMissingClientID
	}
	s.log.Info("predict request", zap.Int64("client_id", id))

	// the loaded table decides existence; the cache only saves inference
	row, ok := s.store.Features.Lookup(id)
	if !ok {
		metrics.PredictionsTotal.WithLabelValues("not_found").Inc()
		return model.PredictionResult{}, &ClientNotFoundError{ID: id}
	}

	if res, ok := s.cache.Get(ctx, id); ok {
		metrics.PredictionsTotal.WithLabelValues("ok").Inc()
		s.publish(ctx, res, true, start)
		return res, nil
	}

	label, proba, err := s.infer(row)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues("inference_error").Inc()
		s.log.Error("inference failed", zap.Int64("client_id", id), zap.Error(err))
		return model.PredictionResult{}, &InferenceError{ClientID: id, Err: err}
	}

	res := model.PredictionResult{
		ClientID:        id,
		Prediction:      label,
		PredictionProba: model.Probability(proba),
	}
	s.cache.Set(ctx, id, res)
	metrics.PredictionsTotal.WithLabelValues("ok").Inc()
	s.publish(ctx, res, false, start)
	return res, nil
}

// infer projects row onto the classifier's declared feature names (the full
// row, id included, when it declares none) and checks the outputs.
func (s *Service) infer(row []float64) (int, float64, error) {
	clf := s.store.Classifier
	x := row
	if names := clf.FeatureNames(); len(names) > 0 {
		var err error
		if x, err = s.store.Features.Project(row, names); err != nil {
			return 0, 0, err
		}
	}
	rows := [][]float64{x}

	t := time.Now()
	labels, err := clf.Predict(rows)
	if err != nil {
		return 0, 0, err
	}
	proba, err := clf.PredictProba(rows)
	if err != nil {
		return 0, 0, err
	}
	metrics.InferenceDuration.Observe(time.Since(t).Seconds())

	if len(labels) == 0 || len(proba) == 0 {
		return 0, 0, errors.New("classifier returned no output")
	}
	label, p := labels[0], proba[0][1]
	if label != 0 && label != 1 {
		return 0, 0, fmt.Errorf("label %d is not binary", label)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, 0, fmt.Errorf("probability %v outside [0,1]", p)
	}
	return label, p, nil
}

func (s *Service) publish(ctx context.Context, res model.PredictionResult, cached bool, start time.Time) {
	now := s.now()
	s.pub.Publish(context.WithoutCancel(ctx), model.PredictionEvent{
		ID:              util.NewULID(now),
		ClientID:        res.ClientID,
		Prediction:      res.Prediction,
		PredictionProba: float64(res.PredictionProba),
		Cached:          cached,
		LatencyMs:       float64(now.Sub(start).Microseconds()) / 1000,
		CreatedAt:       now.UTC(),
	})
}

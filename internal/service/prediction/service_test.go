package prediction

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/photoli93/Projet-7/internal/artifact"
	"github.com/photoli93/Projet-7/internal/cache"
	"github.com/photoli93/Projet-7/internal/features"
	"github.com/photoli93/Projet-7/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const idCol = "num__SK_ID_CURR"

// fakeClassifier always predicts label with probability p for class 1.
type fakeClassifier struct {
	names []string
	label int
	p     float64
	err   error
	calls int
	seen  [][]float64
}

func (f *fakeClassifier) FeatureNames() []string { return f.names }

func (f *fakeClassifier) Predict(rows [][]float64) ([]int, error) {
	f.calls++
	f.seen = rows
	if f.err != nil {
		return nil, f.err
	}
	out := make([]int, len(rows))
	for i := range out {
		out[i] = f.label
	}
	return out, nil
}

func (f *fakeClassifier) PredictProba(rows [][]float64) ([][2]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][2]float64, len(rows))
	for i := range out {
		out[i] = [2]float64{1 - f.p, f.p}
	}
	return out, nil
}

func newStore(t *testing.T, clf *fakeClassifier, csv string) *artifact.Store {
	t.Helper()
	tbl, err := features.ReadCSV(strings.NewReader(csv), idCol)
	require.NoError(t, err)
	return &artifact.Store{Classifier: clf, Features: tbl}
}

const threeClients = "num__SK_ID_CURR,num__AMT_CREDIT,num__EXT_SOURCE_2\n1001,0.2,0.5\n1002,0.9,\n1003,0.4,0.1\n"

func TestPredict_Found(t *testing.T) {
	clf := &fakeClassifier{label: 1, p: 0.7}
	svc := New(newStore(t, clf, threeClients))

	res, err := svc.Predict(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, model.PredictionResult{ClientID: 1001, Prediction: 1, PredictionProba: 0.7}, res)

	// no declared names: the full row, id included
	assert.Equal(t, [][]float64{{1001, 0.2, 0.5}}, clf.seen)
}

func TestPredict_NotFound(t *testing.T) {
	svc := New(newStore(t, &fakeClassifier{label: 1, p: 0.7}, threeClients))

	_, err := svc.Predict(context.Background(), "9999")
	var nf *ClientNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(9999), nf.ID)
	assert.Equal(t, "Client ID 9999 non trouvé", err.Error())
}

func TestPredict_MissingOrInvalidID(t *testing.T) {
	svc := New(newStore(t, &fakeClassifier{label: 1, p: 0.7}, threeClients))

	for _, raw := range []string{"", "   ", "abc", "1001.5", "1e3", "99999999999999999999"} {
		_, err := svc.Predict(context.Background(), raw)
		assert.ErrorIs(t, err, ErrMissingClientID, "raw=%q", raw)
	}

	res, err := svc.Predict(context.Background(), " 1002 ")
	require.NoError(t, err)
	assert.Equal(t, int64(1002), res.ClientID)
}

func TestPredict_ProjectsOntoFeatureNames(t *testing.T) {
	clf := &fakeClassifier{names: []string{"num__EXT_SOURCE_2", "num__AMT_CREDIT"}, label: 0, p: 0.1}
	svc := New(newStore(t, clf, threeClients))

	_, err := svc.Predict(context.Background(), "1003")
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.1, 0.4}}, clf.seen)
}

func TestPredict_InferenceErrors(t *testing.T) {
	cases := map[string]*fakeClassifier{
		"unknown column":   {names: []string{"num__MISSING"}, label: 1, p: 0.7},
		"classifier error": {err: errors.New("expected 5 features")},
		"non binary label": {label: 2, p: 0.7},
		"probability > 1":  {label: 1, p: 1.5},
		"probability NaN":  {label: 1, p: math.NaN()},
	}
	for name, clf := range cases {
		t.Run(name, func(t *testing.T) {
			svc := New(newStore(t, clf, threeClients))
			_, err := svc.Predict(context.Background(), "1001")

			assert.ErrorIs(t, err, ErrInference)
			var ie *InferenceError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, int64(1001), ie.ClientID)
			assert.True(t, strings.HasPrefix(err.Error(), "feature schema mismatch: "))
		})
	}
}

func TestPredict_Idempotent(t *testing.T) {
	svc := New(newStore(t, &fakeClassifier{label: 1, p: 0.7}, threeClients))

	first, err := svc.Predict(context.Background(), "1003")
	require.NoError(t, err)
	for range 5 {
		again, err := svc.Predict(context.Background(), "1003")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPredict_UsesCache(t *testing.T) {
	lru, err := cache.NewLRU(8)
	require.NoError(t, err)
	clf := &fakeClassifier{label: 1, p: 0.7}
	svc := New(newStore(t, clf, threeClients), WithCache(lru))

	a, err := svc.Predict(context.Background(), "1001")
	require.NoError(t, err)
	b, err := svc.Predict(context.Background(), "1001")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, clf.calls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.PredictionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e model.PredictionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func TestPredict_PublishesAuditEvents(t *testing.T) {
	lru, err := cache.NewLRU(8)
	require.NoError(t, err)
	pub := &recordingPublisher{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := New(newStore(t, &fakeClassifier{label: 1, p: 0.7}, threeClients),
		WithCache(lru), WithPublisher(pub), withClock(func() time.Time { return now }))

	_, err = svc.Predict(context.Background(), "1001")
	require.NoError(t, err)
	_, err = svc.Predict(context.Background(), "1001")
	require.NoError(t, err)
	_, _ = svc.Predict(context.Background(), "9999")
	_, _ = svc.Predict(context.Background(), "")

	require.Len(t, pub.events, 2, "only served predictions are audited")
	e := pub.events[0]
	assert.Equal(t, int64(1001), e.ClientID)
	assert.Equal(t, 1, e.Prediction)
	assert.Equal(t, 0.7, e.PredictionProba)
	assert.False(t, e.Cached)
	assert.Equal(t, now, e.CreatedAt)
	assert.Len(t, e.ID, 26)

	assert.True(t, pub.events[1].Cached)
	assert.NotEqual(t, e.ID, pub.events[1].ID)
}

type fixedRand struct{ i int }

func (r fixedRand) IntN(n int) int { return r.i % n }

func TestHome(t *testing.T) {
	store := newStore(t, &fakeClassifier{}, threeClients)

	msg, err := New(store, WithRand(fixedRand{i: 1})).Home()
	require.NoError(t, err)
	assert.Equal(t, "Bienvenue sur la page d'accueil! Un client ID : 1002", msg)

	msg, err = New(store).Home()
	require.NoError(t, err)
	assert.Regexp(t, `: (1001|1002|1003)$`, msg)
}

func TestHome_EmptyDataset(t *testing.T) {
	svc := New(newStore(t, &fakeClassifier{}, "num__SK_ID_CURR,x\n"))

	_, err := svc.Home()
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestPredict_CachedIDMissingFromTableIsNotFound(t *testing.T) {
	lru, err := cache.NewLRU(8)
	require.NoError(t, err)
	// left over from a previous table
	lru.Set(context.Background(), 9999, model.PredictionResult{ClientID: 9999, Prediction: 1, PredictionProba: 0.9})

	pub := &recordingPublisher{}
	clf := &fakeClassifier{label: 1, p: 0.7}
	svc := New(newStore(t, clf, threeClients), WithCache(lru), WithPublisher(pub))

	_, err = svc.Predict(context.Background(), "9999")
	var nf *ClientNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(9999), nf.ID)
	assert.Zero(t, clf.calls)
	assert.Empty(t, pub.events)
}

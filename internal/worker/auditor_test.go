package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/photoli93/Projet-7/internal/kafka"
	"github.com/photoli93/Projet-7/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanSource serves queued messages then blocks until ctx is done.
type chanSource struct {
	ch chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func newChanSource(msgs ...kafka.Message) *chanSource {
	s := &chanSource{ch: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		s.ch <- m
	}
	return s
}

func (s *chanSource) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-s.ch:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (s *chanSource) Commit(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

func (s *chanSource) committedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

func (s *chanSource) committedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed)
}

type memSink struct {
	mu      sync.Mutex
	events  []model.PredictionEvent
	fail    int // number of inserts to fail first
	failAll bool
	calls   int
	sizes   []int
}

func (s *memSink) InsertBatch(_ context.Context, events []model.PredictionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.sizes = append(s.sizes, len(events))
	if s.failAll || s.fail > 0 {
		s.fail--
		return errors.New("clickhouse unavailable")
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *memSink) stats() (calls int, sizes []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]int(nil), s.sizes...)
}

func (s *memSink) stored() []model.PredictionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PredictionEvent(nil), s.events...)
}

func eventMsg(t *testing.T, offset int64, id string, client int64) kafka.Message {
	t.Helper()
	b, err := json.Marshal(model.PredictionEvent{ID: id, ClientID: client, Prediction: 1, PredictionProba: 0.7})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func runAuditor(t *testing.T, a *Auditor) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("auditor did not stop")
		}
	}
}

func TestAuditor_StoresAndCommits(t *testing.T) {
	src := newChanSource(
		eventMsg(t, 1, "a", 1001),
		eventMsg(t, 2, "b", 1002),
		kafka.Message{Offset: 3, Value: []byte("not json")},
		eventMsg(t, 4, "c", 1003),
	)
	sink := &memSink{}
	a := NewAuditor(src, sink, nil)
	a.BatchSize = 4
	a.BatchWait = 20 * time.Millisecond

	stop := runAuditor(t, a)
	require.Eventually(t, func() bool { return src.committedCount() == 4 }, 2*time.Second, 10*time.Millisecond)
	stop()

	ids := map[string]bool{}
	for _, e := range sink.stored() {
		ids[e.ID] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, ids)
}

func TestAuditor_RetriesFailedInsertBeforeCommit(t *testing.T) {
	src := newChanSource(eventMsg(t, 1, "a", 1001))
	sink := &memSink{fail: 1}
	a := NewAuditor(src, sink, nil)
	a.BatchSize = 10
	a.BatchWait = 20 * time.Millisecond

	stop := runAuditor(t, a)
	require.Eventually(t, func() bool { return len(sink.stored()) == 1 }, 2*time.Second, 10*time.Millisecond)
	stop()

	assert.GreaterOrEqual(t, sink.calls, 2)
	assert.Equal(t, 1, src.committedCount())
}

func TestAuditor_FlushesOnShutdown(t *testing.T) {
	src := newChanSource(eventMsg(t, 1, "a", 1001))
	sink := &memSink{}
	a := NewAuditor(src, sink, nil)
	a.BatchSize = 100
	a.BatchWait = time.Hour

	stop := runAuditor(t, a)
	// let the fetcher hand the message over before cancelling
	require.Eventually(t, func() bool { return len(src.ch) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	stop()

	assert.Len(t, sink.stored(), 1)
	assert.Equal(t, 1, src.committedCount())
}

func TestAuditor_RequiresDeps(t *testing.T) {
	err := (&Auditor{}).Run(context.Background())
	assert.Error(t, err)
}

func TestAuditor_FailingSinkRetriesOnTickAndPausesIntake(t *testing.T) {
	msgs := make([]kafka.Message, 200)
	for i := range msgs {
		msgs[i] = eventMsg(t, int64(i), fmt.Sprintf("e%d", i), 1001)
	}
	src := newChanSource(msgs...)
	sink := &memSink{failAll: true}
	a := NewAuditor(src, sink, nil)
	a.BatchSize = 10
	a.BatchWait = 50 * time.Millisecond

	stop := runAuditor(t, a)
	time.Sleep(300 * time.Millisecond)
	calls, sizes := sink.stats()
	backlog := len(src.ch)
	stop()

	// one size-triggered attempt, then one per tick
	assert.LessOrEqual(t, calls, 1+int(300*time.Millisecond/a.BatchWait)+1)
	for _, n := range sizes {
		assert.LessOrEqual(t, n, a.BatchSize)
	}
	// the pending batch plus the fetch buffer, nothing more
	assert.GreaterOrEqual(t, backlog, len(msgs)-2*a.BatchSize-1)
	assert.Zero(t, src.committedCount())
}

func TestAuditor_CommitsInFetchOrder(t *testing.T) {
	var msgs []kafka.Message
	for i := 0; i < 50; i++ {
		if i%9 == 4 {
			msgs = append(msgs, kafka.Message{Offset: int64(i), Value: []byte("{")})
			continue
		}
		msgs = append(msgs, eventMsg(t, int64(i), fmt.Sprintf("e%d", i), 1001))
	}
	src := newChanSource(msgs...)
	sink := &memSink{fail: 2}
	a := NewAuditor(src, sink, nil)
	a.BatchSize = 7
	a.BatchWait = 10 * time.Millisecond

	stop := runAuditor(t, a)
	require.Eventually(t, func() bool { return src.committedCount() == len(msgs) }, 3*time.Second, 10*time.Millisecond)
	stop()

	want := make([]int64, len(msgs))
	for i := range want {
		want[i] = int64(i)
	}
	// any gap would mean a higher offset was committed ahead of a lower one
	assert.Equal(t, want, src.committedOffsets())

	stored := sink.stored()
	for i := 1; i < len(stored); i++ {
		assert.Less(t, idOffset(t, stored[i-1].ID), idOffset(t, stored[i].ID))
	}
}

func idOffset(t *testing.T, id string) int {
	t.Helper()
	n, err := strconv.Atoi(strings.TrimPrefix(id, "e"))
	require.NoError(t, err)
	return n
}

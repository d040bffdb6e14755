package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/acdc/internal/analysis"
	"github.com/matthewbaird/acdc/internal/clock"
)

type fakeStream struct {
	msgs   chan analysis.Status
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		msgs:   make(chan analysis.Status),
		errs:   make(chan error),
		closed: make(chan struct{}),
	}
}

func (s *fakeStream) Recv(ctx context.Context) (analysis.Status, error) {
	select {
	case st := <-s.msgs:
		return st, nil
	case err := <-s.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// fakeDialer hands out queued streams; a nil entry fails the dial.
type fakeDialer struct {
	mu      sync.Mutex
	streams []*fakeStream
	ids     []string
	dialed  chan string
}

func newFakeDialer(streams ...*fakeStream) *fakeDialer {
	return &fakeDialer{streams: streams, dialed: make(chan string, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, id string) (Stream, error) {
	d.mu.Lock()
	d.ids = append(d.ids, id)
	var s *fakeStream
	if len(d.streams) > 0 {
		s, d.streams = d.streams[0], d.streams[1:]
	}
	d.mu.Unlock()
	d.dialed <- id
	if s == nil {
		return nil, errors.New("connection refused")
	}
	return s, nil
}

type fakeSession struct {
	mu sync.Mutex
	id string
}

func (s *fakeSession) AnalysisID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *fakeSession) set(id string) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

type fakeEval struct {
	started  int
	canceled int
	err      error
}

func (f *fakeEval) StartEvaluation(ctx context.Context, doc *analysis.Document) error {
	f.started++
	return f.err
}

func (f *fakeEval) CancelEvaluation(ctx context.Context) error {
	f.canceled++
	return f.err
}

func runMonitor(t *testing.T, m *Monitor) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func status(id int, state string, progress int) analysis.Status {
	return analysis.Status{{ID: id, State: state, Progress: progress}}
}

func TestMonitor_SnapshotsReplace(t *testing.T) {
	s := newFakeStream()
	d := newFakeDialer(s)
	m := New(Config{Dialer: d, Session: &fakeSession{id: "a1"}, Clock: clock.NewFake(time.Unix(0, 0))})
	cancel, done := runMonitor(t, m)

	assert.Equal(t, "a1", <-d.dialed)
	assert.Nil(t, m.Latest())

	s.msgs <- status(1, analysis.StateRunning, 10)
	assert.Equal(t, status(1, analysis.StateRunning, 10), <-m.Updates())

	s.msgs <- status(1, analysis.StateRunning, 50)
	s.msgs <- status(1, analysis.StateComplete, 100)
	assert.Eventually(t, func() bool {
		return m.Latest().Done()
	}, time.Second, time.Millisecond)
	assert.True(t, m.Connected())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	<-s.closed
}

func TestMonitor_UpdatesKeepNewest(t *testing.T) {
	m := New(Config{Session: &fakeSession{}})
	m.publish(status(1, analysis.StateRunning, 10))
	m.publish(status(1, analysis.StateRunning, 20))
	m.publish(status(1, analysis.StateRunning, 30))

	assert.Equal(t, status(1, analysis.StateRunning, 30), <-m.Updates())
	assert.Empty(t, m.Updates())
	assert.Equal(t, status(1, analysis.StateRunning, 30), m.Latest())
}

func TestMonitor_ReconnectsWithBackoff(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	first, second := newFakeStream(), newFakeStream()
	d := newFakeDialer(first, nil, nil, second)
	m := New(Config{
		Dialer:  d,
		Session: &fakeSession{id: "a1"},
		Clock:   clk,
		Backoff: Backoff{Initial: 100 * time.Millisecond, Max: time.Second, MaxAttempts: 5},
	})
	runMonitor(t, m)
	<-d.dialed

	first.errs <- errors.New("connection reset")
	clk.BlockUntil(1)
	clk.Advance(99 * time.Millisecond)
	assert.Empty(t, d.dialed, "waits the full initial delay")
	clk.Advance(time.Millisecond)
	<-d.dialed // refused

	clk.BlockUntil(1)
	clk.Advance(200 * time.Millisecond)
	<-d.dialed // refused

	clk.BlockUntil(1)
	clk.Advance(400 * time.Millisecond)
	<-d.dialed

	second.msgs <- status(2, analysis.StateQueued, 0)
	assert.Equal(t, status(2, analysis.StateQueued, 0), <-m.Updates())
}

func TestMonitor_GivesUpAfterMaxAttempts(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	d := newFakeDialer()
	m := New(Config{
		Dialer:  d,
		Session: &fakeSession{id: "a1"},
		Clock:   clk,
		Backoff: Backoff{Initial: time.Second, Max: 2 * time.Second, MaxAttempts: 2},
	})
	_, done := runMonitor(t, m)

	<-d.dialed
	clk.BlockUntil(1)
	clk.Advance(time.Second)
	<-d.dialed
	clk.BlockUntil(1)
	clk.Advance(2 * time.Second)
	<-d.dialed

	err := <-done
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Attempts)
	assert.False(t, m.Connected())
}

func TestMonitor_FlappingConnectionBacksOff(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	streams := []*fakeStream{newFakeStream(), newFakeStream(), newFakeStream()}
	d := newFakeDialer(streams...)
	m := New(Config{
		Dialer:  d,
		Session: &fakeSession{id: "a1"},
		Clock:   clk,
		Backoff: Backoff{Initial: 100 * time.Millisecond, MaxAttempts: 2},
	})
	_, done := runMonitor(t, m)
	dropped := errors.New("connection reset")

	<-d.dialed
	streams[0].errs <- dropped
	clk.BlockUntil(1)
	clk.Advance(100 * time.Millisecond)

	<-d.dialed
	streams[1].errs <- dropped
	clk.BlockUntil(1)
	clk.Advance(199 * time.Millisecond)
	assert.Empty(t, d.dialed, "delay grows although the dial succeeded")
	clk.Advance(time.Millisecond)

	<-d.dialed
	streams[2].errs <- dropped

	err := <-done
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Attempts)
	assert.ErrorIs(t, err, dropped)
}

func TestMonitor_HealthyConnectionResetsBackoff(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	first, second, third := newFakeStream(), newFakeStream(), newFakeStream()
	d := newFakeDialer(first, second, third)
	m := New(Config{
		Dialer:  d,
		Session: &fakeSession{id: "a1"},
		Clock:   clk,
		Backoff: Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Stable: 5 * time.Second, MaxAttempts: 5},
	})
	runMonitor(t, m)

	<-d.dialed
	first.errs <- errors.New("connection reset")
	clk.BlockUntil(1)
	clk.Advance(100 * time.Millisecond)

	<-d.dialed
	second.msgs <- status(1, analysis.StateRunning, 10)
	<-m.Updates()
	second.errs <- errors.New("connection reset")
	clk.BlockUntil(1)
	clk.Advance(99 * time.Millisecond)
	assert.Empty(t, d.dialed)
	clk.Advance(time.Millisecond)
	<-d.dialed
	require.Eventually(t, m.Connected, time.Second, time.Millisecond)

	clk.Advance(5 * time.Second)
	third.errs <- errors.New("connection reset")
	clk.BlockUntil(1)
	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, "a1", <-d.dialed, "a long lived connection also resets the delay")
}

func TestMonitor_ResubscribesOnAnalysisChange(t *testing.T) {
	first, second := newFakeStream(), newFakeStream()
	d := newFakeDialer(first, second)
	sess := &fakeSession{id: "a1"}
	m := New(Config{Dialer: d, Session: sess, Clock: clock.NewFake(time.Unix(0, 0))})
	runMonitor(t, m)

	assert.Equal(t, "a1", <-d.dialed)
	first.msgs <- status(1, analysis.StateRunning, 30)
	<-m.Updates()

	sess.set("a2")
	m.Resubscribe()
	assert.Equal(t, "a2", <-d.dialed)
	<-first.closed
	assert.Nil(t, m.Latest(), "snapshot of the previous analysis is dropped")

	second.msgs <- status(1, analysis.StateQueued, 0)
	assert.Equal(t, status(1, analysis.StateQueued, 0), <-m.Updates())
}

func TestMonitor_SessionPoll(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	first, second := newFakeStream(), newFakeStream()
	d := newFakeDialer(first, second)
	sess := &fakeSession{id: "a1"}
	m := New(Config{Dialer: d, Session: sess, Clock: clk, SessionPoll: time.Second})
	runMonitor(t, m)
	<-d.dialed

	clk.BlockUntil(1)
	clk.Advance(time.Second)
	clk.BlockUntil(1)
	assert.Empty(t, d.dialed, "same analysis keeps the subscription")

	sess.set("a2")
	clk.Advance(time.Second)
	assert.Equal(t, "a2", <-d.dialed)
}

func TestMonitor_StartCancel(t *testing.T) {
	api := &fakeEval{}
	m := New(Config{API: api, Session: &fakeSession{}})
	ctx := context.Background()

	require.NoError(t, m.Start(ctx, analysis.New()))
	require.NoError(t, m.Cancel(ctx))
	assert.Equal(t, 1, api.started)
	assert.Equal(t, 1, api.canceled)

	api.err = errors.New("409 Conflict")
	assert.Error(t, m.Start(ctx, analysis.New()))
	assert.Nil(t, m.Latest())
}

func TestBackoff_Policy(t *testing.T) {
	p := Backoff{Initial: time.Second, Max: 3 * time.Second, MaxAttempts: 4}.policy()
	var got []time.Duration
	for {
		d, stop := p.Next()
		if stop {
			break
		}
		got = append(got, d)
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, got)
}

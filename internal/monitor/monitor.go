// Package monitor follows the evaluation status of the current analysis
// over a push channel. Each message is a complete snapshot that replaces
// the previous one. Lost connections are re-established with exponential
// backoff; a change of analysis drops the subscription and starts a new
// one.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/matthewbaird/acdc/internal/analysis"
	"github.com/matthewbaird/acdc/internal/clock"
	"github.com/matthewbaird/acdc/internal/metrics"
)

// Stream is one open status subscription.
type Stream interface {
	Recv(ctx context.Context) (analysis.Status, error)
	Close() error
}

// Dialer opens a status subscription for an analysis.
type Dialer interface {
	Dial(ctx context.Context, analysisID string) (Stream, error)
}

// SessionSource reports which analysis is current. The synchronizer
// implements it.
type SessionSource interface {
	AnalysisID() string
}

// EvalAPI starts and cancels evaluations. *client.Client implements it.
type EvalAPI interface {
	StartEvaluation(ctx context.Context, doc *analysis.Document) error
	CancelEvaluation(ctx context.Context) error
}

// TransportError is returned by Run once reconnect attempts are exhausted.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("monitor: status channel unavailable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Backoff is the reconnect policy: delays start at Initial and double up
// to Max. MaxAttempts bounds consecutive failed reconnects; zero means
// retry forever. A connection counts as failed unless it delivered a
// snapshot or stayed up for Stable (Max when zero).
type Backoff struct {
	Initial       time.Duration
	Max           time.Duration
	MaxAttempts   uint64
	JitterPercent uint64
	Stable        time.Duration
}

// DefaultBackoff is used when Config.Backoff is zero.
var DefaultBackoff = Backoff{
	Initial:     500 * time.Millisecond,
	Max:         30 * time.Second,
	MaxAttempts: 10,
}

func (b Backoff) policy() retry.Backoff {
	p := retry.NewExponential(b.Initial)
	p = retry.WithCappedDuration(b.Max, p)
	if b.JitterPercent > 0 {
		p = retry.WithJitterPercent(b.JitterPercent, p)
	}
	if b.MaxAttempts > 0 {
		p = retry.WithMaxRetries(b.MaxAttempts, p)
	}
	return p
}

// Config wires a Monitor.
type Config struct {
	Dialer  Dialer
	Session SessionSource
	API     EvalAPI
	Clock   clock.Clock
	Backoff Backoff
	Metrics *metrics.Client
	// SessionPoll, when positive, checks the session's analysis ID at this
	// interval and resubscribes when it changes. Resubscribe does the same
	// on demand.
	SessionPoll time.Duration
}

// Monitor holds the latest status snapshot.
type Monitor struct {
	dialer  Dialer
	session SessionSource
	api     EvalAPI
	clock   clock.Clock
	backoff Backoff
	metrics *metrics.Client
	poll    time.Duration

	resub   chan struct{}
	updates chan analysis.Status

	mu        sync.Mutex
	latest    analysis.Status
	analysis  string
	connected bool
}

var errResubscribe = errors.New("monitor: analysis changed")

// New creates a monitor. Run starts it.
func New(cfg Config) *Monitor {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff.Initial = DefaultBackoff.Initial
	}
	if cfg.Backoff.Max <= 0 {
		cfg.Backoff.Max = DefaultBackoff.Max
	}
	if cfg.Backoff.Stable <= 0 {
		cfg.Backoff.Stable = cfg.Backoff.Max
	}
	return &Monitor{
		dialer:  cfg.Dialer,
		session: cfg.Session,
		api:     cfg.API,
		clock:   cfg.Clock,
		backoff: cfg.Backoff,
		metrics: cfg.Metrics,
		poll:    cfg.SessionPoll,
		resub:   make(chan struct{}, 1),
		updates: make(chan analysis.Status, 1),
	}
}

// Latest returns the most recent snapshot, or nil before the first one.
func (m *Monitor) Latest() analysis.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest.Clone()
}

// Updates delivers snapshots. A slow reader only sees the newest one.
func (m *Monitor) Updates() <-chan analysis.Status { return m.updates }

// Connected reports whether a subscription is open.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Resubscribe drops the current subscription and opens a new one for the
// session's current analysis.
func (m *Monitor) Resubscribe() {
	select {
	case m.resub <- struct{}{}:
	default:
	}
}

// Run keeps a subscription open until ctx ends or reconnects are
// exhausted.
func (m *Monitor) Run(ctx context.Context) error {
	policy := m.backoff.policy()
	attempts := 0
	for {
		id := m.session.AnalysisID()
		m.enter(id)

		healthy, err := m.subscribe(ctx, id)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, errResubscribe) {
			log.Printf("monitor: analysis changed, resubscribing")
			policy, attempts = m.backoff.policy(), 0
			continue
		}
		if healthy {
			policy, attempts = m.backoff.policy(), 0
		}
		attempts++
		delay, stop := policy.Next()
		if stop {
			return &TransportError{Attempts: attempts, Err: err}
		}
		m.metrics.Reconnect()
		log.Printf("monitor: status channel lost: %v; reconnecting in %s", err, delay)
		select {
		case <-m.clock.After(delay):
		case <-m.resub:
			policy, attempts = m.backoff.policy(), 0
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// enter records the analysis being followed. Switching analysis clears
// the snapshot.
func (m *Monitor) enter(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != m.analysis {
		m.analysis = id
		m.latest = nil
	}
}

func (m *Monitor) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

// subscribe follows one stream until it fails. It reports whether the
// stream was healthy: a snapshot arrived or it stayed up for Stable.
func (m *Monitor) subscribe(ctx context.Context, id string) (bool, error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := m.dialer.Dial(subCtx, id)
	if err != nil {
		return false, err
	}
	defer stream.Close()
	since := m.clock.Now()
	m.setConnected(true)
	defer m.setConnected(false)
	log.Printf("monitor: subscribed to analysis %q", id)

	var changed atomic.Bool
	go m.watchSession(subCtx, cancel, id, &changed)

	received := false
	for {
		st, err := stream.Recv(subCtx)
		if err != nil {
			healthy := received || m.clock.Now().Sub(since) >= m.backoff.Stable
			if changed.Load() {
				return healthy, errResubscribe
			}
			return healthy, err
		}
		received = true
		m.publish(st)
	}
}

func (m *Monitor) watchSession(ctx context.Context, cancel context.CancelFunc, id string, changed *atomic.Bool) {
	for {
		var tick <-chan time.Time
		if m.poll > 0 {
			tick = m.clock.After(m.poll)
		}
		select {
		case <-ctx.Done():
			return
		case <-m.resub:
			if ctx.Err() != nil {
				m.Resubscribe()
				return
			}
			changed.Store(true)
			cancel()
			return
		case <-tick:
			if m.session.AnalysisID() != id {
				changed.Store(true)
				cancel()
				return
			}
		}
	}
}

func (m *Monitor) publish(st analysis.Status) {
	m.mu.Lock()
	m.latest = st.Clone()
	m.mu.Unlock()
	m.metrics.StatusMessage()

	select {
	case m.updates <- st:
		return
	default:
	}
	select {
	case <-m.updates:
	default:
	}
	select {
	case m.updates <- st:
	default:
	}
}

// Start submits doc for evaluation. Progress arrives on the status
// channel; failures are logged and returned, the snapshot is untouched.
func (m *Monitor) Start(ctx context.Context, doc *analysis.Document) error {
	if err := m.api.StartEvaluation(ctx, doc); err != nil {
		log.Printf("monitor: start evaluation: %v", err)
		return err
	}
	return nil
}

// Cancel stops the running evaluation.
func (m *Monitor) Cancel(ctx context.Context) error {
	if err := m.api.CancelEvaluation(ctx); err != nil {
		log.Printf("monitor: cancel evaluation: %v", err)
		return err
	}
	return nil
}

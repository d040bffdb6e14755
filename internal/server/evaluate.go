package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/acdc/internal/analysis"
	"github.com/matthewbaird/acdc/internal/clock"
	"github.com/matthewbaird/acdc/internal/eventbus"
	"github.com/matthewbaird/acdc/internal/metrics"
)

// progressStep is the progress added to the running condition per step.
const progressStep = 25

var (
	ErrRunning      = errors.New("an evaluation is already running")
	ErrNoConditions = errors.New("analysis has no conditions to evaluate")
)

// Evaluator runs one evaluation at a time, evaluating conditions in order
// and publishing a full status snapshot on every change.
type Evaluator struct {
	bus     *eventbus.Bus
	clock   clock.Clock
	step    time.Duration
	metrics *metrics.Server

	mu  sync.Mutex
	run *evalRun
}

type evalRun struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEvaluator creates an evaluator advancing progress every step.
func NewEvaluator(bus *eventbus.Bus, clk clock.Clock, step time.Duration, m *metrics.Server) *Evaluator {
	if clk == nil {
		clk = clock.Real()
	}
	return &Evaluator{bus: bus, clock: clk, step: step, metrics: m}
}

// Start begins evaluating the document's conditions and returns the run ID.
func (e *Evaluator) Start(doc *analysis.Document) (string, error) {
	if len(doc.Conditions) == 0 {
		return "", ErrNoConditions
	}
	ids := make([]int, len(doc.Conditions))
	for i, c := range doc.Conditions {
		ids[i] = c.ID
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != nil {
		return "", ErrRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	run := &evalRun{id: uuid.NewString(), cancel: cancel, done: make(chan struct{})}
	e.run = run
	e.metrics.EvaluationStarted()
	log.Printf("server: evaluation %s started for analysis %s (%d conditions)", run.id, doc.ID, len(ids))

	go e.execute(ctx, run, ids)
	return run.id, nil
}

// Cancel stops the running evaluation and waits until its final snapshot
// is published. It reports whether a run was active.
func (e *Evaluator) Cancel() bool {
	e.mu.Lock()
	run := e.run
	e.mu.Unlock()
	if run == nil {
		return false
	}
	run.cancel()
	<-run.done
	return true
}

// Running returns the ID of the active run, if any.
func (e *Evaluator) Running() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return "", false
	}
	return e.run.id, true
}

// Close cancels any active run.
func (e *Evaluator) Close() {
	e.Cancel()
}

func (e *Evaluator) execute(ctx context.Context, run *evalRun, ids []int) {
	defer func() {
		e.mu.Lock()
		if e.run == run {
			e.run = nil
		}
		e.mu.Unlock()
		close(run.done)
	}()

	st := make(analysis.Status, len(ids))
	for i, id := range ids {
		st[i] = analysis.EvalStatus{ID: id, State: analysis.StateQueued}
	}
	e.bus.Publish(st)

	for i := range st {
		st[i].State = analysis.StateRunning
		e.bus.Publish(st)
		for st[i].State == analysis.StateRunning {
			select {
			case <-ctx.Done():
				e.canceled(run, st)
				return
			case <-e.clock.After(e.step):
			}
			st[i].Progress += progressStep
			if st[i].Progress >= 100 {
				st[i].Progress = 100
				st[i].State = analysis.StateComplete
			}
			e.bus.Publish(st)
		}
	}
	log.Printf("server: evaluation %s complete", run.id)
}

func (e *Evaluator) canceled(run *evalRun, st analysis.Status) {
	for i := range st {
		if st[i].State != analysis.StateComplete {
			st[i].State = analysis.StateCanceled
		}
	}
	e.bus.Publish(st)
	e.metrics.EvaluationCanceled()
	log.Printf("server: evaluation %s canceled", run.id)
}

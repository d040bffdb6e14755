package eventbus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/acdc/internal/analysis"
	"github.com/matthewbaird/acdc/internal/metrics"
)

func snapshot(state string, progress int) analysis.Status {
	return analysis.Status{{ID: 1, State: state, Progress: progress}}
}

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	b := New(nil)
	a, cancelA := b.Subscribe()
	defer cancelA()
	c, cancelC := b.Subscribe()
	defer cancelC()

	b.Publish(snapshot(analysis.StateRunning, 25))
	assert.Equal(t, snapshot(analysis.StateRunning, 25), <-a)
	assert.Equal(t, snapshot(analysis.StateRunning, 25), <-c)
}

func TestBus_SlowSubscriberGetsNewest(t *testing.T) {
	b := New(nil)
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(snapshot(analysis.StateRunning, 25))
	b.Publish(snapshot(analysis.StateRunning, 50))
	b.Publish(snapshot(analysis.StateComplete, 100))

	assert.Equal(t, snapshot(analysis.StateComplete, 100), <-ch)
	select {
	case st := <-ch:
		t.Fatalf("unexpected extra snapshot %v", st)
	default:
	}
}

func TestBus_LastAndReset(t *testing.T) {
	b := New(nil)
	assert.Nil(t, b.Last())

	st := snapshot(analysis.StateQueued, 0)
	b.Publish(st)
	st[0].State = analysis.StateError
	assert.Equal(t, analysis.StateQueued, b.Last()[0].State, "the bus keeps its own copy")

	b.Reset()
	assert.Nil(t, b.Last())
}

func TestBus_CancelClosesChannel(t *testing.T) {
	b := New(nil)
	ch, cancel := b.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(snapshot(analysis.StateRunning, 25))
}

func TestBus_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := New(metrics.NewServer(reg))

	_, cancel := b.Subscribe()
	_, cancel2 := b.Subscribe()
	b.Publish(snapshot(analysis.StateRunning, 25))
	cancel2()

	n, err := testutil.GatherAndCount(reg, "acdc_server_status_subscribers", "acdc_server_status_broadcasts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		m := mf.GetMetric()[0]
		if g := m.GetGauge(); g != nil {
			values[mf.GetName()] = g.GetValue()
		}
		if c := m.GetCounter(); c != nil {
			values[mf.GetName()] = c.GetValue()
		}
	}
	assert.Equal(t, 1.0, values["acdc_server_status_subscribers"])
	assert.Equal(t, 1.0, values["acdc_server_status_broadcasts_total"])
	cancel()
}

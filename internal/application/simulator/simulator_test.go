package simulator_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensor-proxy/internal/application/simulator"
	"sensor-proxy/internal/domain"
)

func collect(t *testing.T, events <-chan domain.Event, until func([]domain.Event) bool) []domain.Event {
	t.Helper()
	var received []domain.Event
	timeout := time.After(2 * time.Second)
	for !until(received) {
		select {
		case event, ok := <-events:
			if !ok {
				t.Fatal("channel closed early")
			}
			received = append(received, event)
		case <-timeout:
			t.Fatalf("timeout after %d events", len(received))
		}
	}
	return received
}

func countState(events []domain.Event, state domain.SyncState) int {
	n := 0
	for _, event := range events {
		if event.Kind == domain.EventStateChanged && event.State == state {
			n++
		}
	}
	return n
}

func TestSimulatorInitialSync(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := simulator.New(simulator.Config{Interval: 5 * time.Millisecond, RandSource: rand.NewSource(1)}, nil)
	events := make(chan domain.Event, 16)
	go sim.Run(ctx, events)

	received := collect(t, events, func(got []domain.Event) bool {
		return countState(got, domain.SyncStateSynced) == 1
	})

	t.Log("step 1: sync starts with a syncing state and one batch of additions")
	require.Equal(t, domain.EventStateChanged, received[0].Kind)
	assert.Equal(t, domain.SyncStateSyncing, received[0].State)
	assert.Equal(t, domain.EventBatchStart, received[1].Kind)

	defs := simulator.Definitions()
	for i, def := range defs {
		event := received[2+i]
		require.Equal(t, domain.EventSensorAdded, event.Kind)
		assert.Equal(t, def.Name, event.Definition.Name)
	}

	t.Log("step 2: every value decodes with its sensor type")
	types := make(map[string]domain.SensorType)
	for _, def := range defs {
		stype, err := domain.ParseSensorType(def.TypeName, def.Args)
		require.NoError(t, err)
		types[def.Name] = stype
	}
	updates := 0
	for _, event := range received {
		if event.Kind != domain.EventSensorUpdated {
			continue
		}
		updates++
		_, err := types[event.Name].Decode(event.Value)
		assert.NoError(t, err, event.Name)
	}
	assert.Equal(t, len(defs), updates)
	assert.Equal(t, domain.EventBatchStop, received[len(received)-2].Kind)
}

func TestSimulatorDisconnectsAndResyncs(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := simulator.New(simulator.Config{
		Interval:        2 * time.Millisecond,
		DisconnectEvery: 2,
		RandSource:      rand.NewSource(2),
	}, nil)
	events := make(chan domain.Event, 64)
	go sim.Run(ctx, events)

	received := collect(t, events, func(got []domain.Event) bool {
		return countState(got, domain.SyncStateSynced) == 2
	})

	assert.Equal(t, 1, countState(received, domain.SyncStateClosed))
	assert.Equal(t, 2, countState(received, domain.SyncStateSyncing))
}

func TestSimulatorStopsOnContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	sim := simulator.New(simulator.Config{Interval: time.Millisecond, RandSource: rand.NewSource(3)}, nil)
	events := make(chan domain.Event)

	done := make(chan struct{})
	go func() {
		sim.Run(ctx, events)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("simulator did not stop in time")
	}

	_, ok := <-events
	assert.False(t, ok, "output channel is closed")
}

package sampler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lkhag/procsync/internal/events"
	"github.com/Lkhag/procsync/internal/pubsub"
)

type flakySensor struct {
	calls   atomic.Int64
	failOdd bool
}

func (f *flakySensor) Read() (events.Sample, error) {
	n := f.calls.Add(1)
	if f.failOdd && n%2 == 1 {
		return events.Sample{}, errors.New("sensor offline")
	}
	return events.Sample{CPUPct: 42, MemPct: 58, DiskPct: 71, Time: time.Now()}, nil
}

func TestSamplerPublishesReadings(t *testing.T) {
	s := New(Config{
		Interval: 10 * time.Millisecond,
		Sensor:   &flakySensor{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := s.Subscribe(ctx)

	s.Start()
	defer s.Stop()

	select {
	case evt := <-sub:
		require.Equal(t, pubsub.UpdatedEvent, evt.Type)
		require.InDelta(t, 42.0, evt.Payload.CPUPct, 0.001)
		require.False(t, evt.Payload.Time.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a sample")
	}
}

func TestSamplerSurvivesSensorFailure(t *testing.T) {
	sensor := &flakySensor{failOdd: true}
	logSink := pubsub.NewBroker[events.LogEvent]()
	defer logSink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logs := logSink.Subscribe(ctx)

	s := New(Config{
		Interval: 5 * time.Millisecond,
		Sensor:   sensor,
		LogSink:  logSink,
	})
	s.Start()
	defer s.Stop()

	// The first read fails, the second succeeds. Both must happen.
	require.Eventually(t, func() bool {
		return sensor.calls.Load() >= 2 && s.Last().CPUPct > 0
	}, 2*time.Second, 5*time.Millisecond)

	var sawError bool
	deadline := time.After(time.Second)
	for !sawError {
		select {
		case evt := <-logs:
			if evt.Payload.Text == "system monitor error: sensor offline" {
				sawError = true
			}
		case <-deadline:
			t.Fatal("error log line never published")
		}
	}
}

func TestSamplerStopIsIdempotent(t *testing.T) {
	s := New(Config{Interval: time.Hour})
	s.Start()
	s.Start() // second start is a no-op
	s.Stop()
	s.Stop() // second stop must not block or panic
}

func TestSimSensorStaysInBounds(t *testing.T) {
	sensor := NewSimSensor(1)
	for range 500 {
		sample, err := sensor.Read()
		require.NoError(t, err)
		require.GreaterOrEqual(t, sample.CPUPct, 0.0)
		require.LessOrEqual(t, sample.CPUPct, 100.0)
		require.GreaterOrEqual(t, sample.MemPct, 0.0)
		require.LessOrEqual(t, sample.MemPct, 100.0)
	}
}

func TestSimSensorNetBytesAreCumulative(t *testing.T) {
	sensor := NewSimSensor(1)

	var prev uint64
	for range 100 {
		sample, err := sensor.Read()
		require.NoError(t, err)
		require.GreaterOrEqual(t, sample.NetBytes, prev, "network counter must never decrease")
		prev = sample.NetBytes
	}
	require.Greater(t, prev, uint64(0))
}

// Package sampler polls system utilization on a fixed interval and
// publishes the readings to subscribers. A failing sensor is logged
// and skipped; sampling always continues.
package sampler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Lkhag/procsync/internal/events"
	"github.com/Lkhag/procsync/internal/log"
	"github.com/Lkhag/procsync/internal/pubsub"
)

const (
	// DefaultInterval is the time between consecutive readings.
	DefaultInterval = time.Second

	// DefaultLogProbability is the chance a reading is also emitted
	// as a human-readable log line.
	DefaultLogProbability = 0.1
)

// Config controls sampling cadence and log chatter.
type Config struct {
	Interval       time.Duration
	LogProbability float64
	Sensor         Sensor
	LogSink        *pubsub.Broker[events.LogEvent]
}

// Sampler runs the periodic sampling loop.
type Sampler struct {
	interval time.Duration
	logProb  float64
	sensor   Sensor
	logSink  *pubsub.Broker[events.LogEvent]
	broker   *pubsub.Broker[events.Sample]
	rng      *rand.Rand

	mu     sync.Mutex
	last   events.Sample
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a sampler. Zero config fields fall back to defaults and
// a simulated sensor.
func New(cfg Config) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.LogProbability <= 0 {
		cfg.LogProbability = DefaultLogProbability
	}
	if cfg.Sensor == nil {
		cfg.Sensor = NewSimSensor(time.Now().UnixNano())
	}
	return &Sampler{
		interval: cfg.Interval,
		logProb:  cfg.LogProbability,
		sensor:   cfg.Sensor,
		logSink:  cfg.LogSink,
		broker:   pubsub.NewBroker[events.Sample](),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start launches the sampling loop. It is a no-op if already running.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop halts the loop and waits for it to exit.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Subscribe returns a channel of published samples. The subscription
// ends when ctx is cancelled.
func (s *Sampler) Subscribe(ctx context.Context) <-chan pubsub.Event[events.Sample] {
	return s.broker.Subscribe(ctx)
}

// Last returns the most recent successful reading.
func (s *Sampler) Last() events.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Sampler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Sampler) sampleOnce() {
	sample, err := s.sensor.Read()
	if err != nil {
		s.emitLog(fmt.Sprintf("system monitor error: %v", err))
		log.Warn(log.CatSampler, "Sensor read failed", "error", err)
		return
	}
	if sample.Time.IsZero() {
		sample.Time = time.Now()
	}

	s.mu.Lock()
	s.last = sample
	chatty := s.rng.Float64() < s.logProb
	s.mu.Unlock()

	s.broker.Publish(pubsub.UpdatedEvent, sample)

	if chatty {
		s.emitLog(fmt.Sprintf("system stats - cpu: %.1f%%, memory: %.1f%%, disk: %.1f%%",
			sample.CPUPct, sample.MemPct, sample.DiskPct))
	}
}

func (s *Sampler) emitLog(text string) {
	if s.logSink == nil {
		return
	}
	s.logSink.Publish(pubsub.CreatedEvent, events.LogEvent{Text: text, Time: time.Now()})
}

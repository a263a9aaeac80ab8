package sampler

import (
	"math/rand"
	"sync"
	"time"

	"github.com/Lkhag/procsync/internal/events"
)

// Sensor produces point-in-time system utilization readings.
type Sensor interface {
	Read() (events.Sample, error)
}

// SimSensor generates plausible utilization figures with a bounded
// random walk, so consecutive readings drift rather than jump.
type SimSensor struct {
	mu   sync.Mutex
	rng  *rand.Rand
	cpu  float64
	mem  float64
	disk float64
	net  uint64
}

// NewSimSensor seeds a simulated sensor with mid-range starting values.
func NewSimSensor(seed int64) *SimSensor {
	return &SimSensor{
		rng:  rand.New(rand.NewSource(seed)),
		cpu:  35,
		mem:  50,
		disk: 60,
	}
}

func (s *SimSensor) Read() (events.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cpu = drift(s.rng, s.cpu, 8)
	s.mem = drift(s.rng, s.mem, 3)
	s.disk = drift(s.rng, s.disk, 1)
	// Network bytes are a cumulative counter, like the kernel's
	// interface statistics: each reading adds this tick's traffic.
	s.net += uint64(s.rng.Intn(1 << 20))

	return events.Sample{
		CPUPct:   s.cpu,
		MemPct:   s.mem,
		DiskPct:  s.disk,
		NetBytes: s.net,
		Time:     time.Now(),
	}, nil
}

// drift nudges v by at most step in either direction, clamped to [0, 100].
func drift(rng *rand.Rand, v, step float64) float64 {
	v += (rng.Float64()*2 - 1) * step
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

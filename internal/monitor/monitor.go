// Package monitor samples host CPU and memory usage in the background so
// conditions can react to system load.
package monitor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/auziqni/learn-shimeji-sub000/internal/condition"
	"github.com/auziqni/learn-shimeji-sub000/internal/logging"
)

// DefaultInterval is the sampling cadence when none is configured.
const DefaultInterval = 2 * time.Second

// Snapshot is one sampling of host usage, both values in percent.
type Snapshot struct {
	CPU    float64
	Memory float64
	Taken  time.Time
}

// Monitor samples usage on a fixed interval. Start launches the sampling
// goroutine; Stop waits for it to drain. Snapshot and Apply are safe to
// call from any goroutine.
type Monitor struct {
	interval time.Duration
	log      *logrus.Entry

	mu   sync.Mutex
	last Snapshot

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a monitor. Non-positive intervals fall back to
// DefaultInterval; log may be nil.
func New(interval time.Duration, log *logrus.Entry) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Monitor{interval: interval, log: log}
}

// Start begins sampling. An initial sample is taken synchronously so the
// first Snapshot after Start never reads zeros.
func (m *Monitor) Start(ctx context.Context) {
	if m.done != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	m.sample(ctx)
	go m.run(ctx)
}

// Stop halts sampling and waits for the goroutine to exit.
func (m *Monitor) Stop() {
	if m.done == nil {
		return
	}
	m.cancel()
	<-m.done
	m.done = nil
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

func (m *Monitor) sample(ctx context.Context) {
	snap := Snapshot{Taken: time.Now()}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		m.log.WithError(err).Debug("cpu sample failed")
	} else if len(percents) > 0 {
		snap.CPU = round1(percents[0])
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		m.log.WithError(err).Debug("memory sample failed")
	} else {
		snap.Memory = round1(vm.UsedPercent)
	}

	m.mu.Lock()
	m.last = snap
	m.mu.Unlock()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Snapshot returns the latest sample.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Apply writes the latest sample into condition state under the
// system.cpu and system.mem keys.
func (m *Monitor) Apply(st condition.State) {
	snap := m.Snapshot()
	st[condition.KeySystemCPU] = snap.CPU
	st[condition.KeySystemMem] = snap.Memory
}

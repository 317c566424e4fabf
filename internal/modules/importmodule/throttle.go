package importmodule

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Load thresholds above which chunk boundaries pause longer.
const (
	loadHighCPU     = 85.0
	loadCriticalCPU = 95.0
	loadHighMemory  = 90.0

	monitorInterval = 3 * time.Second
)

// LoadMonitor samples system load in the background so the pipeline can
// stretch its inter-chunk pauses when the host is busy.
type LoadMonitor struct {
	logger hclog.Logger

	mu          sync.RWMutex
	cpuPercent  float64
	memPercent  float64
	lastSampled time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoadMonitor creates and starts a load monitor.
func NewLoadMonitor(logger hclog.Logger) *LoadMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &LoadMonitor{
		logger: logger.Named("load-monitor"),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go m.run(ctx)
	return m
}

// Stop terminates background sampling.
func (m *LoadMonitor) Stop() {
	m.cancel()
	<-m.done
}

// Metrics returns the latest CPU and memory usage percentages.
func (m *LoadMonitor) Metrics() (cpuPercent, memPercent float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cpuPercent, m.memPercent
}

// Backoff returns the additional pause an import should take at a chunk
// boundary given current load. Zero when the system is comfortable.
func (m *LoadMonitor) Backoff() time.Duration {
	cpuPercent, memPercent := m.Metrics()

	switch {
	case cpuPercent >= loadCriticalCPU || memPercent >= loadHighMemory:
		return 250 * time.Millisecond
	case cpuPercent >= loadHighCPU:
		return 100 * time.Millisecond
	default:
		return 0
	}
}

func (m *LoadMonitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	m.sample(ctx)
	for {
		select {
		case <-ticker.C:
			m.sample(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *LoadMonitor) sample(ctx context.Context) {
	var cpuPercent float64
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	} else if err != nil {
		m.logger.Debug("cpu sample failed", "error", err)
	}

	var memPercent float64
	if stats, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memPercent = stats.UsedPercent
	} else {
		m.logger.Debug("memory sample failed", "error", err)
	}

	m.mu.Lock()
	m.cpuPercent = cpuPercent
	m.memPercent = memPercent
	m.lastSampled = time.Now()
	m.mu.Unlock()
}

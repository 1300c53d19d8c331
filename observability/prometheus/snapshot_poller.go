package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-worker-pool/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports pool Stats() snapshots into
// Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	poolWorkers           *prom.GaugeVec
	poolQueued            *prom.GaugeVec
	poolLowPriorityHeld   *prom.GaugeVec
	poolActive            *prom.GaugeVec
	poolLowPriorityActive *prom.GaugeVec
	poolDelayed           *prom.GaugeVec
	poolRunning           *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	p := &SnapshotPoller{
		interval: interval,
		pools:    make(map[string]PoolSnapshotProvider),
	}

	gauges := []struct {
		target **prom.GaugeVec
		name   string
		help   string
	}{
		{&p.poolWorkers, "pool_workers", "Number of workers in the pool."},
		{&p.poolQueued, "pool_queued", "Tasks waiting in the run queue."},
		{&p.poolLowPriorityHeld, "pool_low_priority_held", "Low-priority tasks parked in the holding queue."},
		{&p.poolActive, "pool_active", "Tasks currently executing, on pool workers or native threads."},
		{&p.poolLowPriorityActive, "pool_low_priority_active", "Low-priority tasks admitted to the pool."},
		{&p.poolDelayed, "pool_delayed", "Delayed submissions not yet posted."},
		{&p.poolRunning, "pool_running", "Whether the pool is running (1) or not (0)."},
	}
	for _, g := range gauges {
		vec := prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "workerpool",
			Name:      g.name,
			Help:      g.help,
		}, []string{"pool"})
		vec, err := registerCollector(reg, vec)
		if err != nil {
			return nil, err
		}
		*g.target = vec
	}

	return p, nil
}

// RegisterPool adds a pool to be polled under the given name.
func (p *SnapshotPoller) RegisterPool(name string, provider PoolSnapshotProvider) {
	p.poolsMu.Lock()
	defer p.poolsMu.Unlock()
	p.pools[name] = provider
}

// UnregisterPool removes a pool from polling.
func (p *SnapshotPoller) UnregisterPool(name string) {
	p.poolsMu.Lock()
	defer p.poolsMu.Unlock()
	delete(p.pools, name)
}

// Start begins the polling loop. Calling Start on a running poller is a
// no-op.
func (p *SnapshotPoller) Start() {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.loop(ctx, p.done)
}

// Stop terminates the polling loop and waits for it to exit.
func (p *SnapshotPoller) Stop() {
	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	cancel()
	<-done
}

// Poll exports one snapshot for every registered pool immediately.
func (p *SnapshotPoller) Poll() {
	p.poolsMu.RLock()
	defer p.poolsMu.RUnlock()

	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolLowPriorityHeld.WithLabelValues(name).Set(float64(stats.LowPriorityHeld))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolLowPriorityActive.WithLabelValues(name).Set(float64(stats.LowPriorityActive))
		p.poolDelayed.WithLabelValues(name).Set(float64(stats.Delayed))
		running := 0.0
		if stats.Running {
			running = 1.0
		}
		p.poolRunning.WithLabelValues(name).Set(running)
	}
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}

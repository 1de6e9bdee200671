// internal/pkg/session/monitor.go
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"gestia-service/internal/store"
)

// Monitor enforces an absolute idle timeout while a session is active. It
// runs a single-shot timer that qualifying activity re-arms; each local
// rearm also writes the shared activity timestamp so sibling processes
// watching the durable scope re-arm their own timers. On expiry it invokes
// the forced-logout callback exactly once and disarms.
type Monitor struct {
	store    *store.Store
	logger   *zap.Logger
	idle     time.Duration
	debounce time.Duration
	onExpire func()

	mu        sync.Mutex
	armed     bool
	timer     *time.Timer
	lastTouch time.Time
	watchStop context.CancelFunc
}

func NewMonitor(st *store.Store, idle, debounce time.Duration, onExpire func(), logger *zap.Logger) *Monitor {
	return &Monitor{
		store:    st,
		logger:   logger,
		idle:     idle,
		debounce: debounce,
		onExpire: onExpire,
	}
}

// Arm starts the idle timer and the sibling-activity watcher. Arming an
// armed monitor is a no-op.
func (m *Monitor) Arm() {
	m.mu.Lock()
	if m.armed {
		m.mu.Unlock()
		return
	}
	m.armed = true
	m.lastTouch = time.Time{}
	m.timer = time.AfterFunc(m.idle, m.expire)

	ctx, cancel := context.WithCancel(context.Background())
	m.watchStop = cancel
	m.mu.Unlock()

	go m.watchSiblings(ctx)
}

// Touch registers local user activity: re-arms the timer and writes the
// shared activity timestamp. Debounced to one rearm per debounce window.
func (m *Monitor) Touch(ctx context.Context) {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	if !m.lastTouch.IsZero() && now.Sub(m.lastTouch) < m.debounce {
		m.mu.Unlock()
		return
	}
	m.lastTouch = now
	m.timer.Reset(m.idle)
	m.mu.Unlock()

	if err := m.store.TouchActivity(ctx, now); err != nil {
		m.logger.Warn("failed to publish activity timestamp", zap.Error(err))
	}
}

// Resume re-arms the timer without writing the shared timestamp. Called when
// a client re-attaches after being suspended: regaining visibility counts as
// activity for this process only.
func (m *Monitor) Resume() {
	m.rearm()
}

// Disarm stops the timer and the watcher. Safe to call on every exit path,
// armed or not.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return
	}
	m.armed = false
	m.timer.Stop()
	stop := m.watchStop
	m.watchStop = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (m *Monitor) watchSiblings(ctx context.Context) {
	ch, err := m.store.WatchActivity(ctx)
	if err != nil {
		// Cross-process rearm degrades to local-activity-only.
		m.logger.Warn("activity watch unavailable", zap.Error(err))
		return
	}
	for range ch {
		m.rearm()
	}
}

func (m *Monitor) rearm() {
	m.mu.Lock()
	if m.armed {
		m.timer.Reset(m.idle)
	}
	m.mu.Unlock()
}

func (m *Monitor) expire() {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return
	}
	m.armed = false
	stop := m.watchStop
	m.watchStop = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	m.logger.Info("inactivity timeout reached")
	m.onExpire()
}

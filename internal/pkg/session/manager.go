// internal/pkg/session/manager.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"gestia-service/internal/domain/auth"
	"gestia-service/internal/store"
)

// State of the session lifecycle. Loading lasts until the identity client
// publishes its first auth event; no auth decision may be made before that,
// or a freshly restarted process would bounce restored sessions to login.
type State int

const (
	StateLoading State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Forced-logout reasons, recorded in the audit trail and metrics.
const (
	ReasonMismatch = "session_mismatch"
	ReasonTampered = "validation_failed"
	ReasonIdle     = "idle_timeout"
	ReasonExplicit = "user_logout"
)

// Snapshot is an immutable view of the session state.
type Snapshot struct {
	State        State
	User         *auth.User
	SessionValid bool
}

// IsAuthenticated holds iff a user is present and the session record checks
// out. It is false in every other state, Loading included.
func (s Snapshot) IsAuthenticated() bool {
	return s.State == StateAuthenticated && s.User != nil && s.SessionValid
}

// AuthClient is the slice of the identity client the manager needs.
type AuthClient interface {
	Subscribe(fn func(*auth.User)) func()
	Logout(ctx context.Context) error
}

// AuditLog records auth events. Writes are best effort: an audit failure
// never blocks a state transition.
type AuditLog interface {
	RecordEvent(ctx context.Context, ev *auth.AuthEvent) error
}

// Metrics is implemented by the Prometheus collector.
type Metrics interface {
	RecordLogout(kind, reason string)
	SetAuthenticated(authenticated bool)
}

// Config holds the lifecycle policy values. They are policy, not structure:
// always taken from configuration, never hardcoded at call sites.
type Config struct {
	IdleTimeout      time.Duration
	ValidateInterval time.Duration
	TouchDebounce    time.Duration
}

// Manager owns the session lifecycle: it reconciles identity-provider events
// against the local session records, revalidates periodically, enforces the
// inactivity timeout through its Monitor, and publishes state snapshots to
// subscribers. It is an explicitly constructed service object; there are no
// package-level singletons.
type Manager struct {
	client    AuthClient
	store     *store.Store
	validator *Validator
	monitor   *Monitor
	audit     AuditLog
	metrics   Metrics
	logger    *zap.Logger
	interval  time.Duration

	mu       sync.Mutex
	state    State
	user     *auth.User
	valid    bool
	closed   bool
	unsub    func()
	tickStop context.CancelFunc
	subs     map[int]func(Snapshot)
	nextSub  int
}

func NewManager(client AuthClient, st *store.Store, cfg Config, audit AuditLog, metrics Metrics, logger *zap.Logger) *Manager {
	m := &Manager{
		client:   client,
		store:    st,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		interval: cfg.ValidateInterval,
		state:    StateLoading,
		subs:     make(map[int]func(Snapshot)),
	}
	m.validator = NewValidator(st)
	m.monitor = NewMonitor(st, cfg.IdleTimeout, cfg.TouchDebounce, m.handleIdleExpiry, logger)
	return m
}

// Start subscribes to the identity client. Call before the client's own
// Start so the initial auth event is not missed.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.unsub != nil {
		return
	}
	m.unsub = m.client.Subscribe(m.onAuthStateChanged)
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, User: m.user, SessionValid: m.valid}
}

// SubscribeState registers a callback invoked after every published state
// change. Returns an unsubscribe func.
func (m *Manager) SubscribeState(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Logout is idempotent: while already unauthenticated it is a no-op success
// and the provider is not contacted again. Otherwise the local records are
// cleared and the state transitions to unauthenticated even if the provider
// sign-out fails; the provider error is returned for display only.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.closed || m.state == StateUnauthenticated {
		m.mu.Unlock()
		return nil
	}
	uid := ""
	if m.user != nil {
		uid = m.user.UID
	}
	m.mu.Unlock()

	err := m.client.Logout(ctx)
	m.setUnauthenticated()
	if m.metrics != nil {
		m.metrics.RecordLogout("explicit", ReasonExplicit)
	}
	m.recordEvent(ctx, uid, auth.EventLogout, ReasonExplicit)
	return err
}

// Touch registers user activity with the inactivity monitor.
func (m *Manager) Touch(ctx context.Context) {
	m.monitor.Touch(ctx)
}

// Resume treats a client re-attach (tab becoming visible again, websocket
// reconnect) as activity for this process.
func (m *Manager) Resume() {
	m.monitor.Resume()
}

// Close tears the manager down: validation loop, monitor and the provider
// subscription are all released. Provider callbacks arriving afterwards are
// ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsub := m.unsub
	m.unsub = nil
	stop := m.tickStop
	m.tickStop = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if stop != nil {
		stop()
	}
	m.monitor.Disarm()
}

// onAuthStateChanged is the single entry point for provider events.
func (m *Manager) onAuthStateChanged(user *auth.User) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if user == nil {
		m.setUnauthenticated()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if m.validator.Valid(ctx, user) {
		m.setAuthenticated(user)
		return
	}

	// Stale or mismatched local record: self-heal with a clean logout rather
	// than leaving a confused half-session behind.
	m.logger.Warn("session mismatch detected, forcing logout", zap.String("uid", user.UID))
	m.forceLogout(ctx, user.UID, auth.EventForcedLogout, ReasonMismatch)
}

func (m *Manager) setAuthenticated(user *auth.User) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.state = StateAuthenticated
	m.user = user
	m.valid = true

	startLoop := m.tickStop == nil
	var loopCtx context.Context
	if startLoop {
		loopCtx, m.tickStop = context.WithCancel(context.Background())
	}
	m.mu.Unlock()

	m.monitor.Arm()
	if startLoop {
		go m.runValidation(loopCtx)
	}
	if m.metrics != nil {
		m.metrics.SetAuthenticated(true)
	}
	m.publish()
}

// setUnauthenticated is idempotent; repeated calls after the first transition
// publish nothing.
func (m *Manager) setUnauthenticated() {
	m.mu.Lock()
	if m.closed || m.state == StateUnauthenticated {
		m.mu.Unlock()
		return
	}
	m.state = StateUnauthenticated
	m.user = nil
	m.valid = false
	stop := m.tickStop
	m.tickStop = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	m.monitor.Disarm()
	if m.metrics != nil {
		m.metrics.SetAuthenticated(false)
	}
	m.publish()
}

// forceLogout performs store clear + provider sign-out before the resulting
// unauthenticated state becomes observable, so a guard reacting to the new
// state cannot find a stale session record.
func (m *Manager) forceLogout(ctx context.Context, uid, eventType, reason string) {
	if err := m.client.Logout(ctx); err != nil {
		// Logged, not retried. The local transition below happens regardless:
		// fail safe toward logged out, never toward staying logged in.
		m.logger.Error("provider sign-out failed during forced logout",
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
	m.setUnauthenticated()
	if m.metrics != nil {
		m.metrics.RecordLogout("forced", reason)
	}
	m.recordEvent(ctx, uid, eventType, reason)
}

func (m *Manager) handleIdleExpiry() {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic in forced-logout handler", zap.Any("panic", r))
			m.setUnauthenticated()
		}
	}()

	m.mu.Lock()
	st := m.state
	uid := ""
	if m.user != nil {
		uid = m.user.UID
	}
	m.mu.Unlock()

	if st != StateAuthenticated {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m.logger.Info("forcing logout after inactivity", zap.String("uid", uid))
	m.forceLogout(ctx, uid, auth.EventIdleTimeout, ReasonIdle)
}

func (m *Manager) runValidation(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.revalidate()
		}
	}
}

// revalidate is the periodic half of the event+polling hybrid: it catches
// session records tampered with between provider events.
func (m *Manager) revalidate() {
	m.mu.Lock()
	user := m.user
	st := m.state
	m.mu.Unlock()

	if st != StateAuthenticated || user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if m.validator.Valid(ctx, user) {
		return
	}

	m.logger.Warn("session no longer valid, forcing logout", zap.String("uid", user.UID))
	m.forceLogout(ctx, user.UID, auth.EventForcedLogout, ReasonTampered)
}

func (m *Manager) publish() {
	m.mu.Lock()
	snap := Snapshot{State: m.state, User: m.user, SessionValid: m.valid}
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (m *Manager) recordEvent(ctx context.Context, uid, eventType, reason string) {
	if m.audit == nil {
		return
	}
	ev := &auth.AuthEvent{
		ID:         ulid.Make().String(),
		UserID:     uid,
		Type:       eventType,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
	if err := m.audit.RecordEvent(ctx, ev); err != nil {
		m.logger.Warn("failed to record auth event", zap.String("type", eventType), zap.Error(err))
	}
}

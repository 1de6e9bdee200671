package identity

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"gestia-service/internal/domain/auth"
	xerrors "gestia-service/internal/pkg/errors"
	"gestia-service/internal/store"
)

// --- mocks ---

type mockProvider struct {
	signUpFn   func(ctx context.Context, email, password, displayName string) (*auth.User, error)
	signInFn   func(ctx context.Context, email, password string) (*auth.User, error)
	restoreFn  func(ctx context.Context, uid string) (*auth.User, error)
	signOutFn  func(ctx context.Context) error
	signOutAll int
}

func (m *mockProvider) SignUp(ctx context.Context, email, password, displayName string) (*auth.User, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password, displayName)
	}
	return nil, errors.New("not configured")
}

func (m *mockProvider) SignIn(ctx context.Context, email, password string) (*auth.User, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, errors.New("not configured")
}

func (m *mockProvider) ExchangeIDToken(ctx context.Context, idToken string) (*auth.User, error) {
	return nil, errors.New("not configured")
}

func (m *mockProvider) Restore(ctx context.Context, uid string) (*auth.User, error) {
	if m.restoreFn != nil {
		return m.restoreFn(ctx, uid)
	}
	return nil, xerrors.ErrNoSession
}

func (m *mockProvider) SignOut(ctx context.Context) error {
	m.signOutAll++
	if m.signOutFn != nil {
		return m.signOutFn(ctx)
	}
	return nil
}

func (m *mockProvider) SendPasswordReset(ctx context.Context, email string) error {
	return nil
}

func newTestClient(p Provider) (*Client, *store.Store, *store.MemoryScope, *store.MemoryScope) {
	durable := store.NewMemoryScope()
	volatile := store.NewMemoryScope()
	st := store.New(durable, volatile, zap.NewNop())
	return NewClient(p, st, zap.NewNop()), st, durable, volatile
}

func userAlice() *auth.User {
	return &auth.User{UID: "uid-alice", Email: "alice@example.com"}
}

// --- tests ---

func TestLogin_PersistsRecordAndEmits(t *testing.T) {
	provider := &mockProvider{
		signInFn: func(ctx context.Context, email, password string) (*auth.User, error) {
			return userAlice(), nil
		},
	}
	client, st, _, _ := newTestClient(provider)

	var events []*auth.User
	client.Subscribe(func(u *auth.User) { events = append(events, u) })

	user, err := client.Login(context.Background(), "alice@example.com", "secret", true)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.UID != "uid-alice" {
		t.Errorf("UID = %q, want uid-alice", user.UID)
	}

	rec, err := st.LoadRecord(context.Background())
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if rec.UserID != "uid-alice" || !rec.RememberMe {
		t.Errorf("record = %+v, want remembered uid-alice", rec)
	}

	if len(events) != 1 || events[0] == nil || events[0].UID != "uid-alice" {
		t.Errorf("expected one non-nil auth event, got %v", events)
	}
}

func TestRegister_PersistsRecordAndEmits(t *testing.T) {
	provider := &mockProvider{
		signUpFn: func(ctx context.Context, email, password, displayName string) (*auth.User, error) {
			return &auth.User{UID: "uid-new", Email: email, DisplayName: displayName}, nil
		},
	}
	client, st, _, _ := newTestClient(provider)

	var events []*auth.User
	client.Subscribe(func(u *auth.User) { events = append(events, u) })

	user, err := client.Register(context.Background(), "new@example.com", "secret", "New User", false)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.UID != "uid-new" || user.DisplayName != "New User" {
		t.Errorf("user = %+v, want uid-new / New User", user)
	}

	rec, err := st.LoadRecord(context.Background())
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if rec.UserID != "uid-new" || rec.RememberMe {
		t.Errorf("record = %+v, want volatile uid-new", rec)
	}

	if len(events) != 1 || events[0] == nil || events[0].UID != "uid-new" {
		t.Errorf("expected one non-nil auth event, got %v", events)
	}
}

func TestRegister_FailureDoesNotTouchStore(t *testing.T) {
	provider := &mockProvider{
		signUpFn: func(ctx context.Context, email, password, displayName string) (*auth.User, error) {
			return nil, &ProviderError{Code: "EMAIL_EXISTS", Message: "an account with this email already exists"}
		},
	}
	client, st, _, _ := newTestClient(provider)

	if _, err := client.Register(context.Background(), "new@example.com", "secret", "", false); err == nil {
		t.Fatal("expected register error")
	}
	if _, err := st.LoadRecord(context.Background()); !errors.Is(err, xerrors.ErrNotFound) {
		t.Errorf("expected no record after failed registration, got %v", err)
	}
}

func TestLogin_FailureDoesNotTouchStore(t *testing.T) {
	provider := &mockProvider{
		signInFn: func(ctx context.Context, email, password string) (*auth.User, error) {
			return nil, &ProviderError{Code: "INVALID_PASSWORD", Message: "invalid email or password"}
		},
	}
	client, st, _, _ := newTestClient(provider)

	if _, err := client.Login(context.Background(), "alice@example.com", "wrong", true); err == nil {
		t.Fatal("expected login error")
	}
	if _, err := st.LoadRecord(context.Background()); !errors.Is(err, xerrors.ErrNotFound) {
		t.Errorf("expected no record after failed login, got %v", err)
	}
}

func TestLogout_ClearsBothScopesAndEmitsNil(t *testing.T) {
	provider := &mockProvider{}
	client, _, durable, volatile := newTestClient(provider)
	ctx := context.Background()

	// Bug state on purpose: records in both scopes.
	_ = durable.Set(ctx, store.KeyAuthUserID, "uid-alice")
	_ = volatile.Set(ctx, store.KeyAuthUserID, "uid-alice")

	var events []*auth.User
	client.Subscribe(func(u *auth.User) { events = append(events, u) })

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, err := durable.Get(ctx, store.KeyAuthUserID); !errors.Is(err, xerrors.ErrNotFound) {
		t.Error("durable record not cleared")
	}
	if _, err := volatile.Get(ctx, store.KeyAuthUserID); !errors.Is(err, xerrors.ErrNotFound) {
		t.Error("volatile record not cleared")
	}
	if len(events) != 1 || events[0] != nil {
		t.Errorf("expected one nil auth event, got %v", events)
	}
}

func TestLogout_ProviderFailureStillClearsAndEmits(t *testing.T) {
	provider := &mockProvider{
		signOutFn: func(ctx context.Context) error {
			return errors.New("network down")
		},
	}
	client, _, durable, _ := newTestClient(provider)
	ctx := context.Background()
	_ = durable.Set(ctx, store.KeyAuthUserID, "uid-alice")

	var gotNil bool
	client.Subscribe(func(u *auth.User) { gotNil = u == nil })

	if err := client.Logout(ctx); err == nil {
		t.Error("expected provider sign-out error to surface")
	}
	if _, err := durable.Get(ctx, store.KeyAuthUserID); !errors.Is(err, xerrors.ErrNotFound) {
		t.Error("record must be cleared even when provider sign-out fails")
	}
	if !gotNil {
		t.Error("signed-out state must be published even when provider sign-out fails")
	}
}

func TestStart_RestoresSessionFromRecord(t *testing.T) {
	provider := &mockProvider{
		restoreFn: func(ctx context.Context, uid string) (*auth.User, error) {
			if uid != "uid-alice" {
				return nil, xerrors.ErrNoSession
			}
			return userAlice(), nil
		},
	}
	client, st, _, _ := newTestClient(provider)
	ctx := context.Background()
	_ = st.SaveRecord(ctx, auth.SessionRecord{UserID: "uid-alice", RememberMe: true})

	var events []*auth.User
	client.Subscribe(func(u *auth.User) { events = append(events, u) })

	client.Start(ctx)

	if len(events) != 1 || events[0] == nil || events[0].UID != "uid-alice" {
		t.Errorf("expected restored user event, got %v", events)
	}
}

func TestStart_NoRecordEmitsNil(t *testing.T) {
	client, _, _, _ := newTestClient(&mockProvider{})

	var events []*auth.User
	client.Subscribe(func(u *auth.User) { events = append(events, u) })

	client.Start(context.Background())

	if len(events) != 1 || events[0] != nil {
		t.Errorf("expected a single nil event, got %v", events)
	}
}

func TestSubscribe_UnsubscribeStopsEvents(t *testing.T) {
	client, _, _, _ := newTestClient(&mockProvider{})

	count := 0
	unsubscribe := client.Subscribe(func(*auth.User) { count++ })

	client.Start(context.Background())
	unsubscribe()
	client.Start(context.Background())

	if count != 1 {
		t.Errorf("subscriber called %d times, want 1", count)
	}
}

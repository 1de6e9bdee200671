package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"gestia-service/internal/domain/auth"
	xerrors "gestia-service/internal/pkg/errors"
)

func newTestStore() (*Store, *MemoryScope, *MemoryScope) {
	durable := NewMemoryScope()
	volatile := NewMemoryScope()
	return New(durable, volatile, zap.NewNop()), durable, volatile
}

func scopeHas(t *testing.T, s Scope, key string) bool {
	t.Helper()
	_, err := s.Get(context.Background(), key)
	if err == nil {
		return true
	}
	if errors.Is(err, xerrors.ErrNotFound) {
		return false
	}
	t.Fatalf("unexpected scope error: %v", err)
	return false
}

func TestSaveRecord_RememberMeUsesDurableScopeOnly(t *testing.T) {
	st, durable, volatile := newTestStore()

	err := st.SaveRecord(context.Background(), auth.SessionRecord{UserID: "u-1", RememberMe: true})
	if err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	if !scopeHas(t, durable, KeyAuthUserID) {
		t.Error("expected record in durable scope")
	}
	if scopeHas(t, volatile, KeyAuthUserID) {
		t.Error("expected no record in volatile scope")
	}
}

func TestSaveRecord_SessionOnlyUsesVolatileScopeOnly(t *testing.T) {
	st, durable, volatile := newTestStore()

	err := st.SaveRecord(context.Background(), auth.SessionRecord{UserID: "u-1", RememberMe: false})
	if err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	if scopeHas(t, durable, KeyAuthUserID) {
		t.Error("expected no record in durable scope")
	}
	if !scopeHas(t, volatile, KeyAuthUserID) {
		t.Error("expected record in volatile scope")
	}
}

func TestSaveRecord_ReplacesRecordInOtherScope(t *testing.T) {
	st, durable, volatile := newTestStore()
	ctx := context.Background()

	if err := st.SaveRecord(ctx, auth.SessionRecord{UserID: "u-1", RememberMe: true}); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if err := st.SaveRecord(ctx, auth.SessionRecord{UserID: "u-1", RememberMe: false}); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	if scopeHas(t, durable, KeyAuthUserID) {
		t.Error("durable record should have been replaced by volatile one")
	}
	if !scopeHas(t, volatile, KeyAuthUserID) {
		t.Error("expected record in volatile scope")
	}
}

func TestLoadRecord_PrefersDurableScope(t *testing.T) {
	st, durable, volatile := newTestStore()
	ctx := context.Background()

	// Bug state: both scopes hold a record. Durable wins.
	if err := durable.Set(ctx, KeyAuthUserID, "u-durable"); err != nil {
		t.Fatal(err)
	}
	if err := volatile.Set(ctx, KeyAuthUserID, "u-volatile"); err != nil {
		t.Fatal(err)
	}

	rec, err := st.LoadRecord(ctx)
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if rec.UserID != "u-durable" {
		t.Errorf("UserID = %q, want %q", rec.UserID, "u-durable")
	}
	if !rec.RememberMe {
		t.Error("record from durable scope should have RememberMe set")
	}
}

func TestLoadRecord_FallsBackToVolatileScope(t *testing.T) {
	st, _, volatile := newTestStore()
	ctx := context.Background()

	if err := volatile.Set(ctx, KeyAuthUserID, "u-volatile"); err != nil {
		t.Fatal(err)
	}

	rec, err := st.LoadRecord(ctx)
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if rec.UserID != "u-volatile" {
		t.Errorf("UserID = %q, want %q", rec.UserID, "u-volatile")
	}
	if rec.RememberMe {
		t.Error("record from volatile scope should not have RememberMe set")
	}
}

func TestLoadRecord_NoRecord(t *testing.T) {
	st, _, _ := newTestStore()

	_, err := st.LoadRecord(context.Background())
	if !errors.Is(err, xerrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClearRecord_ClearsBothScopes(t *testing.T) {
	st, durable, volatile := newTestStore()
	ctx := context.Background()

	if err := durable.Set(ctx, KeyAuthUserID, "u-1"); err != nil {
		t.Fatal(err)
	}
	if err := volatile.Set(ctx, KeyAuthUserID, "u-1"); err != nil {
		t.Fatal(err)
	}

	if err := st.ClearRecord(ctx); err != nil {
		t.Fatalf("ClearRecord: %v", err)
	}

	if scopeHas(t, durable, KeyAuthUserID) {
		t.Error("durable record not cleared")
	}
	if scopeHas(t, volatile, KeyAuthUserID) {
		t.Error("volatile record not cleared")
	}
}

func TestWatchActivity_DeliversSiblingWrites(t *testing.T) {
	st, _, _ := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := st.WatchActivity(ctx)
	if err != nil {
		t.Fatalf("WatchActivity: %v", err)
	}

	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := st.TouchActivity(ctx, want); err != nil {
		t.Fatalf("TouchActivity: %v", err)
	}

	select {
	case got := <-ch:
		if !got.Equal(want) {
			t.Errorf("timestamp = %v, want %v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("did not observe activity write")
	}
}

func TestWatchActivity_ChannelClosesOnCancel(t *testing.T) {
	st, _, _ := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := st.WatchActivity(ctx)
	if err != nil {
		t.Fatalf("WatchActivity: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel did not close after cancel")
	}
}

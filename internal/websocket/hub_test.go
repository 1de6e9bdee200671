package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	wstypes "gestia-service/internal/domain/websocket"
	"gestia-service/internal/pkg/session"
)

type stubSessions struct {
	mu      sync.Mutex
	touched int
	resumed int
	snap    session.Snapshot
}

func (s *stubSessions) Touch(_ context.Context) {
	s.mu.Lock()
	s.touched++
	s.mu.Unlock()
}

func (s *stubSessions) Resume() {
	s.mu.Lock()
	s.resumed++
	s.mu.Unlock()
}

func (s *stubSessions) Snapshot() session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *stubSessions) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched, s.resumed
}

func recvMessage(t *testing.T, c *Client) *wstypes.WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg wstypes.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		return &msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func TestHub_BroadcastReachesAttachedClients(t *testing.T) {
	sessions := &stubSessions{}
	hub := NewHub(sessions, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c1 := NewClient(hub, nil, "u1", zap.NewNop())
	c2 := NewClient(hub, nil, "u2", zap.NewNop())
	if !hub.Attach(c1) || !hub.Attach(c2) {
		t.Fatal("attach rejected while hub is running")
	}

	hub.BroadcastSnapshot(session.Snapshot{
		State:        session.StateAuthenticated,
		User:         nil,
		SessionValid: true,
	})

	for _, c := range []*Client{c1, c2} {
		msg := recvMessage(t, c)
		if msg.Type != wstypes.EventTypeSessionState {
			t.Errorf("type = %q, want %q", msg.Type, wstypes.EventTypeSessionState)
		}
	}

	if _, resumed := sessions.counts(); resumed != 2 {
		t.Errorf("resumed = %d, want 2", resumed)
	}
}

func TestHub_UnauthenticatedSnapshotIsForceLogout(t *testing.T) {
	hub := NewHub(&stubSessions{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := NewClient(hub, nil, "u1", zap.NewNop())
	hub.Attach(c)

	hub.BroadcastSnapshot(session.Snapshot{State: session.StateUnauthenticated})

	msg := recvMessage(t, c)
	if msg.Type != wstypes.EventTypeForceLogout {
		t.Errorf("type = %q, want %q", msg.Type, wstypes.EventTypeForceLogout)
	}
}

func TestHub_ActivityFrameTouchesSession(t *testing.T) {
	sessions := &stubSessions{}
	hub := NewHub(sessions, zap.NewNop())
	c := NewClient(hub, nil, "u1", zap.NewNop())

	hub.HandleClientMessage(context.Background(), c, &wstypes.WSMessage{Type: wstypes.EventTypeActivity})

	if touched, _ := sessions.counts(); touched != 1 {
		t.Errorf("touched = %d, want 1", touched)
	}

	hub.HandleClientMessage(context.Background(), c, &wstypes.WSMessage{Type: wstypes.EventTypePing})
	if msg := recvMessage(t, c); msg.Type != wstypes.EventTypePong {
		t.Errorf("type = %q, want %q", msg.Type, wstypes.EventTypePong)
	}
}

func TestHub_DetachAfterShutdownDoesNotBlock(t *testing.T) {
	hub := NewHub(&stubSessions{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()
	<-hub.done

	if hub.Attach(NewClient(hub, nil, "u1", zap.NewNop())) {
		t.Error("attach accepted after shutdown")
	}

	finished := make(chan struct{})
	go func() {
		hub.detach(NewClient(hub, nil, "u2", zap.NewNop()))
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("detach blocked after hub shutdown")
	}
}

func TestHub_ShutdownClosesClientSendChannels(t *testing.T) {
	hub := NewHub(&stubSessions{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := NewClient(hub, nil, "u1", zap.NewNop())
	hub.Attach(c)
	cancel()
	<-hub.done

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected closed send channel, got message")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed on shutdown")
	}
}

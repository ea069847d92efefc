package sessions_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/sessions"
)

func TestStateMachine_HappyPath(t *testing.T) {
	s := sessions.New(sessions.WithUserID("alice"))
	if s.SessionID() == "" {
		t.Fatalf("expected generated session id")
	}
	if s.Phase() != sessions.PhaseUninitialized {
		t.Fatalf("unexpected initial phase %s", s.Phase())
	}
	if err := s.RequireReady("tools/list"); !errors.Is(err, sessions.ErrInvalidPhase) {
		t.Fatalf("expected phase error before init, got %v", err)
	} else if err.Error() != "server not initialized" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	info := sessions.ClientInfo{Name: "test-client", Version: "1.0.0"}
	if err := s.BeginInitialize(mcp.LatestProtocolVersion, info, mcp.ClientCapabilities{}); err != nil {
		t.Fatalf("begin initialize: %v", err)
	}
	if s.Phase() != sessions.PhaseInitializing {
		t.Fatalf("expected initializing, got %s", s.Phase())
	}
	if err := s.RequireReady("tools/call"); err == nil {
		t.Fatalf("tools must be rejected while initializing")
	}
	if !s.MarkInitialized() {
		t.Fatalf("expected transition to ready")
	}
	if err := s.RequireReady("tools/call"); err != nil {
		t.Fatalf("ready session rejected request: %v", err)
	}
	if s.ProtocolVersion() != mcp.LatestProtocolVersion || s.ClientInfo() != info || s.UserID() != "alice" {
		t.Fatalf("session metadata not recorded")
	}
}

func TestStateMachine_RejectsSecondInitialize(t *testing.T) {
	s := sessions.New()
	if err := s.BeginInitialize(mcp.LatestProtocolVersion, sessions.ClientInfo{}, mcp.ClientCapabilities{}); err != nil {
		t.Fatal(err)
	}
	err := s.BeginInitialize(mcp.LatestProtocolVersion, sessions.ClientInfo{}, mcp.ClientCapabilities{})
	var pe *sessions.PhaseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PhaseError, got %v", err)
	}
	if pe.Phase != sessions.PhaseInitializing || err.Error() != "server already initialized" {
		t.Fatalf("unexpected error %+v (%q)", pe, err.Error())
	}
}

func TestStateMachine_InitializedIgnoredOutOfOrder(t *testing.T) {
	s := sessions.New()
	if s.MarkInitialized() {
		t.Fatalf("initialized before initialize must be ignored")
	}
	if s.Phase() != sessions.PhaseUninitialized {
		t.Fatalf("phase changed: %s", s.Phase())
	}
}

func TestStateMachine_CloseIsTerminal(t *testing.T) {
	s := sessions.New(sessions.WithSessionID("fixed"))
	if s.SessionID() != "fixed" {
		t.Fatalf("session id option ignored")
	}
	if !s.Close() {
		t.Fatalf("first close should transition")
	}
	if s.Close() {
		t.Fatalf("second close should be a no-op")
	}
	if err := s.BeginInitialize("", sessions.ClientInfo{}, mcp.ClientCapabilities{}); err == nil || err.Error() != "session closed" {
		t.Fatalf("expected session closed, got %v", err)
	}
	if err := s.RequireOpen("ping"); !errors.Is(err, sessions.ErrInvalidPhase) {
		t.Fatalf("expected closed session to reject ping, got %v", err)
	}
}

func TestStateMachine_ConcurrentInitializeHasOneWinner(t *testing.T) {
	s := sessions.New()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.BeginInitialize(mcp.LatestProtocolVersion, sessions.ClientInfo{}, mcp.ClientCapabilities{}) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one successful initialize, got %d", wins)
	}
}

package sessions

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/google/uuid"
)

// Phase is a session's position in the initialization handshake.
type Phase int

const (
	// PhaseUninitialized is the phase of a freshly created session.
	PhaseUninitialized Phase = iota
	// PhaseInitializing follows an accepted initialize request and lasts
	// until the client confirms with the initialized notification.
	PhaseInitializing
	// PhaseReady accepts every request.
	PhaseReady
	// PhaseClosed is terminal.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitializing:
		return "initializing"
	case PhaseReady:
		return "ready"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ErrInvalidPhase is matched by every *PhaseError.
var ErrInvalidPhase = errors.New("invalid session phase")

// PhaseError reports a request that is not permitted in the session's
// current phase.
type PhaseError struct {
	Method string
	Phase  Phase
}

func (e *PhaseError) Error() string {
	switch {
	case e.Phase == PhaseClosed:
		return "session closed"
	case e.Method == string(mcp.InitializeMethod):
		return "server already initialized"
	default:
		return "server not initialized"
	}
}

func (e *PhaseError) Is(target error) bool { return target == ErrInvalidPhase }

// StateMachine is the concrete per-connection session. Only its own
// transition methods mutate it.
type StateMachine struct {
	id     string
	userID string

	mu              sync.RWMutex
	phase           Phase
	protocolVersion string
	clientInfo      ClientInfo
	clientCaps      mcp.ClientCapabilities
}

var _ Session = (*StateMachine)(nil)

// Option configures a StateMachine created by New.
type Option func(*StateMachine)

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(s *StateMachine) { s.id = id }
}

// WithUserID records the principal the session runs on behalf of.
func WithUserID(userID string) Option {
	return func(s *StateMachine) { s.userID = userID }
}

// New creates a session in PhaseUninitialized with a random UUID id.
func New(opts ...Option) *StateMachine {
	s := &StateMachine{id: uuid.NewString()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StateMachine) SessionID() string { return s.id }

func (s *StateMachine) UserID() string { return s.userID }

func (s *StateMachine) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocolVersion
}

func (s *StateMachine) ClientInfo() ClientInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientInfo
}

func (s *StateMachine) ClientCapabilities() mcp.ClientCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientCaps
}

// Phase returns the current phase.
func (s *StateMachine) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// BeginInitialize accepts an initialize request. It is only valid in
// PhaseUninitialized and moves the session to PhaseInitializing.
func (s *StateMachine) BeginInitialize(protocolVersion string, info ClientInfo, caps mcp.ClientCapabilities) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseUninitialized {
		return &PhaseError{Method: string(mcp.InitializeMethod), Phase: s.phase}
	}
	s.phase = PhaseInitializing
	s.protocolVersion = protocolVersion
	s.clientInfo = info
	s.clientCaps = caps
	return nil
}

// MarkInitialized completes the handshake. It reports whether the session
// moved to PhaseReady; in any phase other than PhaseInitializing it does
// nothing.
func (s *StateMachine) MarkInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseInitializing {
		return false
	}
	s.phase = PhaseReady
	return true
}

// RequireReady returns a *PhaseError unless the session is in PhaseReady.
func (s *StateMachine) RequireReady(method string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.phase != PhaseReady {
		return &PhaseError{Method: method, Phase: s.phase}
	}
	return nil
}

// RequireOpen returns a *PhaseError if the session is closed.
func (s *StateMachine) RequireOpen(method string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.phase == PhaseClosed {
		return &PhaseError{Method: method, Phase: s.phase}
	}
	return nil
}

// Close moves the session to PhaseClosed. It reports whether this call
// performed the transition.
func (s *StateMachine) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return false
	}
	s.phase = PhaseClosed
	return true
}

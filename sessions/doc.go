// Package sessions defines the session abstraction shared by the transport,
// the dispatcher and tool code. A session represents the negotiated protocol
// version, the principal it runs on behalf of, and the client's declared
// identity and capabilities for one connected peer.
//
// # Phases
//
// StateMachine is the concrete session. It walks a fixed handshake:
//
//	uninitialized --initialize--> initializing --initialized--> ready
//	      \________________\_____________________\______close--> closed
//
// Transitions are only ever made by the StateMachine's own methods and are
// safe for concurrent use. Requests that arrive in the wrong phase are
// rejected with a *PhaseError, which matches ErrInvalidPhase via errors.Is.
//
// Tools receive the narrower Session interface so they can inspect, but never
// drive, the handshake.
package sessions

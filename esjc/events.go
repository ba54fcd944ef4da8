package esjc

import "github.com/michael-schnell/esjc/internal/engine"

// Listener receives connection lifecycle notifications (§6). Implementations
// must not block; callbacks run on the Connection's configured Executor.
type Listener interface {
	ClientConnected(remote string)
	ClientDisconnected()
	ClientReconnecting()
	ConnectionClosed(cause error)
	ErrorOccurred(cause error)
	AuthenticationFailed()
}

// engineListenerAdapter bridges the public Listener to internal
// engine.Listener, which this package depends on but does not re-export.
type engineListenerAdapter struct{ l Listener }

func (a engineListenerAdapter) ClientConnected(remote string)  { a.l.ClientConnected(remote) }
func (a engineListenerAdapter) ClientDisconnected()             { a.l.ClientDisconnected() }
func (a engineListenerAdapter) ClientReconnecting()             { a.l.ClientReconnecting() }
func (a engineListenerAdapter) ConnectionClosed(cause error)    { a.l.ConnectionClosed(cause) }
func (a engineListenerAdapter) ErrorOccurred(cause error)       { a.l.ErrorOccurred(cause) }
func (a engineListenerAdapter) AuthenticationFailed()           { a.l.AuthenticationFailed() }

var _ engine.Listener = engineListenerAdapter{}

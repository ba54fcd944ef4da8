package tasks

import "github.com/google/uuid"

// NodeEndpoints is a resolved pair of addresses for a candidate node: a
// plaintext TCP endpoint and an optional TLS endpoint.
type NodeEndpoints struct {
	TCP       string
	SecureTCP string
}

// StartConnection requests the engine begin connecting. The engine sends one
// value on Done once the connect attempt resolves: nil on success, the error
// on failure. Done is never closed.
type StartConnection struct {
	Done chan error
}

func (StartConnection) isTask() {}

// CloseConnection requests the engine tear the connection down permanently.
type CloseConnection struct {
	Reason string
	Cause  error
}

func (CloseConnection) isTask() {}

// EstablishTCPConnection requests the engine dial one of the resolved
// endpoints.
type EstablishTCPConnection struct {
	Endpoints NodeEndpoints
}

func (EstablishTCPConnection) isTask() {}

// TCPConnectionEstablished reports that the transport finished dialing.
type TCPConnectionEstablished struct {
	ChannelID uuid.UUID
	Err       error
}

func (TCPConnectionEstablished) isTask() {}

// TCPConnectionClosed reports that the active channel's transport closed,
// whether cleanly or due to an error.
type TCPConnectionClosed struct {
	ChannelID uuid.UUID
	Cause     error
}

func (TCPConnectionClosed) isTask() {}

// AuthenticationCompleted reports the outcome of the authentication
// handshake on the current channel.
type AuthenticationCompleted struct {
	ChannelID uuid.UUID
	Status    AuthStatus
}

func (AuthenticationCompleted) isTask() {}

// AuthStatus is the completion state of the authentication handshake.
type AuthStatus int

// Recognized AuthStatus values.
const (
	AuthSuccess AuthStatus = iota
	AuthFailed
	AuthTimeout
	AuthIgnored
)

// ReconnectTo asks the engine to abandon the current channel (if any) and
// reconnect to the given endpoints, used for NotMaster-style redirects.
type ReconnectTo struct {
	Endpoints NodeEndpoints
}

func (ReconnectTo) isTask() {}

// Tick is emitted by the engine's periodic ticker to drive reconnection
// backoff and operation-timeout sweeps.
type Tick struct{}

func (Tick) isTask() {}

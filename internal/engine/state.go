// Package engine owns the connection state machine: it discovers an
// endpoint, dials it, authenticates, and then drives the operation,
// subscription, and heartbeat managers against the live channel, retrying
// the whole sequence on failure until told to close for good.
package engine

import "fmt"

// ConnectionState is the coarse lifecycle state of the engine, derived from
// whether a channel is present/open/active and the current ConnectingPhase.
type ConnectionState int

// Recognized ConnectionState values.
const (
	StateInit ConnectionState = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// ConnectingPhase is the fine-grained phase within StateConnecting (and, for
// Invalid, the momentary gap between a close and re-entering RECONNECTING).
type ConnectingPhase int

// Recognized ConnectingPhase values. Within a single attempt they progress
// monotonically Reconnecting -> EndpointDiscovery -> ConnectionEstablishing
// -> Authentication -> Connected. A failed endpoint discovery, a failed
// dial, a failed authentication or a lost channel routes back to
// Reconnecting; discovered endpoints none of which is usable close the
// connection for good.
const (
	PhaseInvalid ConnectingPhase = iota
	PhaseReconnecting
	PhaseEndpointDiscovery
	PhaseConnectionEstablishing
	PhaseAuthentication
	PhaseConnected
)

func (p ConnectingPhase) String() string {
	switch p {
	case PhaseInvalid:
		return "INVALID"
	case PhaseReconnecting:
		return "RECONNECTING"
	case PhaseEndpointDiscovery:
		return "ENDPOINT_DISCOVERY"
	case PhaseConnectionEstablishing:
		return "CONNECTION_ESTABLISHING"
	case PhaseAuthentication:
		return "AUTHENTICATION"
	case PhaseConnected:
		return "CONNECTED"
	default:
		return fmt.Sprintf("ConnectingPhase(%d)", int(p))
	}
}

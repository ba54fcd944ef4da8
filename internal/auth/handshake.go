// Package auth implements the opening credential exchange: on first
// post-connect event, if credentials are present, send an authentication
// frame and await a response within a timeout. The exchange is a single
// request/response pair, since credentials travel as plaintext login and
// password in the package header rather than through a SASL round trip.
package auth

import (
	"sync"
	"time"

	"github.com/michael-schnell/esjc/internal/proto"
)

// Status is the completion state of the authentication handshake. Exactly
// one Status is emitted per channel, then the handshake removes itself from
// the pipeline.
type Status int

// Recognized Status values.
const (
	// Success: the server accepted the supplied credentials.
	Success Status = iota
	// Failed: the server rejected the supplied credentials.
	Failed
	// Timeout: no response arrived within the deadline.
	Timeout
	// Ignored: no credentials were configured, so no handshake was sent.
	Ignored
)

// Sender writes the authentication request package on the active channel.
type Sender func(proto.Package) error

// Handshake drives one authentication attempt for one channel.
type Handshake struct {
	credentials *proto.Credentials
	timeout     time.Duration
	send        Sender

	mu       sync.Mutex
	done     chan Status
	finished bool
}

// New creates a Handshake. If credentials is nil, Start completes
// immediately with Ignored.
func New(credentials *proto.Credentials, timeout time.Duration, send Sender) *Handshake {
	return &Handshake{
		credentials: credentials,
		timeout:     timeout,
		send:        send,
		done:        make(chan Status, 1),
	}
}

// Start sends the authentication request (if credentials are configured)
// and returns a channel that receives exactly one Status: either
// immediately (Ignored), after a matching response (Success/Failed), or
// after timeout elapses with no response.
func (h *Handshake) Start() (<-chan Status, proto.Package, bool) {
	if h.credentials == nil {
		h.done <- Ignored
		return h.done, proto.Package{}, false
	}

	req := proto.NewPackage(proto.CommandAuthenticate, nil, h.credentials)

	go func() {
		timer := time.NewTimer(h.timeout)
		defer timer.Stop()
		// The caller feeds responses in via Respond; if none arrives
		// before the timer fires, declare Timeout.
		<-timer.C
		h.complete(Timeout)
	}()

	if err := h.send(req); err != nil {
		h.complete(Failed)
	}

	return h.done, req, true
}

// Respond feeds one response package addressed to the handshake's request
// into the state machine. Responses after the handshake has already
// completed (e.g. a timeout already fired) are ignored.
func (h *Handshake) Respond(response proto.Package) {
	switch response.Command {
	case proto.CommandAuthenticated:
		h.complete(Success)
	case proto.CommandNotAuthenticated:
		h.complete(Failed)
	}
}

func (h *Handshake) complete(status Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	h.finished = true
	h.done <- status
}

package esjc

import (
	"github.com/google/uuid"

	"github.com/michael-schnell/esjc/internal/proto"
	"github.com/michael-schnell/esjc/internal/subscriptions"
)

// ResolvedEvent is one event delivered to a subscription listener.
type ResolvedEvent struct {
	Event RecordedEvent
}

// SubscriptionListener receives events and lifecycle notifications for one
// subscription. Implementations must not block; the subscription manager
// dispatches calls on the Connection's configured Executor.
type SubscriptionListener interface {
	OnEvent(event ResolvedEvent)
	OnDropped(reason string, cause error)
}

// Subscription is the caller's handle to a live or pending subscription.
type Subscription struct {
	id     uuid.UUID
	stream string
	conn   *Connection
}

// Acknowledge confirms successful processing of events up to and including
// eventIDs, for a persistent subscription only.
func (s *Subscription) Acknowledge(eventIDs ...[16]byte) error {
	return s.conn.ackPersistent(s.id, eventIDs)
}

// Fail reports that eventIDs could not be processed, for a persistent
// subscription only.
func (s *Subscription) Fail(action NakAction, message string, eventIDs ...[16]byte) error {
	return s.conn.nakPersistent(s.id, action, message, eventIDs)
}

// NakAction tells the server how to treat a negatively acknowledged event
// on a persistent subscription.
type NakAction int

// Recognized NakAction values.
const (
	NakUnknown NakAction = iota
	NakPark
	NakRetry
	NakSkip
	NakStop
)

type nakPayload struct {
	Action     NakAction
	Message    string
	EventIDs   [][16]byte
}

// subscriptionListenerAdapter bridges the internal subscriptions.Listener
// capability set to the public SubscriptionListener, decoding each
// delivered package's payload via codec.
type subscriptionListenerAdapter struct {
	user  SubscriptionListener
	codec Codec
	onID  func(uuid.UUID)
}

func (a *subscriptionListenerAdapter) OnConfirmed(subscriptionID uuid.UUID) {
	if a.onID != nil {
		a.onID(subscriptionID)
	}
}

func (a *subscriptionListenerAdapter) OnEventAppeared(event proto.Package) {
	var w recordedEventWire
	if err := a.codec.Unmarshal(event.Payload, &w); err != nil {
		a.user.OnDropped("malformedEvent", err)
		return
	}
	a.user.OnEvent(ResolvedEvent{Event: w.toRecordedEvent()})
}

func (a *subscriptionListenerAdapter) OnDropped(reason string, cause error) {
	a.user.OnDropped(reason, cause)
}

var _ subscriptions.Listener = (*subscriptionListenerAdapter)(nil)

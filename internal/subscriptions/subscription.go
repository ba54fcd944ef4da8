// Package subscriptions tracks pending and live long-lived, server-pushed
// subscriptions (volatile-stream, volatile-all, persistent), delivering
// events to a user listener and surviving channel loss according to each
// subscription's own retry budget.
package subscriptions

import (
	"github.com/google/uuid"

	"github.com/michael-schnell/esjc/internal/proto"
)

// Kind identifies a Subscription variant.
type Kind int

// Recognized subscription kinds.
const (
	VolatileStream Kind = iota
	VolatileAll
	Persistent
)

// Listener receives events and lifecycle notifications for one subscription.
// Implementations must not block; the manager dispatches calls on the
// caller-supplied executor to keep the control thread free.
type Listener interface {
	OnConfirmed(subscriptionID uuid.UUID)
	OnEventAppeared(event proto.Package)
	OnDropped(reason string, cause error)
}

// Subscription is the capability set every subscription variant
// (volatile-stream, volatile-all, persistent) implements.
type Subscription struct {
	Kind            Kind
	StreamID        string
	ResolveLinkTos  bool
	Credentials     *proto.Credentials
	Listener        Listener
	BufferSize      int
	SubscriptionID  *uuid.UUID
	GroupName       string // persistent subscriptions only
	AutoAck         bool   // persistent subscriptions only
	CreateRequestFn func(correlationID uuid.UUID) proto.Package
}

// CreateRequest builds the subscribe request package for this subscription.
func (s *Subscription) CreateRequest(correlationID uuid.UUID) proto.Package {
	if s.CreateRequestFn != nil {
		return s.CreateRequestFn(correlationID)
	}
	return proto.NewPackage(0x00, []byte(s.StreamID), s.Credentials)
}

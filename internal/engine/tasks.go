package engine

import (
	"github.com/michael-schnell/esjc/internal/operations"
	"github.com/michael-schnell/esjc/internal/proto"
	"github.com/michael-schnell/esjc/internal/subscriptions"
)

// startOperation requests the engine admit a one-shot operation, scheduling
// it on the active channel immediately if connected or deferring it until
// one is available.
type startOperation struct {
	Item *operations.Item
}

func (startOperation) isTask() {}

// startSubscription requests the engine admit a volatile subscription.
type startSubscription struct {
	Item *subscriptions.Item
}

func (startSubscription) isTask() {}

// startPersistentSubscription requests the engine admit a persistent
// subscription, handled identically to startSubscription at this layer --
// the distinction lives in the Subscription's Kind and its own retry
// policy.
type startPersistentSubscription struct {
	Item *subscriptions.Item
}

func (startPersistentSubscription) isTask() {}

// packageInbound reports one package read off the active channel's read
// loop, handed to the control thread for dispatch.
type packageInbound struct {
	Package proto.Package
}

func (packageInbound) isTask() {}

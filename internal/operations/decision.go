package operations

import (
	"github.com/google/uuid"

	"github.com/michael-schnell/esjc/internal/tasks"
)

// Decision is the closed set of actions an Operation's Inspect can return
// in response to a package. Modeled as a tagged union via an unexported
// marker method.
type Decision interface {
	isDecision()
}

// DoNothing leaves the operation in place, awaiting more responses.
type DoNothing struct{}

func (DoNothing) isDecision() {}

// EndOperation completes the operation; its user-visible future resolves.
type EndOperation struct{}

func (EndOperation) isDecision() {}

// Retry asks the manager to re-enqueue the operation with a fresh
// correlation id, subject to the retry budget.
type Retry struct{}

func (Retry) isDecision() {}

// Reconnect asks the manager to re-enqueue the operation and propagate a
// reconnect hint (e.g. a NotMaster redirect) to the engine.
type Reconnect struct {
	Endpoints tasks.NodeEndpoints
}

func (Reconnect) isDecision() {}

// NotHandled means the response did not resolve this operation and more
// responses are awaited without otherwise changing its state.
type NotHandled struct{}

func (NotHandled) isDecision() {}

// NodeEndpoints re-exports tasks.NodeEndpoints so callers of this package
// rarely need to import tasks directly.
type NodeEndpoints = tasks.NodeEndpoints

// ChannelID identifies the TCP channel an item was last scheduled on.
type ChannelID = uuid.UUID

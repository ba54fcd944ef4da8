package engine

import (
	"github.com/michael-schnell/esjc/internal/tasks"
)

// discoveryCompleted reports the outcome of an asynchronous discoverer call.
// Epoch pins it to the attempt that started it; a completion whose epoch no
// longer matches the engine's current discoveryEpoch is stale and dropped.
type discoveryCompleted struct {
	Epoch     uint64
	Endpoints tasks.NodeEndpoints
	Err       error
}

func (discoveryCompleted) isTask() {}

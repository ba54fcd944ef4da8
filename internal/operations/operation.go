// Package operations tracks pending one-shot request/response exchanges
// (appends, reads, deletes, transactional writes, persistent-subscription
// CRUD), correlating responses by id and driving retry/timeout. Payload
// encoding for each operation kind is left to the caller constructing an
// Item; this package only owns correlation, retry, and timeout bookkeeping.
package operations

import (
	"github.com/google/uuid"

	"github.com/michael-schnell/esjc/internal/proto"
)

// Operation is the capability set every operation variant (append, delete,
// read-event, read-stream-fwd/bwd, read-all-fwd/bwd,
// start-/commit-transactional-write, create-/update-/delete-persistent-
// subscription) must implement.
type Operation interface {
	// CreateRequest builds the outbound package for this operation, stamped
	// with the given correlation id.
	CreateRequest(correlationID uuid.UUID) proto.Package

	// Inspect examines a response package addressed to this operation and
	// returns the Decision the manager should act on.
	Inspect(response proto.Package) Decision

	// Fail terminates the operation with err, completing its user-visible
	// future exceptionally.
	Fail(err error)
}

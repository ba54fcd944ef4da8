package operations

import (
	"time"

	"github.com/google/uuid"
)

// Item is the lifecycle wrapper around a pending Operation: enqueued, then
// (once connected) scheduled on the active channel, awaiting response, and
// finally completed or retried with a fresh correlation id.
type Item struct {
	Operation     Operation
	CorrelationID uuid.UUID
	MaxRetries    int
	Timeout       time.Duration
	RetryCount    int
	ChannelID     *ChannelID
	LastUpdated   time.Time
}

// NewItem wraps op for submission to the Manager.
func NewItem(op Operation, maxRetries int, timeout time.Duration) *Item {
	return &Item{
		Operation:   op,
		Timeout:     timeout,
		MaxRetries:  maxRetries,
		LastUpdated: time.Now(),
	}
}

// touch stamps LastUpdated to now, used whenever the item (re)enters a
// waiting-for-response state.
func (it *Item) touch() {
	it.LastUpdated = time.Now()
}

// expired reports whether the item's current attempt has outlived Timeout
// as of now.
func (it *Item) expired(now time.Time) bool {
	return now.Sub(it.LastUpdated) > it.Timeout
}

package subscriptions

import (
	"time"

	"github.com/google/uuid"
)

// Item is the lifecycle wrapper around a pending or live Subscription:
// enqueued, starting, subscribed, and (on drop or disconnect) either
// retried or terminally dropped with a reason.
type Item struct {
	Subscription *Subscription
	MaxRetries   int
	Timeout      time.Duration
	RetryCount   int
	ChannelID    *uuid.UUID
	IsSubscribed bool
	LastUpdated  time.Time
}

// NewItem wraps sub for submission to the Manager.
func NewItem(sub *Subscription, maxRetries int, timeout time.Duration) *Item {
	return &Item{
		Subscription: sub,
		MaxRetries:   maxRetries,
		Timeout:      timeout,
		LastUpdated:  time.Now(),
	}
}

func (it *Item) touch() { it.LastUpdated = time.Now() }

func (it *Item) boundTo(channelID uuid.UUID) bool {
	return it.ChannelID != nil && *it.ChannelID == channelID
}

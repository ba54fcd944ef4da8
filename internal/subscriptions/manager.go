package subscriptions

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/michael-schnell/esjc/internal/esjclog"
	"github.com/michael-schnell/esjc/internal/proto"
)

// Channel is the narrow transport surface the manager needs.
type Channel interface {
	ID() uuid.UUID
	Write(proto.Package) error
}

// Executor runs a listener callback off the control thread.
type Executor func(func())

func defaultExecutor(f func()) { go f() }

// Manager owns the active (correlation id -> item) and waiting (FIFO)
// subscription sets.
type Manager struct {
	mu      sync.Mutex
	active  map[uuid.UUID]*Item
	waiting []*Item

	exec Executor
	log  *esjclog.Logger
}

// NewManager creates a Manager dispatching listener callbacks via exec (the
// default executor spawns a goroutine per callback if exec is nil).
func NewManager(exec Executor, log *esjclog.Logger) *Manager {
	if exec == nil {
		exec = defaultExecutor
	}
	if log == nil {
		log = esjclog.Discard()
	}
	return &Manager{
		active: make(map[uuid.UUID]*Item),
		exec:   exec,
		log:    log,
	}
}

// EnqueueSubscription appends item to the waiting FIFO.
func (m *Manager) EnqueueSubscription(item *Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waiting = append(m.waiting, item)
}

// StartSubscription writes item's subscribe request on channel and binds it
// to channel's id, moving it from waiting into the active set.
func (m *Manager) StartSubscription(item *Item, channel Channel) {
	correlationID := uuid.New()
	req := item.Subscription.CreateRequest(correlationID)
	item.Subscription.SubscriptionID = &correlationID

	cid := channel.ID()
	item.ChannelID = &cid
	item.touch()

	m.mu.Lock()
	m.active[correlationID] = item
	m.mu.Unlock()

	if err := channel.Write(req); err != nil {
		m.log.Warn("subscriptions: write failed, will be swept on disconnect", "error", err)
	}
}

// ScheduleWaiting starts every waiting item on channel.
func (m *Manager) ScheduleWaiting(channel Channel) {
	m.mu.Lock()
	pending := m.waiting
	m.waiting = nil
	m.mu.Unlock()

	for _, item := range pending {
		m.StartSubscription(item, channel)
	}
}

// HandlePackage dispatches one inbound package addressed to a subscription
// correlation id: a confirmation flips IsSubscribed and invokes
// OnConfirmed; a dropped/unsubscribe notification invokes OnDropped and
// either retries or terminally drops the item; anything else is treated as
// a pushed event and handed to OnEventAppeared.
func (m *Manager) HandlePackage(pkg proto.Package) {
	m.mu.Lock()
	item, ok := m.active[pkg.CorrelationID]
	m.mu.Unlock()
	if !ok {
		return
	}

	switch pkg.Command {
	case proto.CommandSubscriptionConfirmation, proto.CommandPersistentSubscriptionConfirmation:
		item.IsSubscribed = true
		item.touch()
		listener := item.Subscription.Listener
		subID := pkg.CorrelationID
		m.exec(func() { listener.OnConfirmed(subID) })

	case proto.CommandSubscriptionDropped:
		m.drop(item, "server dropped subscription", nil)

	case proto.CommandStreamEventAppeared, proto.CommandPersistentSubscriptionStreamEventAppeared:
		item.touch()
		listener := item.Subscription.Listener
		m.exec(func() { listener.OnEventAppeared(pkg) })
	}
}

func (m *Manager) drop(item *Item, reason string, cause error) {
	m.mu.Lock()
	if item.Subscription.SubscriptionID != nil {
		delete(m.active, *item.Subscription.SubscriptionID)
	}
	m.mu.Unlock()

	if m.shouldReenqueue(item) && item.RetryCount < item.MaxRetries {
		item.RetryCount++
		item.IsSubscribed = false
		item.ChannelID = nil
		m.EnqueueSubscription(item)
	}

	listener := item.Subscription.Listener
	m.exec(func() { listener.OnDropped(reason, cause) })
}

// shouldReenqueue reports whether a dropped item should be retried rather
// than terminally dropped. A confirmed volatile-stream/volatile-all
// subscription is never auto-resubscribed by the core: the caller is
// expected to reinvoke SubscribeToStream/SubscribeToAll itself. A
// subscription still starting (not yet confirmed) or a persistent
// subscription -- backed by a durable server-side group that survives the
// client's own reconnection -- is retried.
func (m *Manager) shouldReenqueue(item *Item) bool {
	if item.Subscription.Kind == Persistent {
		return true
	}
	return !item.IsSubscribed
}

// PurgeSubscribedAndDropped handles a channel close: every item bound to
// channelID is either re-enqueued for reconnection (if shouldReenqueue
// allows it and its retry budget is not used up) or terminally dropped, per I5 (a subscription is "subscribed"
// only while its bound channel id matches the current channel id).
func (m *Manager) PurgeSubscribedAndDropped(channelID uuid.UUID, cause error) {
	m.mu.Lock()
	var affected []*Item
	for id, item := range m.active {
		if item.boundTo(channelID) {
			affected = append(affected, item)
			delete(m.active, id)
		}
	}
	m.mu.Unlock()

	for _, item := range affected {
		m.drop(item, "connectionClosed", cause)
	}
}

// CheckTimeoutsAndRetry drops items that have been "starting" (not yet
// subscribed) for longer than Timeout without a confirmation.
func (m *Manager) CheckTimeoutsAndRetry(channel Channel) {
	now := time.Now()

	m.mu.Lock()
	var expired []*Item
	for id, item := range m.active {
		if !item.IsSubscribed && now.Sub(item.LastUpdated) > item.Timeout {
			expired = append(expired, item)
			delete(m.active, id)
		}
	}
	m.mu.Unlock()

	for _, item := range expired {
		m.drop(item, "subscribe request timed out", nil)
	}
}

// CleanUp drops every active and waiting item with connectionClosed,
// used on final disconnect.
func (m *Manager) CleanUp() {
	m.mu.Lock()
	active := m.active
	waiting := m.waiting
	m.active = make(map[uuid.UUID]*Item)
	m.waiting = nil
	m.mu.Unlock()

	for _, item := range active {
		listener := item.Subscription.Listener
		m.exec(func() { listener.OnDropped("connectionClosed", nil) })
	}
	for _, item := range waiting {
		listener := item.Subscription.Listener
		m.exec(func() { listener.OnDropped("connectionClosed", nil) })
	}
}

// Counts returns the number of active and waiting items, mainly for tests.
func (m *Manager) Counts() (active, waiting int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active), len(m.waiting)
}

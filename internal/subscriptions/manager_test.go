package subscriptions

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/michael-schnell/esjc/internal/proto"
)

type fakeChannel struct {
	id      uuid.UUID
	written []proto.Package
}

func newFakeChannel() *fakeChannel { return &fakeChannel{id: uuid.New()} }

func (c *fakeChannel) ID() uuid.UUID { return c.id }

func (c *fakeChannel) Write(p proto.Package) error {
	c.written = append(c.written, p)
	return nil
}

type recordingListener struct {
	mu         sync.Mutex
	confirmed  int
	events     []proto.Package
	drops      []string
}

func (l *recordingListener) OnConfirmed(uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirmed++
}

func (l *recordingListener) OnEventAppeared(p proto.Package) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, p)
}

func (l *recordingListener) OnDropped(reason string, cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.drops = append(l.drops, reason)
}

func syncExecutor(f func()) { f() }

func TestStartSubscriptionConfirmFlow(t *testing.T) {
	m := NewManager(syncExecutor, nil)
	ch := newFakeChannel()
	listener := &recordingListener{}

	sub := &Subscription{Kind: VolatileStream, StreamID: "orders", Listener: listener}
	item := NewItem(sub, 0, time.Minute)

	m.StartSubscription(item, ch)
	require.Len(t, ch.written, 1)

	m.HandlePackage(proto.Package{
		Command:       proto.CommandSubscriptionConfirmation,
		CorrelationID: *sub.SubscriptionID,
	})

	require.True(t, item.IsSubscribed)
	require.Equal(t, 1, listener.confirmed)
}

func TestEventDeliveredAfterConfirmation(t *testing.T) {
	m := NewManager(syncExecutor, nil)
	ch := newFakeChannel()
	listener := &recordingListener{}

	sub := &Subscription{Kind: VolatileStream, StreamID: "orders", Listener: listener}
	item := NewItem(sub, 0, time.Minute)
	m.StartSubscription(item, ch)

	corrID := *sub.SubscriptionID
	m.HandlePackage(proto.Package{Command: proto.CommandSubscriptionConfirmation, CorrelationID: corrID})
	m.HandlePackage(proto.Package{Command: proto.CommandStreamEventAppeared, CorrelationID: corrID, Payload: []byte{0x01}})

	require.Len(t, listener.events, 1)
	require.Equal(t, []byte{0x01}, listener.events[0].Payload)
}

func TestDropWithNoRetryFiresOnDroppedOnce(t *testing.T) {
	m := NewManager(syncExecutor, nil)
	ch := newFakeChannel()
	listener := &recordingListener{}

	sub := &Subscription{Kind: VolatileStream, StreamID: "orders", Listener: listener}
	item := NewItem(sub, 0, time.Minute) // MaxRetries=0: no auto-resubscribe
	m.StartSubscription(item, ch)
	corrID := *sub.SubscriptionID

	m.PurgeSubscribedAndDropped(ch.ID(), nil)

	require.Equal(t, []string{"connectionClosed"}, listener.drops)
	active, waiting := m.Counts()
	require.Equal(t, 0, active)
	require.Equal(t, 0, waiting)

	// A late event for the dropped subscription must not be delivered.
	m.HandlePackage(proto.Package{Command: proto.CommandStreamEventAppeared, CorrelationID: corrID})
	require.Len(t, listener.events, 0)
}

func TestDropWithRetryReenqueues(t *testing.T) {
	m := NewManager(syncExecutor, nil)
	ch := newFakeChannel()
	listener := &recordingListener{}

	sub := &Subscription{Kind: Persistent, StreamID: "orders", GroupName: "g1", Listener: listener}
	item := NewItem(sub, 2, time.Minute)
	m.StartSubscription(item, ch)

	m.PurgeSubscribedAndDropped(ch.ID(), nil)

	require.Equal(t, []string{"connectionClosed"}, listener.drops)
	active, waiting := m.Counts()
	require.Equal(t, 0, active)
	require.Equal(t, 1, waiting)
	require.Equal(t, 1, item.RetryCount)
}

func TestConfirmedVolatileSubscriptionDropsTerminallyDespiteRetryBudget(t *testing.T) {
	m := NewManager(syncExecutor, nil)
	ch := newFakeChannel()
	listener := &recordingListener{}

	sub := &Subscription{Kind: VolatileStream, StreamID: "orders", Listener: listener}
	item := NewItem(sub, 5, time.Minute) // ample retry budget
	m.StartSubscription(item, ch)
	m.HandlePackage(proto.Package{Command: proto.CommandSubscriptionConfirmation, CorrelationID: *sub.SubscriptionID})
	require.True(t, item.IsSubscribed)

	m.PurgeSubscribedAndDropped(ch.ID(), nil)

	require.Equal(t, []string{"connectionClosed"}, listener.drops)
	active, waiting := m.Counts()
	require.Equal(t, 0, active)
	require.Equal(t, 0, waiting, "a confirmed volatile subscription must not be auto-resubscribed")
	require.Equal(t, 0, item.RetryCount)
}

func TestUnconfirmedVolatileSubscriptionStillRetriesOnDrop(t *testing.T) {
	m := NewManager(syncExecutor, nil)
	ch := newFakeChannel()
	listener := &recordingListener{}

	sub := &Subscription{Kind: VolatileStream, StreamID: "orders", Listener: listener}
	item := NewItem(sub, 2, time.Minute)
	m.StartSubscription(item, ch) // never confirmed before the channel drops

	m.PurgeSubscribedAndDropped(ch.ID(), nil)

	active, waiting := m.Counts()
	require.Equal(t, 0, active)
	require.Equal(t, 1, waiting, "a subscription still starting may retry its initial subscribe")
	require.Equal(t, 1, item.RetryCount)
}

func TestConfirmedPersistentSubscriptionStillReenqueuesOnDrop(t *testing.T) {
	m := NewManager(syncExecutor, nil)
	ch := newFakeChannel()
	listener := &recordingListener{}

	sub := &Subscription{Kind: Persistent, StreamID: "orders", GroupName: "g1", Listener: listener}
	item := NewItem(sub, 2, time.Minute)
	m.StartSubscription(item, ch)
	m.HandlePackage(proto.Package{Command: proto.CommandPersistentSubscriptionConfirmation, CorrelationID: *sub.SubscriptionID})
	require.True(t, item.IsSubscribed)

	m.PurgeSubscribedAndDropped(ch.ID(), nil)

	_, waiting := m.Counts()
	require.Equal(t, 1, waiting, "a confirmed persistent subscription is backed by a durable server-side group and may reconnect")
}

func TestCleanUpDropsEverythingOnce(t *testing.T) {
	m := NewManager(syncExecutor, nil)
	ch := newFakeChannel()
	l1, l2 := &recordingListener{}, &recordingListener{}

	s1 := &Subscription{Kind: VolatileStream, StreamID: "a", Listener: l1}
	s2 := &Subscription{Kind: VolatileAll, Listener: l2}
	i1 := NewItem(s1, 0, time.Minute)
	i2 := NewItem(s2, 0, time.Minute)

	m.StartSubscription(i1, ch)
	m.EnqueueSubscription(i2)

	m.CleanUp()

	require.Equal(t, []string{"connectionClosed"}, l1.drops)
	require.Equal(t, []string{"connectionClosed"}, l2.drops)
}

package operations

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/michael-schnell/esjc/internal/esjclog"
	"github.com/michael-schnell/esjc/internal/proto"
)

// ErrRetryLimitReached is returned to an Item's Operation when its retry
// budget is exhausted, either by an explicit Retry decision or by a timeout
// sweep that cannot replay on a new channel.
var ErrRetryLimitReached = errors.New("operations: retry limit reached")

// ErrConnectionClosed is used to fail every outstanding item on cleanup.
var ErrConnectionClosed = errors.New("operations: connection closed")

// Channel is the narrow transport surface the manager needs: a stable
// identity and the ability to write an outbound package. The concrete
// implementation lives in the connection engine.
type Channel interface {
	ID() uuid.UUID
	Write(proto.Package) error
}

// ReconnectHintFunc is invoked when an Operation's Inspect returns Reconnect,
// so the engine can act on a NotMaster-style redirect.
type ReconnectHintFunc func(NodeEndpoints)

// Manager owns the active (correlation id -> item, bounded by
// maxConcurrentItems) and waiting (FIFO) operation sets.
// All exported methods are expected to run on the engine's single control
// thread; Manager does no internal locking of its own beyond what's needed
// to make Counts safe to call incidentally from tests.
type Manager struct {
	maxConcurrentItems int
	sem                *semaphore.Weighted

	mu      sync.Mutex
	active  map[uuid.UUID]*Item
	waiting []*Item

	onReconnectHint ReconnectHintFunc
	log             *esjclog.Logger
}

// NewManager creates a Manager admitting at most maxConcurrentItems
// concurrently active operations, gated by a semaphore.Weighted so
// ScheduleOperation and ScheduleWaiting never need to recompute active-set
// size under lock to decide admission.
func NewManager(maxConcurrentItems int, onReconnectHint ReconnectHintFunc, log *esjclog.Logger) *Manager {
	if log == nil {
		log = esjclog.Discard()
	}
	return &Manager{
		maxConcurrentItems: maxConcurrentItems,
		sem:                semaphore.NewWeighted(int64(maxConcurrentItems)),
		active:             make(map[uuid.UUID]*Item),
		onReconnectHint:    onReconnectHint,
		log:                log,
	}
}

// EnqueueOperation appends item to the waiting FIFO.
func (m *Manager) EnqueueOperation(item *Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waiting = append(m.waiting, item)
}

// ScheduleOperation assigns item a correlation id, writes its request on
// channel, and moves it into the active set -- unless the active set is at
// capacity, in which case item is pushed onto the waiting FIFO instead.
func (m *Manager) ScheduleOperation(item *Item, channel Channel) {
	if !m.sem.TryAcquire(1) {
		m.mu.Lock()
		m.waiting = append(m.waiting, item)
		m.mu.Unlock()
		return
	}

	m.assignAndSend(item, channel)
}

func (m *Manager) assignAndSend(item *Item, channel Channel) {
	item.CorrelationID = uuid.New()
	item.touch()
	cid := channel.ID()
	item.ChannelID = &cid

	req := item.Operation.CreateRequest(item.CorrelationID)

	m.mu.Lock()
	m.active[item.CorrelationID] = item
	m.mu.Unlock()

	if err := channel.Write(req); err != nil {
		m.log.Warn("operations: write failed, will be swept by timeout", "error", err)
	}
}

// ScheduleWaiting pulls items off the waiting FIFO and schedules them on
// channel while the active set has capacity.
func (m *Manager) ScheduleWaiting(channel Channel) {
	for {
		m.mu.Lock()
		empty := len(m.waiting) == 0
		m.mu.Unlock()
		if empty {
			return
		}
		if !m.sem.TryAcquire(1) {
			return
		}

		m.mu.Lock()
		item := m.waiting[0]
		m.waiting = m.waiting[1:]
		m.mu.Unlock()

		m.assignAndSend(item, channel)
	}
}

// HandleResponse looks up the active item addressed by response's
// correlation id, invokes its Operation's Inspect, and applies the
// resulting Decision.
func (m *Manager) HandleResponse(response proto.Package) {
	m.mu.Lock()
	item, ok := m.active[response.CorrelationID]
	m.mu.Unlock()
	if !ok {
		// A response arriving after its operation timed out (and was
		// removed or replayed under a new correlation id) is silently
		// dropped.
		return
	}

	decision := item.Operation.Inspect(response)
	switch d := decision.(type) {
	case EndOperation:
		m.remove(item.CorrelationID)
	case Retry:
		m.remove(item.CorrelationID)
		m.retryOrFail(item)
	case Reconnect:
		m.remove(item.CorrelationID)
		m.requeue(item)
		if m.onReconnectHint != nil {
			m.onReconnectHint(d.Endpoints)
		}
	case NotHandled:
		// awaiting more; leave in place
	case DoNothing:
		// awaiting more; leave in place
	}
}

// CheckTimeoutsAndRetry sweeps the active set for items whose current
// attempt has exceeded its timeout. An item bound to a stale channel id is
// replayed on the new channel (replay-safe); otherwise its retry budget is
// consumed, or, once the budget is used up, it fails with
// ErrRetryLimitReached. The sweep produces no separate timeout error.
func (m *Manager) CheckTimeoutsAndRetry(channel Channel) {
	now := time.Now()

	m.mu.Lock()
	var expired []*Item
	for _, item := range m.active {
		if item.expired(now) {
			expired = append(expired, item)
		}
	}
	m.mu.Unlock()

	for _, item := range expired {
		m.mu.Lock()
		delete(m.active, item.CorrelationID)
		m.mu.Unlock()

		sameChannel := item.ChannelID != nil && channel != nil && *item.ChannelID == channel.ID()
		if !sameChannel {
			// Replayed on the new channel without releasing its permit: the
			// item never left the active set conceptually, only its channel
			// binding changed.
			m.assignAndSend(item, channel)
			continue
		}
		m.sem.Release(1)
		m.retryOrFail(item)
	}
}

func (m *Manager) retryOrFail(item *Item) {
	if item.RetryCount >= item.MaxRetries {
		item.Operation.Fail(ErrRetryLimitReached)
		return
	}
	item.RetryCount++
	m.requeue(item)
}

func (m *Manager) requeue(item *Item) {
	item.touch()
	m.mu.Lock()
	m.waiting = append(m.waiting, item)
	m.mu.Unlock()
}

func (m *Manager) remove(id uuid.UUID) {
	m.mu.Lock()
	_, ok := m.active[id]
	delete(m.active, id)
	m.mu.Unlock()
	if ok {
		m.sem.Release(1)
	}
}

// CleanUp fails every active and waiting item with ErrConnectionClosed and
// clears both sets, used on final disconnect.
func (m *Manager) CleanUp() {
	m.mu.Lock()
	active := m.active
	waiting := m.waiting
	m.active = make(map[uuid.UUID]*Item)
	m.waiting = nil
	m.sem = semaphore.NewWeighted(int64(m.maxConcurrentItems))
	m.mu.Unlock()

	for _, item := range active {
		item.Operation.Fail(ErrConnectionClosed)
	}
	for _, item := range waiting {
		item.Operation.Fail(ErrConnectionClosed)
	}
}

// Counts returns the number of active and waiting items, for admission
// control in the public facade and for tests.
func (m *Manager) Counts() (active, waiting int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active), len(m.waiting)
}

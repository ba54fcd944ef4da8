package operations

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/michael-schnell/esjc/internal/proto"
)

type fakeChannel struct {
	id      uuid.UUID
	written []proto.Package
	failing bool
}

func newFakeChannel() *fakeChannel { return &fakeChannel{id: uuid.New()} }

func (c *fakeChannel) ID() uuid.UUID { return c.id }

func (c *fakeChannel) Write(p proto.Package) error {
	c.written = append(c.written, p)
	return nil
}

type scriptedOp struct {
	onInspect func(proto.Package) Decision
	failed    error
}

func (o *scriptedOp) CreateRequest(correlationID uuid.UUID) proto.Package {
	return proto.NewPackage(0x01, nil, nil)
}

func (o *scriptedOp) Inspect(resp proto.Package) Decision {
	return o.onInspect(resp)
}

func (o *scriptedOp) Fail(err error) { o.failed = err }

func TestScheduleOperationRespectsCapacity(t *testing.T) {
	m := NewManager(1, nil, nil)
	ch := newFakeChannel()

	op1 := &scriptedOp{onInspect: func(proto.Package) Decision { return DoNothing{} }}
	op2 := &scriptedOp{onInspect: func(proto.Package) Decision { return DoNothing{} }}

	item1 := NewItem(op1, 3, time.Minute)
	item2 := NewItem(op2, 3, time.Minute)

	m.ScheduleOperation(item1, ch)
	m.ScheduleOperation(item2, ch)

	active, waiting := m.Counts()
	require.Equal(t, 1, active)
	require.Equal(t, 1, waiting)
	require.Len(t, ch.written, 1)

	m.ScheduleWaiting(ch)
	// item2 still can't fit: active is still occupied by item1.
	active, waiting = m.Counts()
	require.Equal(t, 1, active)
	require.Equal(t, 1, waiting)
}

func TestHandleResponseEndOperation(t *testing.T) {
	m := NewManager(4, nil, nil)
	ch := newFakeChannel()

	ended := false
	op := &scriptedOp{onInspect: func(proto.Package) Decision {
		ended = true
		return EndOperation{}
	}}
	item := NewItem(op, 3, time.Minute)
	m.ScheduleOperation(item, ch)

	resp := proto.Package{CorrelationID: item.CorrelationID}
	m.HandleResponse(resp)

	require.True(t, ended)
	active, waiting := m.Counts()
	require.Equal(t, 0, active)
	require.Equal(t, 0, waiting)
}

func TestHandleResponseRetryThenFail(t *testing.T) {
	m := NewManager(4, nil, nil)
	ch := newFakeChannel()

	op := &scriptedOp{onInspect: func(proto.Package) Decision { return Retry{} }}
	item := NewItem(op, 1, time.Minute)
	m.ScheduleOperation(item, ch)

	// First retry: requeued into waiting.
	m.HandleResponse(proto.Package{CorrelationID: item.CorrelationID})
	require.Equal(t, 1, item.RetryCount)

	m.ScheduleWaiting(ch)
	require.Len(t, ch.written, 2)

	// Second retry exceeds MaxRetries=1 -> fail.
	m.HandleResponse(proto.Package{CorrelationID: item.CorrelationID})
	require.ErrorIs(t, op.failed, ErrRetryLimitReached)
}

func TestHandleResponseUnknownCorrelationIsDropped(t *testing.T) {
	m := NewManager(4, nil, nil)
	// No panics, no-op.
	m.HandleResponse(proto.Package{CorrelationID: uuid.New()})
	active, waiting := m.Counts()
	require.Equal(t, 0, active)
	require.Equal(t, 0, waiting)
}

func TestCheckTimeoutsReplaysOnNewChannel(t *testing.T) {
	m := NewManager(4, nil, nil)
	oldChannel := newFakeChannel()

	op := &scriptedOp{onInspect: func(proto.Package) Decision { return DoNothing{} }}
	item := NewItem(op, 3, time.Millisecond)
	m.ScheduleOperation(item, oldChannel)

	time.Sleep(5 * time.Millisecond)

	newChannel := newFakeChannel()
	m.CheckTimeoutsAndRetry(newChannel)

	// Replayed on the new channel without consuming a retry.
	require.Equal(t, 0, item.RetryCount)
	require.Len(t, newChannel.written, 1)
}

func TestCheckTimeoutsSameChannelConsumesRetry(t *testing.T) {
	m := NewManager(4, nil, nil)
	ch := newFakeChannel()

	op := &scriptedOp{onInspect: func(proto.Package) Decision { return DoNothing{} }}
	item := NewItem(op, 0, time.Millisecond)
	m.ScheduleOperation(item, ch)

	time.Sleep(5 * time.Millisecond)
	m.CheckTimeoutsAndRetry(ch)

	require.ErrorIs(t, op.failed, ErrRetryLimitReached)
}

func TestCleanUpFailsEverything(t *testing.T) {
	m := NewManager(1, nil, nil)
	ch := newFakeChannel()

	op1 := &scriptedOp{onInspect: func(proto.Package) Decision { return DoNothing{} }}
	op2 := &scriptedOp{onInspect: func(proto.Package) Decision { return DoNothing{} }}
	item1 := NewItem(op1, 3, time.Minute)
	item2 := NewItem(op2, 3, time.Minute)

	m.ScheduleOperation(item1, ch)
	m.ScheduleOperation(item2, ch) // goes to waiting, capacity 1

	m.CleanUp()

	require.ErrorIs(t, op1.failed, ErrConnectionClosed)
	require.ErrorIs(t, op2.failed, ErrConnectionClosed)
	active, waiting := m.Counts()
	require.Equal(t, 0, active)
	require.Equal(t, 0, waiting)
}

func TestReconnectHintPropagates(t *testing.T) {
	var hinted NodeEndpoints
	m := NewManager(4, func(e NodeEndpoints) { hinted = e }, nil)
	ch := newFakeChannel()

	target := NodeEndpoints{TCP: "10.0.0.2:1113"}
	op := &scriptedOp{onInspect: func(proto.Package) Decision { return Reconnect{Endpoints: target} }}
	item := NewItem(op, 3, time.Minute)
	m.ScheduleOperation(item, ch)

	m.HandleResponse(proto.Package{CorrelationID: item.CorrelationID})

	require.Equal(t, target, hinted)
}
